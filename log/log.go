package log

import (
	"sync/atomic"

	"github.com/hatlonely/ignorable/log/logger"
	"github.com/hatlonely/ignorable/ref"
	"github.com/pkg/errors"
)

var defaultLogger atomic.Pointer[logger.Logger]

func init() {
	l, err := logger.NewSLogWithOptions(&logger.SLogOptions{
		Level:  "info",
		Format: "text",
	})
	if err != nil {
		panic("failed to initialize default logger: " + err.Error())
	}
	SetDefault(l)
}

// Default 进程级默认日志器
func Default() logger.Logger {
	return *defaultLogger.Load()
}

func SetDefault(l logger.Logger) {
	if l != nil {
		defaultLogger.Store(&l)
	}
}

// NewLoggerWithOptions 通过 ref 构造日志器，options 为 nil 时返回默认日志器
func NewLoggerWithOptions(options *ref.TypeOptions) (logger.Logger, error) {
	if options == nil || options.Type == "" {
		return Default(), nil
	}

	obj, err := ref.NewWithOptions(options)
	if err != nil {
		return nil, errors.WithMessage(err, "create logger failed")
	}
	l, ok := obj.(logger.Logger)
	if !ok {
		return nil, errors.Errorf("%T does not implement Logger interface", obj)
	}
	return l, nil
}
