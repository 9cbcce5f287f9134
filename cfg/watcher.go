package cfg

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/hatlonely/ignorable/log"
	"github.com/hatlonely/ignorable/log/logger"
	"github.com/hatlonely/ignorable/ref"
	"github.com/pkg/errors"
)

type WatcherOptions struct {
	FilePath string           `cfg:"filePath" validate:"required"`
	Logger   *ref.TypeOptions `cfg:"logger"`
}

// Watcher 监听配置文件，文件变化后重新解码并通知使用者
type Watcher struct {
	filePath string

	done chan struct{}
	wg   sync.WaitGroup

	logger logger.Logger
}

func NewWatcherWithOptions(options *WatcherOptions) (*Watcher, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	if err := Validate(options); err != nil {
		return nil, err
	}

	l, err := log.NewLoggerWithOptions(options.Logger)
	if err != nil {
		return nil, errors.WithMessage(err, "create logger failed")
	}

	filePath, err := filepath.Abs(options.FilePath)
	if err != nil {
		return nil, errors.Wrap(err, "filepath.Abs failed")
	}

	return &Watcher{
		filePath: filePath,
		done:     make(chan struct{}),
		logger:   l.WithGroup("cfgWatcher").With("filePath", filePath),
	}, nil
}

// OnChange 立即以当前内容调用一次 listener，之后每次文件变化再调用
//
// 首次调用失败时返回错误，之后的失败只记录日志
func (w *Watcher) OnChange(listener func(*Node) error) error {
	node, err := LoadNode(w.filePath)
	if err != nil {
		return err
	}
	if err := listener(node); err != nil {
		return errors.WithMessage(err, "listener failed")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "fsnotify.NewWatcher failed")
	}
	// 监听目录，编辑器保存时常用重命名替换文件
	if err := watcher.Add(filepath.Dir(w.filePath)); err != nil {
		watcher.Close()
		return errors.Wrap(err, "watcher.Add failed")
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer watcher.Close()

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != w.filePath {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}

				node, err := LoadNode(w.filePath)
				if err != nil {
					w.logger.Warn("reload config failed", "error", err)
					continue
				}
				if err := listener(node); err != nil {
					w.logger.Warn("listener failed", "error", err)
					continue
				}
				w.logger.Info("config reloaded")
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("watcher error", "error", err)
			case <-w.done:
				return
			}
		}
	}()

	return nil
}

func (w *Watcher) Close() error {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
	w.wg.Wait()
	return nil
}
