package ignorable

import (
	"context"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hatlonely/ignorable/cfg"
	"github.com/hatlonely/ignorable/log"
	"github.com/hatlonely/ignorable/ref"
	"github.com/hatlonely/ignorable/schema"
)

type Options struct {
	Name          string `cfg:"name" def:"ignorable"`
	EnableMetrics bool   `cfg:"enableMetrics"`
	EnableTracing bool   `cfg:"enableTracing"`

	// WarmConcurrency Warm 时同时预加载的类型数
	WarmConcurrency int `cfg:"warmConcurrency" def:"4" validate:"gte=1"`

	Logger   *ref.TypeOptions `cfg:"logger"`
	Fetcher  *ref.TypeOptions `cfg:"fetcher" validate:"required"`
	Entities []EntityOptions  `cfg:"entities" validate:"dive"`

	// Registerer 为空时使用 prometheus.DefaultRegisterer
	Registerer prometheus.Registerer `cfg:"-"`
}

// EntityOptions 一个实体类型的定义，Parent 不为空时定义为 Parent 的子类型
type EntityOptions struct {
	Name        string   `cfg:"name" validate:"required"`
	Table       string   `cfg:"table" validate:"required_without=Parent"`
	Parent      string   `cfg:"parent"`
	PrimaryKey  string   `cfg:"primaryKey"`
	Ignore      []string `cfg:"ignore"`
	IgnoreInSQL bool     `cfg:"ignoreInSql"`
}

// NewRegistryWithOptions 根据配置构建 Registry 并应用其中的实体类型定义
func NewRegistryWithOptions(ctx context.Context, options *Options) (*Registry, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	if err := cfg.SetDefaults(options); err != nil {
		return nil, errors.WithMessage(err, "set defaults failed")
	}
	if err := cfg.Validate(options); err != nil {
		return nil, errors.WithMessage(err, "validate options failed")
	}

	l, err := log.NewLoggerWithOptions(options.Logger)
	if err != nil {
		return nil, errors.WithMessage(err, "create logger failed")
	}

	observer, err := NewObserverWithOptions(&ObserverOptions{
		Name:          options.Name,
		EnableMetrics: options.EnableMetrics,
		EnableTracing: options.EnableTracing,
		Registerer:    options.Registerer,
	})
	if err != nil {
		return nil, errors.WithMessage(err, "create observer failed")
	}

	fetcher, err := schema.NewFetcherWithOptions(options.Fetcher)
	if err != nil {
		return nil, err
	}

	r := NewRegistry(fetcher,
		WithLogger(l.WithGroup(options.Name)),
		WithObserver(observer),
		WithWarmConcurrency(options.WarmConcurrency),
	)
	if err := r.Apply(ctx, options.Entities); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

// Apply 按顺序应用实体类型定义，已存在的类型只追加忽略列
//
// 重复应用同一份定义没有效果，配置文件变化后可以直接再次调用
func (r *Registry) Apply(ctx context.Context, entities []EntityOptions) error {
	for _, e := range entities {
		t, err := r.applyType(e)
		if err != nil {
			return errors.WithMessagef(err, "apply entity %q failed", e.Name)
		}
		if e.PrimaryKey != "" {
			t.SetPrimaryKey(e.PrimaryKey)
		}
		if len(e.Ignore) > 0 {
			t.IgnoreColumns(e.Ignore...)
		}
		if e.IgnoreInSQL {
			if err := t.IgnoreColumnsInSQL(ctx); err != nil {
				return errors.WithMessagef(err, "apply entity %q failed", e.Name)
			}
		}
	}
	return nil
}

func (r *Registry) applyType(e EntityOptions) (*EntityType, error) {
	var parent *EntityType
	if e.Parent != "" {
		p, err := r.Lookup(e.Parent)
		if err != nil {
			return nil, err
		}
		parent = p
	}

	if t, err := r.Lookup(e.Name); err == nil {
		if t.parent != parent {
			return nil, errors.Errorf("type %q is already defined with parent %v", e.Name, t.parent)
		}
		if parent == nil && e.Table != "" && t.table != e.Table {
			return nil, errors.Errorf("type %q is already bound to table %q", e.Name, t.table)
		}
		return t, nil
	}

	if parent != nil {
		if e.Table != "" && e.Table != parent.table {
			return nil, errors.Errorf("subclass %q must use table %q of its parent", e.Name, parent.table)
		}
		return r.Subclass(parent, e.Name)
	}
	return r.Define(e.Name, e.Table)
}
