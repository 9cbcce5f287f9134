package ignorable

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/hatlonely/ignorable/log"
	"github.com/hatlonely/ignorable/log/logger"
	"github.com/hatlonely/ignorable/schema"
)

// Registry 进程内所有实体类型的注册表，以类型名为标识
type Registry struct {
	fetcher schema.Fetcher

	mu    sync.RWMutex
	types map[string]*EntityType
	order []*EntityType

	logger          logger.Logger
	observer        *Observer
	warmConcurrency int
}

type RegistryOption func(*Registry)

func WithLogger(l logger.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithObserver(o *Observer) RegistryOption {
	return func(r *Registry) {
		r.observer = o
	}
}

func WithWarmConcurrency(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.warmConcurrency = n
		}
	}
}

func NewRegistry(fetcher schema.Fetcher, opts ...RegistryOption) *Registry {
	r := &Registry{
		fetcher:         fetcher,
		types:           map[string]*EntityType{},
		logger:          log.Default().WithGroup("ignorable"),
		warmConcurrency: 4,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Fetcher() schema.Fetcher {
	return r.fetcher
}

// Define 定义绑定到 table 的根类型
func (r *Registry) Define(name string, table string) (*EntityType, error) {
	if table = strings.TrimSpace(table); table == "" {
		return nil, errors.Errorf("table of entity type %q is empty", name)
	}
	return r.define(name, table, nil)
}

// MustDefine 定义失败时 panic，用于包初始化
func (r *Registry) MustDefine(name string, table string) *EntityType {
	t, err := r.Define(name, table)
	if err != nil {
		panic(err)
	}
	return t
}

// Subclass 定义 parent 的子类型，和父类型共用同一张表
func (r *Registry) Subclass(parent *EntityType, name string) (*EntityType, error) {
	if parent == nil || parent.registry != r {
		return nil, errors.Wrapf(ErrUnknownType, "parent of %q", name)
	}
	return r.define(name, parent.table, parent)
}

func (r *Registry) define(name string, table string, parent *EntityType) (*EntityType, error) {
	if name = strings.TrimSpace(name); name == "" {
		return nil, errors.New("entity type name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.types[name]; ok {
		return nil, errors.Wrapf(ErrDuplicateType, "type %q", name)
	}

	t := &EntityType{
		registry: r,
		name:     name,
		table:    table,
		parent:   parent,
		logger:   r.logger.With("type", name, "table", table),
		scopeSem: semaphore.NewWeighted(1),
	}

	if parent != nil {
		parent.mu.RLock()
		t.primaryKey = parent.primaryKey
		t.baseScopes = append([]Scope(nil), parent.baseScopes...)
		t.projectionEnabled = parent.projectionEnabled
		t.projectionStale = parent.projectionEnabled
		parent.mu.RUnlock()
		parent.children = append(parent.children, t)
	}

	r.types[name] = t
	r.order = append(r.order, t)
	return t, nil
}

func (r *Registry) Lookup(name string) (*EntityType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownType, "type %q", name)
	}
	return t, nil
}

func (r *Registry) MustLookup(name string) *EntityType {
	t, err := r.Lookup(name)
	if err != nil {
		panic(err)
	}
	return t
}

// Types 按定义顺序返回所有类型
func (r *Registry) Types() []*EntityType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*EntityType(nil), r.order...)
}

// Names 按字典序返回所有类型名
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Descendants 返回 t 的所有后代类型，广度优先
func (r *Registry) Descendants(t *EntityType) []*EntityType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*EntityType
	queue := append([]*EntityType(nil), t.children...)
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		result = append(result, c)
		queue = append(queue, c.children...)
	}
	return result
}

// Warm 并发预加载所有类型的列，以及已启用的默认投影
func (r *Registry) Warm(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.warmConcurrency)

	for _, t := range r.Types() {
		t := t
		g.Go(func() error {
			if _, err := t.DefaultScopes(ctx); err != nil {
				return err
			}
			_, err := t.Columns(ctx)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return errors.WithMessage(err, "warm registry failed")
	}
	r.logger.DebugContext(ctx, "registry warmed", "types", len(r.Types()))
	return nil
}

// Close 关闭实现了 io.Closer 的 Fetcher
func (r *Registry) Close() error {
	if c, ok := r.fetcher.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
