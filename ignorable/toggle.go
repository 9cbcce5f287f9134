package ignorable

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// scopeWaitWarning 等待同类型作用域超过这个时间时记录一条警告
var scopeWaitWarning = 5 * time.Second

type scopeKey struct {
	t *EntityType
}

// scopeState 一次 WithIncludedColumns 的放开状态，只有带着作用域 ctx 的调用能看到
type scopeState struct {
	visibility Visibility

	// 以下字段由 EntityType.mu 保护，类型的 generation 变化后重新构建
	generation uint64
	meta       *metadata
	projection *Projection
}

func (t *EntityType) scopeOf(ctx context.Context) *scopeState {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(scopeKey{t}).(*scopeState)
	return s
}

// WithIncludedColumns 在 fn 执行期间让忽略列对 fn 重新可见，names 为空时放开所有忽略列，
// 不在忽略集合中的名字会被跳过
//
// 放开的列只通过传给 fn 的 ctx 生效：Columns、DefaultScopes、Model 和 Instance 的方法
// 收到这个 ctx 时才能看到放开的列，其他调用方看到的始终是隐藏忽略列的视图。
// 类型上的缓存和投影不会被修改，所以 fn 返回错误或 panic 后没有需要恢复的状态。
//
// 同一类型的作用域互斥，其他调用方阻塞等待，ctx 被取消时返回 ctx 的错误；不同类型互不影响。
// 在作用域内用收到的 ctx 再次进入同一类型会返回 ErrReentrantScope；
// 换成一个不带作用域的 ctx 再次进入无法被识别，会一直等待外层作用域结束，也就是死锁，
// 等待超过 scopeWaitWarning 时记录警告
func (t *EntityType) WithIncludedColumns(ctx context.Context, fn func(ctx context.Context) error, names ...string) (err error) {
	if t.scopeOf(ctx) != nil {
		t.logger.WarnContext(ctx, "reentrant included columns scope", "columns", names)
		return errors.Wrapf(ErrReentrantScope, "type %s", t.name)
	}

	start := time.Now()
	if err := t.acquireScope(ctx); err != nil {
		return err
	}
	defer t.scopeSem.Release(1)

	ctx, end := t.registry.observer.observeScope(ctx, t, time.Since(start))
	defer func() { end(err) }()

	s := &scopeState{visibility: t.elevation(names)}
	ctx = context.WithValue(ctx, scopeKey{t}, s)
	t.logger.DebugContext(ctx, "included columns scope entered", "visibility", s.visibility.String())
	defer t.logger.DebugContext(ctx, "included columns scope exited")

	if _, err := t.scopedProjection(ctx, s); err != nil {
		return err
	}
	return fn(ctx)
}

// acquireScope 获取类型的作用域锁，等待过久时提示可能的死锁
func (t *EntityType) acquireScope(ctx context.Context) error {
	if t.scopeSem.TryAcquire(1) {
		return nil
	}

	timer := time.AfterFunc(scopeWaitWarning, func() {
		t.logger.WarnContext(ctx, "still waiting for included columns scope, a nested scope on the same type must reuse the scope ctx", "wait", scopeWaitWarning)
	})
	defer timer.Stop()

	if err := t.scopeSem.Acquire(ctx, 1); err != nil {
		return errors.Wrapf(err, "wait included columns scope of %s", t.name)
	}
	return nil
}

// Including 带返回值的 WithIncludedColumns
func Including[R any](ctx context.Context, t *EntityType, fn func(ctx context.Context) (R, error), names ...string) (R, error) {
	var result R
	err := t.WithIncludedColumns(ctx, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	}, names...)
	return result, err
}

// Visibility 返回 ctx 下的可见性，不在 t 的作用域内时为 Normal
func (t *EntityType) Visibility(ctx context.Context) Visibility {
	if s := t.scopeOf(ctx); s != nil {
		return s.visibility
	}
	return Normal()
}

// IncludedColumns 返回 ctx 下重新可见的忽略列，按忽略集合的顺序
func (t *EntityType) IncludedColumns(ctx context.Context) []string {
	v := t.Visibility(ctx)
	if !v.IsElevated() {
		return nil
	}
	var included []string
	for _, name := range t.IgnoredColumns() {
		if v.Includes(name) {
			included = append(included, name)
		}
	}
	return included
}

func (t *EntityType) elevation(names []string) Visibility {
	names = normalize(names)
	if len(names) == 0 {
		return Elevated()
	}

	ignored := map[string]struct{}{}
	for _, name := range t.IgnoredColumns() {
		ignored[name] = struct{}{}
	}
	included := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := ignored[name]; ok {
			included = append(included, name)
		}
	}
	return elevatedSet(included)
}

// scopedProjection 作用域内的投影，投影未启用或忽略集合为空时返回 nil
func (t *EntityType) scopedProjection(ctx context.Context, s *scopeState) (*Projection, error) {
	t.mu.RLock()
	enabled := t.projectionEnabled
	p := s.projection
	fresh := s.meta != nil && s.generation == t.generation
	t.mu.RUnlock()
	if !enabled {
		return nil, nil
	}
	if p != nil && fresh {
		return p, nil
	}
	if len(t.IgnoredColumns()) == 0 {
		return nil, nil
	}

	m, err := t.metadata(ctx)
	if err != nil {
		return nil, err
	}
	p = NewProjection(t.table, m.names...)
	t.mu.Lock()
	if s.meta == m {
		s.projection = p
	}
	t.mu.Unlock()
	return p, nil
}
