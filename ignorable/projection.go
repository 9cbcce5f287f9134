package ignorable

import (
	"context"

	"github.com/hatlonely/ignorable/rdb"
)

// AddDefaultScope 添加一个基础默认 scope，投影不属于基础 scope
func (t *EntityType) AddDefaultScope(scope Scope) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.baseScopes = append(t.baseScopes, scope)
}

// BaseScopes 返回基础默认 scope，不包含投影
func (t *EntityType) BaseScopes() []Scope {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Scope(nil), t.baseScopes...)
}

// IgnoreColumnsInSQL 安装默认投影，之后的查询只选择可见的列
//
// 忽略集合为空时不安装投影；重复调用会替换之前的投影，忽略集合变化后投影在下次使用时重新计算。
// 安装在类型上的投影总是隐藏忽略列，在作用域内调用也一样
func (t *EntityType) IgnoreColumnsInSQL(ctx context.Context) error {
	t.mu.Lock()
	t.projectionEnabled = true
	t.mu.Unlock()
	return t.installProjection(ctx)
}

// RemoveProjection 移除投影，默认 scope 恢复为基础 scope
func (t *EntityType) RemoveProjection() {
	t.mu.Lock()
	t.projectionEnabled = false
	t.projectionStale = false
	t.projection = nil
	t.mu.Unlock()
	t.logger.Debug("projection removed")
}

// ResetIgnorableColumns 重置列缓存并移除投影
func (t *EntityType) ResetIgnorableColumns() {
	t.ResetMetadata()
	t.RemoveProjection()
}

// Projection 返回安装在类型上的投影，没有时返回 nil；作用域内放开列的投影由 DefaultScopes 返回
func (t *EntityType) Projection() *Projection {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.projection
}

func (t *EntityType) installProjection(ctx context.Context) error {
	if len(t.IgnoredColumns()) == 0 {
		t.mu.Lock()
		t.projection = nil
		t.projectionStale = false
		t.mu.Unlock()
		return nil
	}

	m, err := t.metadata(t.withoutScope(ctx))
	if err != nil {
		return err
	}

	p := NewProjection(t.table, m.names...)
	t.mu.Lock()
	if t.projectionEnabled {
		t.projection = p
		// 计算期间缓存被重置过，下次使用时重新计算
		t.projectionStale = t.meta != m
	}
	t.mu.Unlock()

	t.logger.DebugContext(ctx, "projection installed", "columns", m.names)
	return nil
}

// DefaultScopes 返回基础 scope 加上 ctx 下的投影，投影过期时先重新计算
func (t *EntityType) DefaultScopes(ctx context.Context) ([]Scope, error) {
	if s := t.scopeOf(ctx); s != nil {
		p, err := t.scopedProjection(ctx, s)
		if err != nil {
			return nil, err
		}
		scopes := t.BaseScopes()
		if p != nil {
			scopes = append(scopes, p)
		}
		return scopes, nil
	}

	t.mu.RLock()
	stale := t.projectionEnabled && t.projectionStale
	t.mu.RUnlock()
	if stale {
		if err := t.installProjection(ctx); err != nil {
			return nil, err
		}
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	scopes := append([]Scope(nil), t.baseScopes...)
	if t.projection != nil {
		scopes = append(scopes, t.projection)
	}
	return scopes, nil
}

// Statement 返回应用了默认 scope 的查询语句
func (t *EntityType) Statement(ctx context.Context) (*rdb.SelectStatement, error) {
	scopes, err := t.DefaultScopes(ctx)
	if err != nil {
		return nil, err
	}
	stmt := rdb.NewSelectStatement(t.table)
	for _, scope := range scopes {
		scope.Statement(stmt)
	}
	return stmt, nil
}

// withoutScope 屏蔽 ctx 中 t 的作用域，用于计算类型上的缓存
func (t *EntityType) withoutScope(ctx context.Context) context.Context {
	if t.scopeOf(ctx) == nil {
		return ctx
	}
	return context.WithValue(ctx, scopeKey{t}, (*scopeState)(nil))
}
