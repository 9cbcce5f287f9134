package ignorable

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/hatlonely/ignorable/rdb"
)

// Accessor 一个可见列的读写入口
//
// 访问表随列视图一起生成，缓存重置时清空，调用时按 ctx 查对应视图的表，
// 所以在作用域内放开的列只对带着作用域 ctx 的调用出现
type Accessor struct {
	Name string
}

func (a *Accessor) Get(i *Instance) any {
	v, _ := i.attrs.Get(a.Name)
	return v
}

func (a *Accessor) Set(i *Instance, value any) {
	i.attrs.Set(a.Name, value)
	i.changed = appendUnique(i.changed, a.Name)
}

// Accessor 查找列在 ctx 下的访问入口；访问表还没有构建时只根据忽略集合判断
func (t *EntityType) Accessor(ctx context.Context, name string) (*Accessor, bool) {
	m := t.cachedMetadata(ctx)
	if m != nil {
		a, ok := m.accessors[name]
		return a, ok
	}
	if t.IsIgnored(ctx, name) {
		return nil, false
	}
	return &Accessor{Name: name}, true
}

func (t *EntityType) cachedMetadata(ctx context.Context) *metadata {
	s := t.scopeOf(ctx)
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cachedMetadataLocked(s)
}

// Instance 实体实例，attrs 保存后端返回的全部数据，对外只暴露可见列
type Instance struct {
	t         *EntityType
	attrs     *rdb.Record
	changed   []string
	persisted bool
}

// Instantiate 用已持久化的一行数据构建实例
func (t *EntityType) Instantiate(record *rdb.Record) *Instance {
	if record == nil {
		record = rdb.NewRecord()
	}
	return &Instance{t: t, attrs: record, persisted: true}
}

func (i *Instance) Type() *EntityType {
	return i.t
}

func (i *Instance) Persisted() bool {
	return i.persisted
}

// RawAttributes 返回未过滤的全部数据
func (i *Instance) RawAttributes() map[string]any {
	return i.attrs.Map()
}

func (i *Instance) RawAttribute(name string) (any, bool) {
	return i.attrs.Get(name)
}

// Attributes 返回 ctx 下可见列的数据
func (i *Instance) Attributes(ctx context.Context) map[string]any {
	hidden := i.t.hiddenFunc(i.t.Visibility(ctx))
	result := make(map[string]any, i.attrs.Len())
	for _, name := range i.attrs.Columns() {
		if hidden(name) {
			continue
		}
		result[name], _ = i.attrs.Get(name)
	}
	return result
}

// AttributeNames 返回可见列名，保持后端的列顺序
func (i *Instance) AttributeNames(ctx context.Context) []string {
	hidden := i.t.hiddenFunc(i.t.Visibility(ctx))
	var names []string
	for _, name := range i.attrs.Columns() {
		if !hidden(name) {
			names = append(names, name)
		}
	}
	return names
}

// RespondTo 实例是否有 name 的访问入口
func (i *Instance) RespondTo(ctx context.Context, name string) bool {
	_, ok := i.accessor(ctx, name)
	return ok
}

func (i *Instance) accessor(ctx context.Context, name string) (*Accessor, bool) {
	a, ok := i.t.Accessor(ctx, name)
	if !ok {
		return nil, false
	}
	// 访问表未构建时，以实例实际持有的数据为准
	if i.t.cachedMetadata(ctx) == nil && !i.attrs.Has(name) {
		return nil, false
	}
	return a, true
}

// Get 读取可见列，没有访问入口时返回 false
func (i *Instance) Get(ctx context.Context, name string) (any, bool) {
	a, ok := i.accessor(ctx, name)
	if !ok {
		return nil, false
	}
	return a.Get(i), true
}

// Set 写入可见列，没有访问入口时返回 ErrUnknownAttribute
func (i *Instance) Set(ctx context.Context, name string, value any) error {
	a, ok := i.accessor(ctx, name)
	if !ok {
		return errors.Wrapf(ErrUnknownAttribute, "%s.%s", i.t.name, name)
	}
	a.Set(i, value)
	return nil
}

// Assign 批量写入，有任何列不可见时一列都不写
func (i *Instance) Assign(ctx context.Context, values map[string]any) error {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	accessors := make([]*Accessor, len(names))
	for idx, name := range names {
		a, ok := i.accessor(ctx, name)
		if !ok {
			return errors.Wrapf(ErrUnknownAttribute, "%s.%s", i.t.name, name)
		}
		accessors[idx] = a
	}
	for idx, a := range accessors {
		a.Set(i, values[names[idx]])
	}
	return nil
}

// Changed 返回保存前被修改过的列
func (i *Instance) Changed() []string {
	return append([]string(nil), i.changed...)
}
