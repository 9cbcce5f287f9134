package ignorable

import (
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/hatlonely/ignorable/log/logger"
	"github.com/hatlonely/ignorable/schema"
)

// EntityType 绑定到一张表的实体类型，保存该类型的忽略列、列缓存和默认 scope
//
// 子类型通过 parent 指针继承父类型的忽略列，直到自己注册忽略列为止；
// 列缓存每个类型独立保存，父类型的忽略列变化时由 Registry 逐个重置子类型。
// 类型上缓存的列视图和投影始终是隐藏忽略列的视图，放开的列只保存在作用域的 ctx 中
type EntityType struct {
	registry *Registry
	name     string
	table    string
	parent   *EntityType
	children []*EntityType // 由 registry.mu 保护

	logger logger.Logger

	// scopeSem 容量为 1，在整个 WithIncludedColumns 作用域内持有
	scopeSem *semaphore.Weighted
	group    singleflight.Group

	mu         sync.RWMutex
	primaryKey string
	ownIgnored bool
	ignored    []string
	generation uint64
	meta       *metadata

	// fullGeneration 只在后端列被清除时递增，切换可见性不影响正在进行的获取
	fullGeneration uint64
	full           []schema.Column

	baseScopes        []Scope
	projection        *Projection
	projectionEnabled bool
	projectionStale   bool
}

// metadata 按忽略列和某个可见性过滤后的列视图
type metadata struct {
	columns   []schema.Column
	names     []string
	accessors map[string]*Accessor
}

func buildMetadata(full []schema.Column, hidden func(string) bool) *metadata {
	m := &metadata{accessors: make(map[string]*Accessor, len(full))}
	for _, c := range full {
		if hidden(c.Name) {
			continue
		}
		m.columns = append(m.columns, c)
		m.names = append(m.names, c.Name)
		m.accessors[c.Name] = &Accessor{Name: c.Name}
	}
	return m
}

func (t *EntityType) Name() string {
	return t.name
}

func (t *EntityType) Table() string {
	return t.table
}

func (t *EntityType) Parent() *EntityType {
	return t.parent
}

func (t *EntityType) Registry() *Registry {
	return t.registry
}

func (t *EntityType) String() string {
	return t.name
}

// resetDerivedLocked 清除过滤后的视图，保留后端列
func (t *EntityType) resetDerivedLocked() {
	t.meta = nil
	t.generation++
	if t.projectionEnabled {
		t.projectionStale = true
	}
}

func (t *EntityType) resetLocked() {
	t.full = nil
	t.fullGeneration++
	t.resetDerivedLocked()
}
