package ignorable

import (
	"context"
	"fmt"
	"strings"

	"github.com/hatlonely/ignorable/schema"
)

// IgnoreColumns 把列加入忽略集合并重置 t 和后代类型的列缓存
//
// 没有自己忽略集合的子类型先复制父类型的集合，之后两者互不影响；
// 重复注册同一列没有任何效果，也不会访问后端
func (t *EntityType) IgnoreColumns(names ...string) {
	names = normalize(names)

	t.mu.RLock()
	inherit := !t.ownIgnored && t.parent != nil
	t.mu.RUnlock()
	var inherited []string
	if inherit {
		inherited = t.parent.IgnoredColumns()
	}

	t.mu.Lock()
	if !t.ownIgnored {
		t.ignored = inherited
		t.ownIgnored = true
	}
	before := len(t.ignored)
	t.ignored = appendUnique(t.ignored, names...)
	changed := len(t.ignored) != before || inherit
	ignored := append([]string(nil), t.ignored...)
	t.mu.Unlock()

	if !changed {
		return
	}
	t.logger.Info("ignored columns registered", "columns", ignored)
	t.ResetMetadata()
}

func (t *EntityType) IgnoreColumn(name string) {
	t.IgnoreColumns(name)
}

// SetIgnoredColumns 用 names 替换忽略集合，子类型可以借此拥有和父类型不同的集合，包括空集合
func (t *EntityType) SetIgnoredColumns(names ...string) {
	t.mu.Lock()
	t.ignored = appendUnique(nil, normalize(names)...)
	t.ownIgnored = true
	ignored := append([]string(nil), t.ignored...)
	t.mu.Unlock()

	t.logger.Info("ignored columns replaced", "columns", ignored)
	t.ResetMetadata()
}

// IgnoredColumns 返回生效的忽略集合，没有自己集合的子类型返回父类型的
func (t *EntityType) IgnoredColumns() []string {
	t.mu.RLock()
	if t.ownIgnored || t.parent == nil {
		defer t.mu.RUnlock()
		return append([]string(nil), t.ignored...)
	}
	parent := t.parent
	t.mu.RUnlock()
	return parent.IgnoredColumns()
}

// OwnsIgnoredColumns t 是否拥有自己的忽略集合
func (t *EntityType) OwnsIgnoredColumns() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ownIgnored
}

// IsIgnored column 在 ctx 的可见性下是否被隐藏，column 可以是列名、schema.Column 或 fmt.Stringer
func (t *EntityType) IsIgnored(ctx context.Context, column any) bool {
	return t.hiddenFunc(t.Visibility(ctx))(columnName(column))
}

// hiddenFunc 对忽略集合取一次快照
func (t *EntityType) hiddenFunc(v Visibility) func(string) bool {
	ignored := map[string]struct{}{}
	for _, name := range t.IgnoredColumns() {
		ignored[name] = struct{}{}
	}

	return func(name string) bool {
		if _, ok := ignored[name]; !ok {
			return false
		}
		return !v.Includes(name)
	}
}

func columnName(column any) string {
	switch c := column.(type) {
	case string:
		return strings.TrimSpace(c)
	case schema.Column:
		return c.Name
	case *schema.Column:
		if c == nil {
			return ""
		}
		return c.Name
	case fmt.Stringer:
		return strings.TrimSpace(c.String())
	}
	return strings.TrimSpace(fmt.Sprint(column))
}

func normalize(names []string) []string {
	result := make([]string, 0, len(names))
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			result = append(result, name)
		}
	}
	return result
}

func appendUnique(dst []string, names ...string) []string {
	seen := make(map[string]struct{}, len(dst)+len(names))
	for _, name := range dst {
		seen[name] = struct{}{}
	}
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		dst = append(dst, name)
	}
	return dst
}
