package ignorable

import (
	"sort"
	"strings"
)

// Visibility 类型当前的可见性状态
//
// Normal 时忽略列全部隐藏；Elevated 时 names 中的忽略列重新可见，
// names 为 nil 表示所有忽略列都可见
type Visibility struct {
	elevated bool
	names    map[string]struct{}
}

func Normal() Visibility {
	return Visibility{}
}

// Elevated 不传参数时表示所有忽略列都可见
func Elevated(names ...string) Visibility {
	if len(names) == 0 {
		return Visibility{elevated: true}
	}
	return elevatedSet(names)
}

// elevatedSet 空集合表示没有任何列被放开，与 Elevated() 不同
func elevatedSet(names []string) Visibility {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return Visibility{elevated: true, names: set}
}

func (v Visibility) IsElevated() bool {
	return v.elevated
}

// IncludesAll 所有忽略列都可见
func (v Visibility) IncludesAll() bool {
	return v.elevated && v.names == nil
}

// Includes name 对应的忽略列当前是否可见
func (v Visibility) Includes(name string) bool {
	if !v.elevated {
		return false
	}
	if v.names == nil {
		return true
	}
	_, ok := v.names[name]
	return ok
}

// Names 按字典序返回放开的列，IncludesAll 或 Normal 时返回 nil
func (v Visibility) Names() []string {
	if v.names == nil {
		return nil
	}
	names := make([]string, 0, len(v.names))
	for name := range v.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (v Visibility) String() string {
	switch {
	case !v.elevated:
		return "normal"
	case v.names == nil:
		return "elevated(*)"
	}
	return "elevated(" + strings.Join(v.Names(), ",") + ")"
}
