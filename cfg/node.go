package cfg

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Node 已解码但尚未转换成结构体的配置树
//
// Node 实现了 ref.Convertable，ref.TypeOptions.Options 中保留的 Node
// 会在构造对象时转换成构造函数需要的参数类型
type Node struct {
	data any
}

func NewNode(data any) *Node {
	return &Node{data: data}
}

func (n *Node) Data() any {
	if n == nil {
		return nil
	}
	return n.data
}

// Sub 获取子配置，key 用点号分隔，数字表示数组下标，例如 "entities.0.name"
func (n *Node) Sub(key string) *Node {
	if key == "" {
		return n
	}

	current := n.Data()
	for _, k := range strings.Split(key, ".") {
		switch v := current.(type) {
		case map[string]any:
			current = v[k]
		case []any:
			idx, err := strconv.Atoi(k)
			if err != nil || idx < 0 || idx >= len(v) {
				return NewNode(nil)
			}
			current = v[idx]
		default:
			return NewNode(nil)
		}
	}
	return NewNode(current)
}

// ConvertTo 转换到 object，然后设置 def 默认值并校验
func (n *Node) ConvertTo(object any) error {
	rv := reflect.ValueOf(object)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.Errorf("object must be a non-nil pointer, got %T", object)
	}
	if err := convertValue(n.Data(), rv.Elem()); err != nil {
		return errors.WithMessage(err, "convert config failed")
	}
	if err := SetDefaults(object); err != nil {
		return errors.WithMessage(err, "set defaults failed")
	}
	if err := Validate(object); err != nil {
		return errors.WithMessage(err, "validate config failed")
	}
	return nil
}
