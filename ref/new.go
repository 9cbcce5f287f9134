package ref

import (
	"reflect"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// TypeOptions 通过 namespace + type 定位构造函数，Options 为构造参数
type TypeOptions struct {
	Namespace string `cfg:"namespace"`
	Type      string `cfg:"type"`
	Options   any    `cfg:"options"`
}

// Convertable 尚未解码的配置数据，New 会把它转换成构造函数需要的参数类型
type Convertable interface {
	ConvertTo(object any) error
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

type constructor struct {
	fn       reflect.Value
	argType  reflect.Type // nil 表示无参构造函数
	hasError bool
}

func newConstructor(fn any) (*constructor, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return nil, errors.Errorf("constructor must be a function, got %T", fn)
	}

	t := v.Type()
	if t.NumIn() > 1 {
		return nil, errors.Errorf("constructor must have 0 or 1 input parameters, got %d", t.NumIn())
	}
	if t.NumOut() < 1 || t.NumOut() > 2 {
		return nil, errors.Errorf("constructor must have 1 or 2 return values, got %d", t.NumOut())
	}
	if t.NumOut() == 2 && !t.Out(1).Implements(errorType) {
		return nil, errors.New("second return value must be error type")
	}

	c := &constructor{fn: v, hasError: t.NumOut() == 2}
	if t.NumIn() == 1 {
		c.argType = t.In(0)
	}
	return c, nil
}

// argument 准备调用参数，Convertable 会被转换为目标参数类型
func (c *constructor) argument(options any) (reflect.Value, error) {
	if options == nil {
		return reflect.Value{}, errors.New("constructor requires options but got nil")
	}

	convertable, ok := options.(Convertable)
	if !ok {
		v := reflect.ValueOf(options)
		if !v.Type().AssignableTo(c.argType) {
			return reflect.Value{}, errors.Errorf("options type %T is not assignable to %v", options, c.argType)
		}
		return v, nil
	}

	if c.argType.Kind() == reflect.Ptr {
		target := reflect.New(c.argType.Elem())
		if err := convertable.ConvertTo(target.Interface()); err != nil {
			return reflect.Value{}, errors.WithMessagef(err, "convert options to %v failed", c.argType)
		}
		return target, nil
	}

	target := reflect.New(c.argType)
	if err := convertable.ConvertTo(target.Interface()); err != nil {
		return reflect.Value{}, errors.WithMessagef(err, "convert options to %v failed", c.argType)
	}
	return target.Elem(), nil
}

func (c *constructor) call(options any) (any, error) {
	var args []reflect.Value
	if c.argType != nil {
		arg, err := c.argument(options)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}

	results := c.fn.Call(args)
	if c.hasError && !results[1].IsNil() {
		return nil, results[1].Interface().(error)
	}
	return results[0].Interface(), nil
}

var constructors sync.Map

func key(namespace, type_ string) string {
	return namespace + ":" + type_
}

// Register 注册构造函数，同一个 key 重复注册同一个函数是允许的
func Register(namespace string, type_ string, fn any) error {
	k := key(namespace, type_)
	if existing, ok := constructors.Load(k); ok {
		if existing.(*constructor).fn.Pointer() == reflect.ValueOf(fn).Pointer() {
			return nil
		}
		return errors.Errorf("constructor for %s already registered with different function", k)
	}

	c, err := newConstructor(fn)
	if err != nil {
		return errors.WithMessagef(err, "register %s failed", k)
	}
	constructors.Store(k, c)
	return nil
}

func MustRegister(namespace string, type_ string, fn any) {
	if err := Register(namespace, type_, fn); err != nil {
		panic(err)
	}
}

// RegisterT 使用 T 的包路径和类型名作为 namespace 和 type
func RegisterT[T any](fn any) error {
	namespace, type_, err := typeKey[T]()
	if err != nil {
		return err
	}
	return Register(namespace, type_, fn)
}

func MustRegisterT[T any](fn any) {
	if err := RegisterT[T](fn); err != nil {
		panic(err)
	}
}

// New 根据 namespace 和 type 构造对象
func New(namespace string, type_ string, options any) (any, error) {
	k := key(namespace, type_)
	value, ok := constructors.Load(k)
	if !ok {
		return nil, errors.Errorf("constructor not found for %s", k)
	}
	return value.(*constructor).call(options)
}

// NewT 按 T 的类型查找构造函数并构造对象
func NewT[T any](options any) (T, error) {
	var zero T
	namespace, type_, err := typeKey[T]()
	if err != nil {
		return zero, err
	}

	obj, err := New(namespace, type_, options)
	if err != nil {
		return zero, err
	}
	result, ok := obj.(T)
	if !ok {
		return zero, errors.Errorf("created object %T is not of type %T", obj, zero)
	}
	return result, nil
}

// NewWithOptions 通过 TypeOptions 构造对象
func NewWithOptions(options *TypeOptions) (any, error) {
	if options == nil {
		return nil, errors.New("type options is nil")
	}
	return New(options.Namespace, options.Type, options.Options)
}

// Registered 返回某个 namespace 下已注册的类型名，用于错误提示
func Registered(namespace string) []string {
	var types []string
	prefix := namespace + ":"
	constructors.Range(func(k, _ any) bool {
		if s := k.(string); len(s) > len(prefix) && s[:len(prefix)] == prefix {
			types = append(types, s[len(prefix):])
		}
		return true
	})
	sort.Strings(types)
	return types
}

func typeKey[T any]() (string, string, error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.PkgPath() == "" || t.Name() == "" {
		return "", "", errors.Errorf("cannot determine package path or type name for type %v", t)
	}
	return t.PkgPath(), t.Name(), nil
}
