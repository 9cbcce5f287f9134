package cfg

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/hatlonely/ignorable/ref"
	"github.com/pkg/errors"
)

var (
	durationType    = reflect.TypeOf(time.Duration(0))
	typeOptionsType = reflect.TypeOf(ref.TypeOptions{})
)

func convertValue(src any, dst reflect.Value) error {
	if src == nil {
		return nil
	}

	if dst.Kind() == reflect.Ptr {
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return convertValue(src, dst.Elem())
	}

	if node, ok := src.(*Node); ok {
		return convertValue(node.Data(), dst)
	}

	sv := reflect.ValueOf(src)
	if dst.Type() == durationType {
		return convertDuration(sv, dst)
	}

	switch dst.Kind() {
	case reflect.Struct:
		if dst.Type() == typeOptionsType {
			return convertTypeOptions(sv, dst)
		}
		return convertStruct(sv, dst)
	case reflect.Map:
		return convertMap(sv, dst)
	case reflect.Slice:
		return convertSlice(sv, dst)
	case reflect.Interface:
		if sv.Type().AssignableTo(dst.Type()) {
			dst.Set(sv)
			return nil
		}
	}

	if sv.Kind() == reflect.String {
		return convertString(sv.String(), dst)
	}

	if sv.Type().AssignableTo(dst.Type()) {
		dst.Set(sv)
		return nil
	}
	if isNumber(sv.Kind()) && isNumber(dst.Kind()) {
		dst.Set(sv.Convert(dst.Type()))
		return nil
	}
	return errors.Errorf("cannot convert %v to %v", sv.Type(), dst.Type())
}

// convertTypeOptions 保留 options 为 Node，交给 ref.New 按构造函数参数类型转换
func convertTypeOptions(sv reflect.Value, dst reflect.Value) error {
	m, ok := sv.Interface().(map[string]any)
	if !ok {
		return errors.Errorf("type options must be a map, got %v", sv.Type())
	}
	options := dst.Addr().Interface().(*ref.TypeOptions)
	for k, v := range m {
		switch strings.ToLower(k) {
		case "namespace":
			options.Namespace, _ = v.(string)
		case "type":
			options.Type, _ = v.(string)
		case "options":
			options.Options = NewNode(v)
		}
	}
	return nil
}

func convertStruct(sv reflect.Value, dst reflect.Value) error {
	m, ok := sv.Interface().(map[string]any)
	if !ok {
		return errors.Errorf("cannot convert %v to struct %v", sv.Type(), dst.Type())
	}

	rt := dst.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		tag := field.Tag.Get("cfg")
		if tag == "-" {
			continue
		}
		// 匿名字段没有 tag 时和外层共用同一层配置
		if field.Anonymous && tag == "" {
			if err := convertValue(m, dst.Field(i)); err != nil {
				return errors.WithMessagef(err, "field %s", name)
			}
			continue
		}
		if tag = strings.Split(tag, ",")[0]; tag != "" {
			name = tag
		}

		value, found := m[name]
		if !found {
			for k, v := range m {
				if strings.EqualFold(k, name) {
					value, found = v, true
					break
				}
			}
		}
		if !found {
			continue
		}
		if err := convertValue(value, dst.Field(i)); err != nil {
			return errors.WithMessagef(err, "field %s", name)
		}
	}
	return nil
}

func convertMap(sv reflect.Value, dst reflect.Value) error {
	if sv.Kind() != reflect.Map {
		return errors.Errorf("cannot convert %v to map", sv.Type())
	}
	if dst.IsNil() {
		dst.Set(reflect.MakeMapWithSize(dst.Type(), sv.Len()))
	}
	for _, key := range sv.MapKeys() {
		k := reflect.New(dst.Type().Key()).Elem()
		if err := convertValue(key.Interface(), k); err != nil {
			return err
		}
		v := reflect.New(dst.Type().Elem()).Elem()
		if err := convertValue(sv.MapIndex(key).Interface(), v); err != nil {
			return errors.WithMessagef(err, "key %v", key.Interface())
		}
		dst.SetMapIndex(k, v)
	}
	return nil
}

// convertSlice 字符串按逗号切分，便于 ini 中书写列表
func convertSlice(sv reflect.Value, dst reflect.Value) error {
	if sv.Kind() == reflect.String {
		var items []any
		for _, s := range strings.Split(sv.String(), ",") {
			if s = strings.TrimSpace(s); s != "" {
				items = append(items, s)
			}
		}
		sv = reflect.ValueOf(items)
	}
	if sv.Kind() != reflect.Slice && sv.Kind() != reflect.Array {
		return errors.Errorf("cannot convert %v to slice", sv.Type())
	}
	out := reflect.MakeSlice(dst.Type(), sv.Len(), sv.Len())
	for i := 0; i < sv.Len(); i++ {
		if err := convertValue(sv.Index(i).Interface(), out.Index(i)); err != nil {
			return errors.WithMessagef(err, "index %d", i)
		}
	}
	dst.Set(out)
	return nil
}

func convertDuration(sv reflect.Value, dst reflect.Value) error {
	switch {
	case sv.Kind() == reflect.String:
		d, err := time.ParseDuration(sv.String())
		if err != nil {
			return errors.Wrapf(err, "parse duration %q failed", sv.String())
		}
		dst.SetInt(int64(d))
	case sv.CanInt():
		dst.SetInt(sv.Int())
	case sv.CanFloat():
		dst.SetInt(int64(sv.Float() * float64(time.Second)))
	default:
		return errors.Errorf("cannot convert %v to time.Duration", sv.Type())
	}
	return nil
}

func convertString(s string, dst reflect.Value) error {
	switch {
	case dst.Kind() == reflect.String:
		dst.SetString(s)
	case dst.Kind() == reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return errors.Wrapf(err, "parse bool %q failed", s)
		}
		dst.SetBool(b)
	case dst.CanInt():
		i, err := strconv.ParseInt(s, 0, dst.Type().Bits())
		if err != nil {
			return errors.Wrapf(err, "parse int %q failed", s)
		}
		dst.SetInt(i)
	case dst.CanUint():
		u, err := strconv.ParseUint(s, 0, dst.Type().Bits())
		if err != nil {
			return errors.Wrapf(err, "parse uint %q failed", s)
		}
		dst.SetUint(u)
	case dst.CanFloat():
		f, err := strconv.ParseFloat(s, dst.Type().Bits())
		if err != nil {
			return errors.Wrapf(err, "parse float %q failed", s)
		}
		dst.SetFloat(f)
	default:
		return errors.Errorf("cannot convert string to %v", dst.Type())
	}
	return nil
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
