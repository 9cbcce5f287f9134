package cfg

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

var ErrUnsupportedFormat = errors.New("unsupported config format")

// Load 读取配置文件，根据扩展名选择解码器，并转换到 object
func Load(filename string, object any) error {
	node, err := LoadNode(filename)
	if err != nil {
		return err
	}
	return node.ConvertTo(object)
}

// LoadNode 读取配置文件并解码成未转换的配置树
func LoadNode(filename string) (*Node, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "read config file %s failed", filename)
	}
	node, err := Decode(data, FormatOf(filename))
	if err != nil {
		return nil, errors.WithMessagef(err, "decode config file %s failed", filename)
	}
	return node, nil
}

// FormatOf 根据文件扩展名推断配置格式
func FormatOf(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "yml" {
		return "yaml"
	}
	return ext
}

// Decode 按 format 解码 data
func Decode(data []byte, format string) (*Node, error) {
	d, ok := decoders[strings.ToLower(format)]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "format %q", format)
	}
	v, err := d(data)
	if err != nil {
		return nil, err
	}
	return NewNode(v), nil
}
