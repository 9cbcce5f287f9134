package cfg

import (
	"encoding/json"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

type decodeFunc func(data []byte) (any, error)

var decoders = map[string]decodeFunc{
	"yaml": decodeYAML,
	"json": decodeJSON,
	"toml": decodeTOML,
	"ini":  decodeINI,
}

func decodeYAML(data []byte) (any, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, errors.Wrap(err, "yaml.Unmarshal failed")
	}
	return v, nil
}

func decodeJSON(data []byte) (any, error) {
	var v any
	if len(strings.TrimSpace(string(data))) == 0 {
		return map[string]any{}, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, errors.Wrap(err, "json.Unmarshal failed")
	}
	return v, nil
}

func decodeTOML(data []byte) (any, error) {
	v := map[string]any{}
	if err := toml.Unmarshal(data, &v); err != nil {
		return nil, errors.Wrap(err, "toml.Unmarshal failed")
	}
	return v, nil
}

// decodeINI 默认分区的键放在顶层，分区名中的点号表示嵌套
func decodeINI(data []byte) (any, error) {
	f, err := ini.Load(data)
	if err != nil {
		return nil, errors.Wrap(err, "ini.Load failed")
	}

	root := map[string]any{}
	for _, section := range f.Sections() {
		m := root
		if section.Name() != ini.DefaultSection {
			for _, part := range strings.Split(section.Name(), ".") {
				sub, ok := m[part].(map[string]any)
				if !ok {
					sub = map[string]any{}
					m[part] = sub
				}
				m = sub
			}
		}
		for _, key := range section.Keys() {
			m[key.Name()] = key.Value()
		}
	}
	return root, nil
}
