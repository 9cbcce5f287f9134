package ignorable

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVisibility(t *testing.T) {
	tests := []struct {
		name        string
		visibility  Visibility
		elevated    bool
		includesAll bool
		includes    map[string]bool
		names       []string
		str         string
	}{
		{
			name:       "正常",
			visibility: Normal(),
			includes:   map[string]bool{"legacy": false},
			str:        "normal",
		},
		{
			name:        "放开全部",
			visibility:  Elevated(),
			elevated:    true,
			includesAll: true,
			includes:    map[string]bool{"legacy": true, "any": true},
			str:         "elevated(*)",
		},
		{
			name:       "放开部分",
			visibility: Elevated("legacy", "some_attributes"),
			elevated:   true,
			includes:   map[string]bool{"legacy": true, "some_attributes": true, "name": false},
			names:      []string{"legacy", "some_attributes"},
			str:        "elevated(legacy,some_attributes)",
		},
		{
			name:       "放开空集合",
			visibility: elevatedSet(nil),
			elevated:   true,
			includes:   map[string]bool{"legacy": false},
			names:      []string{},
			str:        "elevated()",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.elevated, tt.visibility.IsElevated())
			assert.Equal(t, tt.includesAll, tt.visibility.IncludesAll())
			for name, expected := range tt.includes {
				assert.Equal(t, expected, tt.visibility.Includes(name), name)
			}
			assert.Equal(t, tt.names, tt.visibility.Names())
			assert.Equal(t, tt.str, tt.visibility.String())
		})
	}
}
