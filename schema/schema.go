package schema

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// ErrTableNotFound 后端存储中不存在该表
var ErrTableNotFound = errors.New("table not found")

// Column 一个物理列的描述，从后端存储获取后不再修改
type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primaryKey"`
}

func (c Column) String() string {
	return c.Name
}

// Fetcher 一次性获取表的全部列，按存储中的列顺序返回
type Fetcher interface {
	FetchColumns(ctx context.Context, table string) ([]Column, error)
}

// FetcherFunc 函数适配 Fetcher
type FetcherFunc func(ctx context.Context, table string) ([]Column, error)

func (f FetcherFunc) FetchColumns(ctx context.Context, table string) ([]Column, error) {
	return f(ctx, table)
}

// Names 返回列名
func Names(columns []Column) []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	return names
}

// PrimaryKey 返回第一个主键列名，没有主键时返回空字符串
func PrimaryKey(columns []Column) string {
	for _, c := range columns {
		if c.PrimaryKey {
			return c.Name
		}
	}
	return ""
}

func isYes(v any) bool {
	switch x := v.(type) {
	case string:
		return strings.EqualFold(x, "yes") || x == "1" || strings.EqualFold(x, "true")
	case []byte:
		return isYes(string(x))
	case bool:
		return x
	case int64:
		return x != 0
	}
	return false
}
