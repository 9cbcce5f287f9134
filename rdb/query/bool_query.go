package query

import (
	"strings"
)

// BoolQuery 布尔查询
type BoolQuery struct {
	Must    []Query `json:"must,omitempty"`
	Should  []Query `json:"should,omitempty"`
	MustNot []Query `json:"must_not,omitempty"`
}

func (q *BoolQuery) Type() QueryType {
	return QueryTypeBool
}

func (q *BoolQuery) ToSQL() (string, []any, error) {
	var conditions []string
	var args []any

	render := func(queries []Query, wrap func(string) string, sep string) error {
		parts := make([]string, 0, len(queries))
		for _, query := range queries {
			sql, queryArgs, err := query.ToSQL()
			if err != nil {
				return err
			}
			parts = append(parts, wrap(sql))
			args = append(args, queryArgs...)
		}
		if len(parts) > 0 {
			conditions = append(conditions, "("+strings.Join(parts, sep)+")")
		}
		return nil
	}

	paren := func(s string) string { return "(" + s + ")" }
	not := func(s string) string { return "NOT (" + s + ")" }

	if err := render(q.Must, paren, " AND "); err != nil {
		return "", nil, err
	}
	if err := render(q.Should, paren, " OR "); err != nil {
		return "", nil, err
	}
	if err := render(q.MustNot, not, " AND "); err != nil {
		return "", nil, err
	}

	if len(conditions) == 0 {
		return "1=1", nil, nil
	}
	return strings.Join(conditions, " AND "), args, nil
}
