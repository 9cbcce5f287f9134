package query

// QueryType 查询类型
type QueryType string

const (
	QueryTypeBool     QueryType = "bool"
	QueryTypeTerm     QueryType = "term"
	QueryTypeTerms    QueryType = "terms"
	QueryTypeRange    QueryType = "range"
	QueryTypeExists   QueryType = "exists"
	QueryTypeMatchAll QueryType = "match_all"
)

// Query 查询条件树的节点，渲染为 WHERE 子句，参数占位符统一为 ?
type Query interface {
	Type() QueryType
	ToSQL() (string, []any, error)
}

// MatchAllQuery 匹配所有记录
type MatchAllQuery struct{}

func (q *MatchAllQuery) Type() QueryType {
	return QueryTypeMatchAll
}

func (q *MatchAllQuery) ToSQL() (string, []any, error) {
	return "1=1", nil, nil
}

// And 组合多个条件，nil 条件会被跳过
func And(queries ...Query) Query {
	var must []Query
	for _, q := range queries {
		if q != nil {
			must = append(must, q)
		}
	}
	switch len(must) {
	case 0:
		return &MatchAllQuery{}
	case 1:
		return must[0]
	}
	return &BoolQuery{Must: must}
}
