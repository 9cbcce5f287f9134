package rdb

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/hatlonely/ignorable/rdb/query"
)

// Join 关联表，Columns 为空时选择关联表的全部列
//
// Columns 中的列以 "表名.列名" 为别名；选择全部列时结果按列名保存，和主表重名的列以主表为准
type Join struct {
	Kind    string // INNER, LEFT ...，为空时为 INNER
	Table   string
	On      string
	Columns []string
}

// SelectStatement 查询语句
//
// Columns 为空时渲染为 SELECT *；否则只选择 Table 自己的列，并用表名限定，
// 关联表的列由 Join 自己决定，不受 Columns 影响
type SelectStatement struct {
	Table   string
	Columns []string
	Joins   []Join
	Where   []query.Query
	OrderBy []string
	Limit   int
	Offset  int
}

func NewSelectStatement(table string) *SelectStatement {
	return &SelectStatement{Table: table}
}

// Select 替换选择的列
func (s *SelectStatement) Select(columns ...string) *SelectStatement {
	s.Columns = append([]string(nil), columns...)
	return s
}

func (s *SelectStatement) AndWhere(q query.Query) *SelectStatement {
	if q != nil {
		s.Where = append(s.Where, q)
	}
	return s
}

func (s *SelectStatement) Join(join Join) *SelectStatement {
	s.Joins = append(s.Joins, join)
	return s
}

func (s *SelectStatement) Order(orderBy ...string) *SelectStatement {
	s.OrderBy = append(s.OrderBy, orderBy...)
	return s
}

// Clone 深拷贝，scope 修改副本时不影响原语句
func (s *SelectStatement) Clone() *SelectStatement {
	c := *s
	c.Columns = append([]string(nil), s.Columns...)
	c.Where = append([]query.Query(nil), s.Where...)
	c.OrderBy = append([]string(nil), s.OrderBy...)
	c.Joins = make([]Join, len(s.Joins))
	for i, j := range s.Joins {
		j.Columns = append([]string(nil), j.Columns...)
		c.Joins[i] = j
	}
	return &c
}

// BuildSelect 渲染查询语句，占位符为 ?
func (s *SQL) BuildSelect(stmt *SelectStatement) (string, []any, error) {
	if stmt == nil || stmt.Table == "" {
		return "", nil, errors.New("select statement table is empty")
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(s.selectList(stmt))
	b.WriteString(" FROM ")
	b.WriteString(s.QuoteIdentifier(stmt.Table))

	for _, join := range stmt.Joins {
		kind := join.Kind
		if kind == "" {
			kind = "INNER"
		}
		fmt.Fprintf(&b, " %s JOIN %s ON %s", strings.ToUpper(kind), s.QuoteIdentifier(join.Table), join.On)
	}

	whereSQL, args, err := query.And(stmt.Where...).ToSQL()
	if err != nil {
		return "", nil, errors.WithMessage(err, "build where failed")
	}
	if whereSQL != "1=1" {
		b.WriteString(" WHERE ")
		b.WriteString(whereSQL)
	}

	if len(stmt.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(stmt.OrderBy, ", "))
	}
	if stmt.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", stmt.Limit)
	}
	if stmt.Offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", stmt.Offset)
	}

	return b.String(), args, nil
}

func (s *SQL) selectList(stmt *SelectStatement) string {
	if len(stmt.Columns) == 0 {
		return "*"
	}

	items := make([]string, 0, len(stmt.Columns)+len(stmt.Joins))
	for _, col := range stmt.Columns {
		items = append(items, s.qualify(stmt.Table, col))
	}
	for _, join := range stmt.Joins {
		if len(join.Columns) == 0 {
			items = append(items, s.QuoteIdentifier(join.Table)+".*")
			continue
		}
		for _, col := range join.Columns {
			item := s.qualify(join.Table, col)
			if !strings.ContainsAny(col, ".()* ") {
				item += " AS " + s.quoteName(join.Table+"."+col)
			}
			items = append(items, item)
		}
	}
	return strings.Join(items, ", ")
}

// qualify 已经带表名或是表达式的列原样输出
func (s *SQL) qualify(table string, column string) string {
	if strings.ContainsAny(column, ".()* ") {
		return column
	}
	return s.QuoteIdentifier(table) + "." + s.QuoteIdentifier(column)
}
