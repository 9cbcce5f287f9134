package ignorable

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hatlonely/ignorable/rdb"
	"github.com/hatlonely/ignorable/rdb/query"
)

// Scope 默认 scope，同时作用于 gorm 查询和 rdb 查询语句
type Scope interface {
	Gorm(db *gorm.DB) *gorm.DB
	Statement(stmt *rdb.SelectStatement)
}

// Projection 默认查询选择的列，只约束所属表自己的列
type Projection struct {
	table   string
	columns []string
}

func NewProjection(table string, columns ...string) *Projection {
	return &Projection{table: table, columns: append([]string(nil), columns...)}
}

func (p *Projection) Table() string {
	return p.table
}

func (p *Projection) Columns() []string {
	return append([]string(nil), p.columns...)
}

// Gorm 用表名限定列名，查询中已有的 select 保留在后面
func (p *Projection) Gorm(db *gorm.DB) *gorm.DB {
	selects := make([]string, 0, len(p.columns)+len(db.Statement.Selects))
	for _, col := range p.columns {
		selects = append(selects, db.Statement.Quote(clause.Column{Table: p.table, Name: col}))
	}
	selects = append(selects, db.Statement.Selects...)
	return db.Select(selects)
}

func (p *Projection) Statement(stmt *rdb.SelectStatement) {
	columns := append([]string(nil), p.columns...)
	seen := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		seen[col] = struct{}{}
	}
	for _, col := range stmt.Columns {
		if _, ok := seen[col]; !ok {
			columns = append(columns, col)
		}
	}
	stmt.Columns = columns
}

// WhereScope 条件 scope
type WhereScope struct {
	Query query.Query
}

func (s WhereScope) Gorm(db *gorm.DB) *gorm.DB {
	sql, args, err := s.Query.ToSQL()
	if err != nil {
		db.AddError(err)
		return db
	}
	return db.Where(sql, args...)
}

func (s WhereScope) Statement(stmt *rdb.SelectStatement) {
	stmt.AndWhere(s.Query)
}
