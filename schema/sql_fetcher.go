package schema

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/hatlonely/ignorable/rdb"
	"github.com/hatlonely/ignorable/ref"
)

func init() {
	ref.MustRegisterT[*SQLFetcher](NewSQLFetcherWithOptions)
}

type SQLFetcherOptions struct {
	rdb.SQLOptions

	// Probe 不查系统表，通过 SELECT * ... WHERE 1=0 的结果集列信息获取
	Probe bool `cfg:"probe"`
}

// SQLFetcher 通过 database/sql 获取表结构
type SQLFetcher struct {
	sql   *rdb.SQL
	probe bool
}

func NewSQLFetcherWithOptions(options *SQLFetcherOptions) (*SQLFetcher, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	s, err := rdb.NewSQLWithOptions(&options.SQLOptions)
	if err != nil {
		return nil, errors.WithMessage(err, "create sql client failed")
	}
	return &SQLFetcher{sql: s, probe: options.Probe}, nil
}

func NewSQLFetcher(s *rdb.SQL) *SQLFetcher {
	return &SQLFetcher{sql: s}
}

// WithProbe 返回使用结果集列信息获取表结构的副本
func (f *SQLFetcher) WithProbe() *SQLFetcher {
	return &SQLFetcher{sql: f.sql, probe: true}
}

func (f *SQLFetcher) SQL() *rdb.SQL {
	return f.sql
}

func (f *SQLFetcher) Close() error {
	return f.sql.Close()
}

func (f *SQLFetcher) FetchColumns(ctx context.Context, table string) ([]Column, error) {
	if f.probe {
		return f.probeColumns(ctx, table)
	}

	var columns []Column
	var err error
	switch f.sql.Driver() {
	case rdb.DriverSQLite3:
		columns, err = f.sqliteColumns(ctx, table)
	case rdb.DriverMySQL:
		columns, err = f.informationSchemaColumns(ctx, mysqlColumnsSQL, table)
	case rdb.DriverPostgres:
		columns, err = f.informationSchemaColumns(ctx, postgresColumnsSQL, table)
	default:
		columns, err = f.probeColumns(ctx, table)
	}
	if err != nil {
		return nil, err
	}
	// 系统表查询对不存在的表返回空结果
	if len(columns) == 0 {
		return nil, errors.Wrapf(ErrTableNotFound, "table %s", table)
	}
	return columns, nil
}

func (f *SQLFetcher) sqliteColumns(ctx context.Context, table string) ([]Column, error) {
	records, err := f.sql.Query(ctx, fmt.Sprintf("PRAGMA table_info(%s)", f.sql.QuoteIdentifier(table)))
	if err != nil {
		return nil, errors.WithMessagef(err, "fetch columns of %s failed", table)
	}

	columns := make([]Column, 0, len(records))
	for _, r := range records {
		m := r.Map()
		name, _ := m["name"].(string)
		typ, _ := m["type"].(string)
		columns = append(columns, Column{
			Name:       name,
			Type:       typ,
			Nullable:   !isYes(m["notnull"]),
			PrimaryKey: isYes(m["pk"]),
		})
	}
	return columns, nil
}

const mysqlColumnsSQL = `SELECT column_name AS name, column_type AS type, is_nullable AS nullable, column_key = 'PRI' AS pk
FROM information_schema.columns
WHERE table_schema = DATABASE() AND table_name = ?
ORDER BY ordinal_position`

const postgresColumnsSQL = `SELECT c.column_name AS name, c.data_type AS type, c.is_nullable AS nullable,
  EXISTS (
    SELECT 1 FROM information_schema.table_constraints tc
    JOIN information_schema.key_column_usage k
      ON tc.constraint_name = k.constraint_name AND tc.table_schema = k.table_schema
    WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = c.table_schema
      AND tc.table_name = c.table_name AND k.column_name = c.column_name
  ) AS pk
FROM information_schema.columns c
WHERE c.table_schema = current_schema() AND c.table_name = ?
ORDER BY c.ordinal_position`

func (f *SQLFetcher) informationSchemaColumns(ctx context.Context, sqlStr string, table string) ([]Column, error) {
	records, err := f.sql.Query(ctx, sqlStr, table)
	if err != nil {
		return nil, errors.WithMessagef(err, "fetch columns of %s failed", table)
	}

	columns := make([]Column, 0, len(records))
	for _, r := range records {
		m := r.Map()
		columns = append(columns, Column{
			Name:       fmt.Sprint(m["name"]),
			Type:       fmt.Sprint(m["type"]),
			Nullable:   isYes(m["nullable"]),
			PrimaryKey: isYes(m["pk"]),
		})
	}
	return columns, nil
}

// probeColumns 适用于任意驱动，但拿不到主键信息
func (f *SQLFetcher) probeColumns(ctx context.Context, table string) ([]Column, error) {
	rows, err := f.sql.DB().QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s WHERE 1=0", f.sql.QuoteIdentifier(table)))
	if err != nil {
		return nil, errors.Wrapf(err, "probe columns of %s failed", table)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, errors.Wrap(err, "rows.ColumnTypes failed")
	}

	columns := make([]Column, 0, len(types))
	for _, ct := range types {
		nullable, ok := ct.Nullable()
		columns = append(columns, Column{
			Name:     ct.Name(),
			Type:     ct.DatabaseTypeName(),
			Nullable: nullable || !ok,
		})
	}
	return columns, nil
}
