package rdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/hatlonely/ignorable/rdb/query"
)

type SQLOptions struct {
	Driver   string `cfg:"driver" def:"mysql" validate:"oneof=mysql sqlite3 postgres"`
	DSN      string `cfg:"dsn"`
	Host     string `cfg:"host" def:"localhost"`
	Port     string `cfg:"port"`
	Database string `cfg:"database"`
	Username string `cfg:"username"`
	Password string `cfg:"password"`
	Charset  string `cfg:"charset" def:"utf8mb4"`
	SSLMode  string `cfg:"sslMode" def:"disable"`
	MaxConns int    `cfg:"maxConns" def:"10"`
	MaxIdle  int    `cfg:"maxIdle" def:"5"`
}

// SQL database/sql 之上的轻量客户端
type SQL struct {
	db     *sql.DB
	driver string
}

func NewSQLWithOptions(options *SQLOptions) (*SQL, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}

	dsn, err := buildDSN(options)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(options.Driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "sql.Open %s failed", options.Driver)
	}

	if options.MaxConns > 0 {
		db.SetMaxOpenConns(options.MaxConns)
	}
	if options.MaxIdle > 0 {
		db.SetMaxIdleConns(options.MaxIdle)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "db.Ping failed")
	}

	return &SQL{db: db, driver: options.Driver}, nil
}

// NewSQL 包装已经打开的连接，例如 sqlmock
func NewSQL(db *sql.DB, driver string) *SQL {
	return &SQL{db: db, driver: driver}
}

func buildDSN(options *SQLOptions) (string, error) {
	if options.DSN != "" {
		return options.DSN, nil
	}

	switch options.Driver {
	case DriverMySQL:
		port := options.Port
		if port == "" {
			port = "3306"
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=Local",
			options.Username, options.Password, options.Host, port, options.Database, options.Charset), nil
	case DriverPostgres:
		port := options.Port
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			options.Host, port, options.Username, options.Password, options.Database, options.SSLMode), nil
	case DriverSQLite3:
		return options.Database, nil
	}
	return "", errors.Wrapf(ErrUnsupportedDriver, "driver %q", options.Driver)
}

func (s *SQL) DB() *sql.DB {
	return s.db
}

func (s *SQL) Driver() string {
	return s.driver
}

func (s *SQL) Close() error {
	return s.db.Close()
}

// QuoteIdentifier 按驱动引用标识符，带点号的名字逐段引用
func (s *SQL) QuoteIdentifier(name string) string {
	parts := strings.Split(name, ".")
	for i, part := range parts {
		parts[i] = s.quoteName(part)
	}
	return strings.Join(parts, ".")
}

// quoteName 把 name 整体作为一个标识符引用
func (s *SQL) quoteName(name string) string {
	if s.driver == DriverMySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// formatSQL 将 ? 占位符转换为驱动对应的格式，字符串和引用的标识符中的 ? 保持不变
func (s *SQL) formatSQL(sqlStr string) string {
	if s.driver != DriverPostgres {
		return sqlStr
	}
	var b strings.Builder
	var quote rune
	n := 0
	for _, c := range sqlStr {
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '?':
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// Select 执行查询语句
func (s *SQL) Select(ctx context.Context, stmt *SelectStatement) ([]*Record, error) {
	sqlStr, args, err := s.BuildSelect(stmt)
	if err != nil {
		return nil, err
	}
	return s.Query(ctx, sqlStr, args...)
}

// Query 执行原始查询，占位符使用 ?
//
// 结果按列名保存，重名的列只保留第一次出现的值；二进制列保持 []byte，其他列的 []byte 转换为 string
func (s *SQL) Query(ctx context.Context, sqlStr string, args ...any) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, s.formatSQL(sqlStr), args...)
	if err != nil {
		return nil, errors.Wrapf(err, "query [%s] failed", sqlStr)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "rows.Columns failed")
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, errors.Wrap(err, "rows.ColumnTypes failed")
	}
	binary := make([]bool, len(types))
	for i, ct := range types {
		binary[i] = isBinaryType(ct.DatabaseTypeName())
	}

	var records []*Record
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, "rows.Scan failed")
		}

		record := NewRecord()
		for i, col := range columns {
			if record.Has(col) {
				continue
			}
			if b, ok := values[i].([]byte); ok && !binary[i] {
				values[i] = string(b)
			}
			record.Set(col, values[i])
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows.Err")
	}
	return records, nil
}

// Insert 插入一行，返回自增主键
//
// postgres 不支持 LastInsertId，需要通过 returning 指定主键列
func (s *SQL) Insert(ctx context.Context, table string, record *Record, returning string) (int64, error) {
	columns := record.Columns()
	quoted := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, col := range columns {
		quoted[i] = s.QuoteIdentifier(col)
		args[i], _ = record.Get(col)
	}

	var sqlStr string
	if len(columns) == 0 {
		sqlStr = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", s.QuoteIdentifier(table))
		if s.driver == DriverMySQL {
			sqlStr = fmt.Sprintf("INSERT INTO %s () VALUES ()", s.QuoteIdentifier(table))
		}
	} else {
		sqlStr = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", s.QuoteIdentifier(table),
			strings.Join(quoted, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "))
	}

	if s.driver == DriverPostgres && returning != "" {
		var id int64
		sqlStr += " RETURNING " + s.QuoteIdentifier(returning)
		if err := s.db.QueryRowContext(ctx, s.formatSQL(sqlStr), args...).Scan(&id); err != nil {
			return 0, errors.Wrapf(err, "insert into %s failed", table)
		}
		return id, nil
	}

	result, err := s.db.ExecContext(ctx, s.formatSQL(sqlStr), args...)
	if err != nil {
		return 0, errors.Wrapf(err, "insert into %s failed", table)
	}
	if s.driver == DriverPostgres {
		return 0, nil
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "result.LastInsertId failed")
	}
	return id, nil
}

// Update 更新 record 中出现的列，返回影响的行数
func (s *SQL) Update(ctx context.Context, table string, record *Record, where query.Query) (int64, error) {
	if record.Len() == 0 {
		return 0, nil
	}

	var sets []string
	var args []any
	for _, col := range record.Columns() {
		v, _ := record.Get(col)
		sets = append(sets, s.QuoteIdentifier(col)+" = ?")
		args = append(args, v)
	}

	whereSQL, whereArgs, err := query.And(where).ToSQL()
	if err != nil {
		return 0, errors.WithMessage(err, "build where failed")
	}

	sqlStr := fmt.Sprintf("UPDATE %s SET %s WHERE %s", s.QuoteIdentifier(table), strings.Join(sets, ", "), whereSQL)
	return s.exec(ctx, sqlStr, append(args, whereArgs...)...)
}

// Delete 删除满足条件的行，返回影响的行数
func (s *SQL) Delete(ctx context.Context, table string, where query.Query) (int64, error) {
	whereSQL, args, err := query.And(where).ToSQL()
	if err != nil {
		return 0, errors.WithMessage(err, "build where failed")
	}
	return s.exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s", s.QuoteIdentifier(table), whereSQL), args...)
}

// Exec 执行原始语句，占位符使用 ?
func (s *SQL) Exec(ctx context.Context, sqlStr string, args ...any) (sql.Result, error) {
	result, err := s.db.ExecContext(ctx, s.formatSQL(sqlStr), args...)
	if err != nil {
		return nil, errors.Wrapf(err, "exec [%s] failed", sqlStr)
	}
	return result, nil
}

func (s *SQL) exec(ctx context.Context, sqlStr string, args ...any) (int64, error) {
	result, err := s.Exec(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "result.RowsAffected failed")
	}
	return n, nil
}

func isBinaryType(name string) bool {
	name = strings.ToUpper(name)
	return strings.Contains(name, "BLOB") || strings.Contains(name, "BINARY") || name == "BYTEA"
}
