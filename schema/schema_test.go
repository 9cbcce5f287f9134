package schema

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/hatlonely/ignorable/cfg"
	"github.com/hatlonely/ignorable/rdb"
	"github.com/hatlonely/ignorable/ref"
)

const createTestModels = `CREATE TABLE test_models (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  some_attributes TEXT,
  legacy INTEGER
)`

func TestSQLFetcher(t *testing.T) {
	Convey("测试 SQLFetcher", t, func() {
		ctx := context.Background()
		f, err := NewSQLFetcherWithOptions(&SQLFetcherOptions{
			SQLOptions: rdb.SQLOptions{Driver: rdb.DriverSQLite3, Database: ":memory:", MaxConns: 1},
		})
		So(err, ShouldBeNil)
		defer f.Close()

		_, err = f.SQL().Exec(ctx, createTestModels)
		So(err, ShouldBeNil)

		Convey("sqlite 按表定义顺序返回列", func() {
			columns, err := f.FetchColumns(ctx, "test_models")
			So(err, ShouldBeNil)
			So(Names(columns), ShouldResemble, []string{"id", "name", "some_attributes", "legacy"})
			So(columns[0], ShouldResemble, Column{Name: "id", Type: "INTEGER", Nullable: true, PrimaryKey: true})
			So(columns[1].Nullable, ShouldBeFalse)
			So(columns[3].Type, ShouldEqual, "INTEGER")
			So(PrimaryKey(columns), ShouldEqual, "id")
		})

		Convey("表不存在", func() {
			_, err := f.FetchColumns(ctx, "missing")
			So(errors.Is(err, ErrTableNotFound), ShouldBeTrue)
		})

		Convey("probe 模式", func() {
			columns, err := f.WithProbe().FetchColumns(ctx, "test_models")
			So(err, ShouldBeNil)
			So(Names(columns), ShouldResemble, []string{"id", "name", "some_attributes", "legacy"})

			_, err = f.WithProbe().FetchColumns(ctx, "missing")
			So(err, ShouldNotBeNil)
			So(errors.Is(err, ErrTableNotFound), ShouldBeFalse)
		})
	})
}

func TestSQLFetcherMock(t *testing.T) {
	Convey("测试 SQLFetcher 错误透传", t, func() {
		db, mock, err := sqlmock.New()
		So(err, ShouldBeNil)
		defer db.Close()

		Convey("系统表查询失败", func() {
			cause := errors.New("connection refused")
			mock.ExpectQuery(`PRAGMA table_info\("test_models"\)`).WillReturnError(cause)

			_, err := NewSQLFetcher(rdb.NewSQL(db, rdb.DriverSQLite3)).FetchColumns(context.Background(), "test_models")
			So(err, ShouldNotBeNil)
			So(errors.Cause(err), ShouldEqual, cause)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})

		Convey("mysql information_schema", func() {
			mock.ExpectQuery(`FROM information_schema.columns`).
				WithArgs("test_models").
				WillReturnRows(sqlmock.NewRows([]string{"name", "type", "nullable", "pk"}).
					AddRow("id", "bigint", "NO", int64(1)).
					AddRow("name", "varchar(255)", "YES", int64(0)))

			columns, err := NewSQLFetcher(rdb.NewSQL(db, rdb.DriverMySQL)).FetchColumns(context.Background(), "test_models")
			So(err, ShouldBeNil)
			So(columns, ShouldResemble, []Column{
				{Name: "id", Type: "bigint", Nullable: false, PrimaryKey: true},
				{Name: "name", Type: "varchar(255)", Nullable: true},
			})
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})

		Convey("postgres 空结果视为表不存在", func() {
			mock.ExpectQuery(`current_schema\(\) AND c.table_name = \$1`).
				WithArgs("missing").
				WillReturnRows(sqlmock.NewRows([]string{"name", "type", "nullable", "pk"}))

			_, err := NewSQLFetcher(rdb.NewSQL(db, rdb.DriverPostgres)).FetchColumns(context.Background(), "missing")
			So(errors.Is(err, ErrTableNotFound), ShouldBeTrue)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})

		Convey("未知驱动使用结果集列信息", func() {
			mock.ExpectQuery(`SELECT \* FROM "test_models" WHERE 1=0`).
				WillReturnRows(sqlmock.NewRowsWithColumnDefinition(
					sqlmock.NewColumn("id").OfType("INTEGER", int64(0)),
					sqlmock.NewColumn("legacy").OfType("INTEGER", int64(0)),
				))

			columns, err := NewSQLFetcher(rdb.NewSQL(db, "sqlmock")).FetchColumns(context.Background(), "test_models")
			So(err, ShouldBeNil)
			So(Names(columns), ShouldResemble, []string{"id", "legacy"})
			So(columns[0].Type, ShouldEqual, "INTEGER")
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})
	})
}

func TestGormFetcher(t *testing.T) {
	Convey("测试 GormFetcher", t, func() {
		ctx := context.Background()
		f, err := NewGormFetcherWithOptions(&GormFetcherOptions{Driver: "sqlite", DSN: ":memory:", MaxConns: 1})
		So(err, ShouldBeNil)
		So(f.DB().Exec(createTestModels).Error, ShouldBeNil)

		columns, err := f.FetchColumns(ctx, "test_models")
		So(err, ShouldBeNil)
		So(Names(columns), ShouldResemble, []string{"id", "name", "some_attributes", "legacy"})
		So(PrimaryKey(columns), ShouldEqual, "id")

		_, err = f.FetchColumns(ctx, "missing")
		So(errors.Is(err, ErrTableNotFound), ShouldBeTrue)

		_, err = NewGormFetcherWithOptions(&GormFetcherOptions{Driver: "oracle", DSN: "x"})
		So(err, ShouldNotBeNil)
	})
}

func TestNewFetcherWithOptions(t *testing.T) {
	Convey("测试 NewFetcherWithOptions", t, func() {
		Convey("从配置构造 SQLFetcher", func() {
			node, err := cfg.Decode([]byte("driver: sqlite3\ndatabase: \":memory:\"\nmaxConns: 1\n"), "yaml")
			So(err, ShouldBeNil)

			f, err := NewFetcherWithOptions(&ref.TypeOptions{Type: "SQLFetcher", Options: node})
			So(err, ShouldBeNil)
			sf, ok := f.(*SQLFetcher)
			So(ok, ShouldBeTrue)
			So(sf.SQL().Driver(), ShouldEqual, rdb.DriverSQLite3)
			So(sf.Close(), ShouldBeNil)
		})

		Convey("从配置构造 GormFetcher", func() {
			node, err := cfg.Decode([]byte(`{"dsn": ":memory:"}`), "json")
			So(err, ShouldBeNil)

			f, err := NewFetcherWithOptions(&ref.TypeOptions{Type: "GormFetcher", Options: node})
			So(err, ShouldBeNil)
			_, ok := f.(*GormFetcher)
			So(ok, ShouldBeTrue)
		})

		Convey("未注册的类型", func() {
			_, err := NewFetcherWithOptions(&ref.TypeOptions{Type: "OracleFetcher", Options: map[string]any{}})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "SQLFetcher")
		})

		Convey("options 为 nil", func() {
			_, err := NewFetcherWithOptions(nil)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestFetcherFunc(t *testing.T) {
	Convey("测试 FetcherFunc", t, func() {
		var f Fetcher = FetcherFunc(func(ctx context.Context, table string) ([]Column, error) {
			return []Column{{Name: table + "_id"}}, nil
		})
		columns, err := f.FetchColumns(context.Background(), "things")
		So(err, ShouldBeNil)
		So(columns[0].String(), ShouldEqual, "things_id")
	})
}
