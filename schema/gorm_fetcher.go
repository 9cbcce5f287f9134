package schema

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/hatlonely/ignorable/ref"
)

func init() {
	ref.MustRegisterT[*GormFetcher](NewGormFetcherWithOptions)
}

type GormFetcherOptions struct {
	Driver   string `cfg:"driver" def:"sqlite" validate:"oneof=sqlite mysql"`
	DSN      string `cfg:"dsn" validate:"required"`
	MaxConns int    `cfg:"maxConns"`
}

// GormFetcher 通过 gorm Migrator 获取表结构
type GormFetcher struct {
	db *gorm.DB
}

func NewGormFetcherWithOptions(options *GormFetcherOptions) (*GormFetcher, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}

	var dialector gorm.Dialector
	switch options.Driver {
	case "sqlite":
		dialector = sqlite.Open(options.DSN)
	case "mysql":
		dialector = mysql.Open(options.DSN)
	default:
		return nil, errors.Errorf("unsupported gorm driver %q", options.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, errors.Wrap(err, "gorm.Open failed")
	}
	if options.MaxConns > 0 {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errors.Wrap(err, "db.DB failed")
		}
		sqlDB.SetMaxOpenConns(options.MaxConns)
	}

	return &GormFetcher{db: db}, nil
}

func NewGormFetcher(db *gorm.DB) *GormFetcher {
	return &GormFetcher{db: db}
}

func (f *GormFetcher) DB() *gorm.DB {
	return f.db
}

func (f *GormFetcher) FetchColumns(ctx context.Context, table string) ([]Column, error) {
	migrator := f.db.WithContext(ctx).Migrator()
	if !migrator.HasTable(table) {
		return nil, errors.Wrapf(ErrTableNotFound, "table %s", table)
	}

	types, err := migrator.ColumnTypes(table)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch columns of %s failed", table)
	}

	columns := make([]Column, 0, len(types))
	for _, ct := range types {
		nullable, ok := ct.Nullable()
		pk, _ := ct.PrimaryKey()
		columns = append(columns, Column{
			Name:       ct.Name(),
			Type:       ct.DatabaseTypeName(),
			Nullable:   nullable || !ok,
			PrimaryKey: pk,
		})
	}
	return columns, nil
}
