package rdb

import (
	"github.com/pkg/errors"
)

var (
	ErrRecordNotFound    = errors.New("record not found")
	ErrUnsupportedDriver = errors.New("unsupported driver")
)

const (
	DriverMySQL    = "mysql"
	DriverSQLite3  = "sqlite3"
	DriverPostgres = "postgres"
)
