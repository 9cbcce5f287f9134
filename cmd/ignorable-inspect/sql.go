package main

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/hatlonely/ignorable/ignorable"
	"github.com/hatlonely/ignorable/schema"
)

type sqlReport struct {
	Entity string `json:"entity"`
	Table  string `json:"table"`
	SQL    string `json:"sql"`
}

func newSQLCmd(opts *inspectOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sql",
		Short: "Print the default SELECT of each entity type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, inspectSQL)
		},
	}
}

// inspectSQL 按 Fetcher 所用的连接渲染默认查询
func inspectSQL(ctx context.Context, r *ignorable.Registry, t *ignorable.EntityType) (report, error) {
	rep := &sqlReport{Entity: t.Name(), Table: t.Table()}

	switch f := r.Fetcher().(type) {
	case *schema.SQLFetcher:
		stmt, err := t.Statement(ctx)
		if err != nil {
			return nil, err
		}
		if rep.SQL, _, err = f.SQL().BuildSelect(stmt); err != nil {
			return nil, err
		}
	case *schema.GormFetcher:
		// 先刷新投影，ToSQL 不返回错误
		if _, err := t.DefaultScopes(ctx); err != nil {
			return nil, err
		}
		rep.SQL = f.DB().WithContext(ctx).ToSQL(func(tx *gorm.DB) *gorm.DB {
			var rows []map[string]any
			return t.Gorm(tx).Find(&rows)
		})
	default:
		return nil, errors.Errorf("fetcher %T cannot render sql", f)
	}
	return rep, nil
}

func (r *sqlReport) writeText(w io.Writer) error {
	return writeLine(w, "%s: %s", r.Entity, r.SQL)
}
