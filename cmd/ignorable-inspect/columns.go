package main

import (
	"context"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hatlonely/ignorable/ignorable"
)

type columnsReport struct {
	Entity   string         `json:"entity"`
	Table    string         `json:"table"`
	Parent   string         `json:"parent,omitempty"`
	Ignored  []string       `json:"ignored"`
	Included []string       `json:"included,omitempty"`
	Columns  []columnReport `json:"columns"`
}

type columnReport struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primaryKey,omitempty"`
}

func newColumnsCmd(opts *inspectOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "columns",
		Short: "Print the visible columns of each entity type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, inspectColumns)
		},
	}
}

func inspectColumns(ctx context.Context, _ *ignorable.Registry, t *ignorable.EntityType) (report, error) {
	columns, err := t.Columns(ctx)
	if err != nil {
		return nil, err
	}

	rep := &columnsReport{
		Entity:   t.Name(),
		Table:    t.Table(),
		Ignored:  t.IgnoredColumns(),
		Included: t.IncludedColumns(ctx),
		Columns:  make([]columnReport, len(columns)),
	}
	if rep.Ignored == nil {
		rep.Ignored = []string{}
	}
	if t.Parent() != nil {
		rep.Parent = t.Parent().Name()
	}
	for i, c := range columns {
		rep.Columns[i] = columnReport{Name: c.Name, Type: c.Type, Nullable: c.Nullable, PrimaryKey: c.PrimaryKey}
	}
	return rep, nil
}

func (r *columnsReport) writeText(w io.Writer) error {
	title := r.Entity + " (" + r.Table + ")"
	if r.Parent != "" {
		title += " < " + r.Parent
	}
	if err := writeLine(w, "%s", title); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range r.Columns {
		var flags []string
		if c.PrimaryKey {
			flags = append(flags, "pk")
		}
		if !c.Nullable {
			flags = append(flags, "not null")
		}
		if err := writeLine(tw, "  %s\t%s\t%s", c.Name, c.Type, strings.Join(flags, ",")); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if err := writeLine(w, "  ignored: %s", strings.Join(r.Ignored, ", ")); err != nil {
		return err
	}
	if len(r.Included) > 0 {
		return writeLine(w, "  included: %s", strings.Join(r.Included, ", "))
	}
	return nil
}
