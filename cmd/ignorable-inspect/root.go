package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hatlonely/ignorable/cfg"
	"github.com/hatlonely/ignorable/ignorable"
)

type inspectOptions struct {
	config  string
	entity  string
	include []string
	all     bool
	output  string
	watch   bool
}

// inspectFunc 生成一个类型的报告，在放开作用域内调用
type inspectFunc func(ctx context.Context, r *ignorable.Registry, t *ignorable.EntityType) (report, error)

type report interface {
	writeText(w io.Writer) error
}

func newRootCmd() *cobra.Command {
	opts := &inspectOptions{}

	rootCmd := &cobra.Command{
		Use:           "ignorable-inspect",
		Short:         "Inspect ignored columns of configured entity types",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if opts.output != "text" && opts.output != "json" {
				return errors.Errorf("unsupported output format %q: use 'text' or 'json'", opts.output)
			}
			if opts.config == "" {
				return errors.New("--config is required")
			}
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.config, "config", "c", "ignorable.yaml", "registry config file (yaml, json, toml or ini)")
	flags.StringVarP(&opts.entity, "entity", "e", "", "only inspect this entity type")
	flags.StringSliceVarP(&opts.include, "include", "i", nil, "ignored columns to include, comma separated")
	flags.BoolVar(&opts.all, "all", false, "include all ignored columns")
	flags.StringVarP(&opts.output, "output", "o", "text", "output format (text, json)")
	flags.BoolVarP(&opts.watch, "watch", "w", false, "reapply the config and print again whenever the file changes")

	rootCmd.AddCommand(newColumnsCmd(opts), newSQLCmd(opts))
	return rootCmd
}

func (o *inspectOptions) run(cmd *cobra.Command, inspect inspectFunc) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if !o.watch {
		var options ignorable.Options
		if err := cfg.Load(o.config, &options); err != nil {
			return errors.WithMessagef(err, "load %s failed", o.config)
		}
		r, err := ignorable.NewRegistryWithOptions(ctx, &options)
		if err != nil {
			return err
		}
		defer r.Close()
		return o.print(ctx, out, r, inspect)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := cfg.NewWatcherWithOptions(&cfg.WatcherOptions{FilePath: o.config})
	if err != nil {
		return err
	}
	defer w.Close()

	var mu sync.Mutex
	var r *ignorable.Registry
	defer func() {
		mu.Lock()
		defer mu.Unlock()
		if r != nil {
			_ = r.Close()
		}
	}()

	// 已有的类型只会追加忽略列，删除的忽略列要重启才会生效
	err = w.OnChange(func(node *cfg.Node) error {
		var options ignorable.Options
		if err := node.ConvertTo(&options); err != nil {
			return err
		}

		mu.Lock()
		defer mu.Unlock()
		if r == nil {
			registry, err := ignorable.NewRegistryWithOptions(ctx, &options)
			if err != nil {
				return err
			}
			r = registry
		} else if err := r.Apply(ctx, options.Entities); err != nil {
			return err
		}
		return o.print(ctx, out, r, inspect)
	})
	if err != nil {
		return err
	}

	<-ctx.Done()
	return nil
}

func (o *inspectOptions) print(ctx context.Context, w io.Writer, r *ignorable.Registry, inspect inspectFunc) error {
	types := r.Types()
	if o.entity != "" {
		t, err := r.Lookup(o.entity)
		if err != nil {
			return err
		}
		types = []*ignorable.EntityType{t}
	}

	reports := make([]report, 0, len(types))
	for _, t := range types {
		var rep report
		err := o.within(ctx, t, func(ctx context.Context) error {
			var err error
			rep, err = inspect(ctx, r, t)
			return err
		})
		if err != nil {
			return errors.WithMessagef(err, "inspect %s failed", t.Name())
		}
		reports = append(reports, rep)
	}

	if o.output == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}
	for _, rep := range reports {
		if err := rep.writeText(w); err != nil {
			return err
		}
	}
	return nil
}

// within 指定了 --include 或 --all 时在放开作用域内执行
func (o *inspectOptions) within(ctx context.Context, t *ignorable.EntityType, fn func(ctx context.Context) error) error {
	if !o.all && len(o.include) == 0 {
		return fn(ctx)
	}
	return t.WithIncludedColumns(ctx, fn, o.include...)
}

func writeLine(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format+"\n", args...)
	return err
}
