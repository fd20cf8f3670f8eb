package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/lemmego/gpameta"
	"github.com/lemmego/gpameta/gpabun"
	"github.com/lemmego/gpameta/gpagorm"
	"github.com/lemmego/gpameta/gpamongo"
	"github.com/spf13/cobra"
)

type describeOptions struct {
	scanner  string
	entity   string
	graph    []string
	semantic string
}

func newDescribeCmd(global *globalOptions) *cobra.Command {
	opts := &describeOptions{}
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Print the bound source model of every entity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := gpameta.LoadConfig(global.configPath)
			if err != nil {
				return err
			}
			scanner, closeFn, err := newScanner(opts.scanner, cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			set, err := gpameta.Bind(scanner, models()...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(opts.graph) > 0 {
				return describePlan(out, set, opts)
			}
			for _, src := range set.Sources() {
				if err := describeSource(out, src); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.scanner, "scanner", "s", "", "Scanner to use: gorm, bun or mongo (default from the config driver)")
	cmd.Flags().StringVarP(&opts.entity, "entity", "e", "PurchaseInvoice", "Entity the graph applies to")
	cmd.Flags().StringSliceVarP(&opts.graph, "graph", "g", nil, "Attribute paths of an entity graph; prints the fetch plan")
	cmd.Flags().StringVar(&opts.semantic, "semantic", string(gpameta.GraphFetch), "Graph semantic: fetch or load")
	return cmd
}

func newScanner(name string, cfg gpameta.Config) (gpameta.Scanner, func(), error) {
	noop := func() {}
	if name == "" {
		name = "gorm"
		if gpameta.NormalizeDialect(cfg.Driver) == gpameta.DialectMongo {
			name = "mongo"
		}
	}

	switch name {
	case "gorm":
		return gpagorm.NewScanner(cfg), noop, nil
	case "bun":
		if gpameta.NormalizeDialect(cfg.Driver) == gpameta.DialectMongo {
			cfg = gpameta.DefaultConfig()
		}
		db, err := gpabun.Open(cfg)
		if err != nil {
			return nil, noop, err
		}
		return gpabun.NewScanner(db, cfg), func() { db.Close() }, nil
	case "mongo":
		return gpamongo.NewScanner(cfg), noop, nil
	}
	return nil, noop, gpameta.NewErrorf(gpameta.ErrorTypeInvalidArgument, "unknown scanner %q", name)
}

func describeSource(out io.Writer, src *gpameta.EntitySource) error {
	fmt.Fprintf(out, "%s [%s]\n", src.JpaEntityName().OrElse(shortName(src.EntityName())), src.EntityName())
	fmt.Fprintf(out, "  table: %s\n", src.PrimaryTable().QualifiedName())
	if super, ok := src.Superclass(); ok {
		fmt.Fprintf(out, "  extends: %s\n", super.EntityName())
	}
	for _, sub := range src.SubclassSources() {
		fmt.Fprintf(out, "  subclass: %s\n", sub.EntityName())
	}
	fmt.Fprintf(out, "  lazy: %t  batch size: %d\n", src.IsLazy(), src.BatchSize())

	sources, err := src.AttributeSources()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if err := writeAttributes(tw, sources); err != nil {
		return err
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(out)
	return nil
}

func writeAttributes(tw io.Writer, sources []gpameta.AttributeSource) error {
	for _, source := range sources {
		switch s := source.(type) {
		case *gpameta.SingularAttributeSource:
			var flags []string
			if s.IsID() {
				flags = append(flags, "id")
			}
			if s.IsVersion() {
				flags = append(flags, "version")
			}
			if s.IsGenerated() {
				flags = append(flags, "generated")
			}
			if s.IsNullable() {
				flags = append(flags, "nullable")
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", s.Path(), s.Nature(), s.Column().Name, strings.Join(flags, ","))

		case *gpameta.ToOneAttributeSource:
			fmt.Fprintf(tw, "  %s\t%s\t%s\t-> %s (%s)\n", s.Path(), s.Nature(), columnNames(s.Columns()),
				shortName(s.TargetEntity()), s.FetchTiming())

		case *gpameta.ComponentAttributeSource:
			fmt.Fprintf(tw, "  %s\t%s\t\t%s\n", s.Path(), s.Nature(), shortName(s.ClassName()))
			nested, err := s.AttributeSources()
			if err != nil {
				return err
			}
			if err := writeAttributes(tw, nested); err != nil {
				return err
			}

		case *gpameta.PluralAttributeSource:
			detail := fmt.Sprintf("%s of %s (%s)", s.Kind(), shortName(s.ElementType()), s.FetchTiming())
			if order, ok := s.OrderColumn().Get(); ok {
				detail += " ordered by " + order
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", s.Path(), s.Nature(), s.CollectionTable().QualifiedName(), detail)
			elements, err := s.ElementSources()
			if err != nil {
				return err
			}
			if err := writeAttributes(tw, elements); err != nil {
				return err
			}
		}
	}
	return nil
}

func describePlan(out io.Writer, set *gpameta.SourceSet, opts *describeOptions) error {
	src, err := findEntity(set, opts.entity)
	if err != nil {
		return err
	}
	plan, err := set.FetchPlan(gpameta.GraphFromPaths(src.EntityName(), opts.graph...), gpameta.GraphSemantic(opts.semantic))
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s (%s graph)\n", shortName(plan.Entity()), plan.Semantic())
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, path := range plan.Paths() {
		d, _ := plan.Decision(path)
		state := "lazy"
		if d.Initialized {
			state = "loaded"
		}
		requested := ""
		if d.Requested {
			requested = "requested"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", path, d.Nature, state, requested)
	}
	return tw.Flush()
}

func columnNames(columns []gpameta.ColumnSource) string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	return strings.Join(names, ",")
}

func shortName(qualified string) string {
	if i := strings.LastIndex(qualified, "."); i >= 0 {
		return qualified[i+1:]
	}
	return qualified
}
