// Command gpameta prints and checks the entity metadata bound from the
// invoice models.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/lemmego/gpameta"
	"github.com/lemmego/gpameta/examples/invoice"
	"github.com/spf13/cobra"
)

type globalOptions struct {
	configPath string
	debug      bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "gpameta",
		Short:         "Inspect entity mapping metadata",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if opts.debug {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML config file")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	root.AddCommand(newDescribeCmd(opts))
	root.AddCommand(newValidateCmd(opts))
	root.AddCommand(newSnapshotCmd(opts))
	return root
}

// findEntity resolves a JPA entity name, a bare type name or a qualified
// type name
func findEntity(set *gpameta.SourceSet, name string) (*gpameta.EntitySource, error) {
	if src, ok := set.Lookup(name); ok {
		return src, nil
	}
	for _, src := range set.Sources() {
		if jpa, ok := src.JpaEntityName().Get(); ok && jpa == name {
			return src, nil
		}
		if strings.HasSuffix(src.EntityName(), "."+name) {
			return src, nil
		}
	}
	return nil, gpameta.NewErrorf(gpameta.ErrorTypeNotFound, "entity %s is not mapped", name)
}

// models lists the models the command binds
func models() []any {
	return invoice.Models()
}
