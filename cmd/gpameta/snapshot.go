package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/go-redis/redis/v8"
	"github.com/lemmego/gpameta"
	"github.com/lemmego/gpameta/gparedis"
	"github.com/spf13/cobra"
)

type snapshotOptions struct {
	redisURL string
	prefix   string
	scanner  string
}

func newSnapshotCmd(global *globalOptions) *cobra.Command {
	opts := &snapshotOptions{}
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Record expected tables in Redis and report drift against them",
	}
	cmd.PersistentFlags().StringVar(&opts.redisURL, "redis", "redis://localhost:6379/0", "Redis URL holding the snapshots")
	cmd.PersistentFlags().StringVar(&opts.prefix, "prefix", "gpameta", "Key prefix for snapshots")
	cmd.PersistentFlags().StringVar(&opts.scanner, "scanner", "", "Scanner reading the models: gorm, bun or mongo")

	cmd.AddCommand(&cobra.Command{
		Use:   "save NAME",
		Short: "Record the current expected tables under NAME",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSnapshots(cmd, global, opts, true, func(ctx context.Context, store *gparedis.Store, set *gpameta.SourceSet) error {
				snap, err := store.Save(ctx, args[0], set)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "saved %s with %d tables\n", snap.Name, len(snap.Tables))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "diff NAME",
		Short: "Compare the current expected tables against snapshot NAME",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSnapshots(cmd, global, opts, true, func(ctx context.Context, store *gparedis.Store, set *gpameta.SourceSet) error {
				diff, err := store.Diff(ctx, args[0], set)
				if err != nil {
					return err
				}
				writeDiff(cmd.OutOrStdout(), diff)
				if !diff.Empty() {
					return gpameta.NewErrorf(gpameta.ErrorTypeValidation, "schema drifted from snapshot %s", args[0])
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List recorded snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSnapshots(cmd, global, opts, false, func(ctx context.Context, store *gparedis.Store, _ *gpameta.SourceSet) error {
				names, err := store.List(ctx)
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete NAME",
		Short: "Remove snapshot NAME",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSnapshots(cmd, global, opts, false, func(ctx context.Context, store *gparedis.Store, _ *gpameta.SourceSet) error {
				return store.Delete(ctx, args[0])
			})
		},
	})
	return cmd
}

// withSnapshots connects to Redis and, when bind is set, binds the models
// before running fn
func withSnapshots(cmd *cobra.Command, global *globalOptions, opts *snapshotOptions, bind bool,
	fn func(ctx context.Context, store *gparedis.Store, set *gpameta.SourceSet) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var set *gpameta.SourceSet
	if bind {
		cfg, err := gpameta.LoadConfig(global.configPath)
		if err != nil {
			return err
		}
		scanner, closeFn, err := newScanner(opts.scanner, cfg)
		if err != nil {
			return err
		}
		defer closeFn()
		if set, err = gpameta.Bind(scanner, models()...); err != nil {
			return err
		}
		slog.Debug("models bound", "entities", set.Len())
	}

	client, err := openRedis(ctx, opts.redisURL)
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(ctx, gparedis.NewStore(client, opts.prefix), set)
}

func openRedis(ctx context.Context, url string) (*redis.Client, error) {
	slog.Debug("connecting to redis", "url", url)
	return gparedis.Open(ctx, gpameta.Config{Driver: "redis", ConnectionURL: url})
}

func writeDiff(out io.Writer, diff gpameta.SchemaDiff) {
	for _, t := range diff.AddedTables {
		fmt.Fprintf(out, "+ table %s\n", t)
	}
	for _, t := range diff.RemovedTables {
		fmt.Fprintf(out, "- table %s\n", t)
	}
	for _, c := range diff.AddedColumns {
		fmt.Fprintf(out, "+ column %s\n", c)
	}
	for _, c := range diff.RemovedColumns {
		fmt.Fprintf(out, "- column %s\n", c)
	}
	if diff.Empty() {
		fmt.Fprintln(out, "no changes")
	}
}
