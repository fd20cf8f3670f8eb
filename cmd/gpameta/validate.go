package main

import (
	"context"
	"fmt"

	"github.com/lemmego/gpameta"
	"github.com/lemmego/gpameta/gpabun"
	"github.com/lemmego/gpameta/gpagorm"
	"github.com/lemmego/gpameta/gpamongo"
	"github.com/spf13/cobra"
)

type validator interface {
	Validate(ctx context.Context, set *gpameta.SourceSet) (*gpameta.ValidationReport, error)
}

func newValidateCmd(global *globalOptions) *cobra.Command {
	var orm string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that the database provides every mapped table and column",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := gpameta.LoadConfig(global.configPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			v, scanner, closeFn, err := openValidator(ctx, orm, cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			set, err := gpameta.Bind(scanner, models()...)
			if err != nil {
				return err
			}
			report, err := v.Validate(ctx, set)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, p := range report.Problems {
				fmt.Fprintln(out, p.String())
			}
			fmt.Fprintf(out, "checked %d tables, %d columns\n", report.Tables, report.Columns)
			if !report.OK() {
				return gpameta.NewErrorf(gpameta.ErrorTypeValidation, "schema validation failed with %d problems", len(report.Problems))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&orm, "orm", "gorm", "Library used for SQL databases: gorm or bun")
	return cmd
}

func openValidator(ctx context.Context, orm string, cfg gpameta.Config) (validator, gpameta.Scanner, func(), error) {
	noop := func() {}

	if gpameta.NormalizeDialect(cfg.Driver) == gpameta.DialectMongo {
		db, err := gpamongo.Open(ctx, cfg)
		if err != nil {
			return nil, nil, noop, err
		}
		return gpamongo.NewValidator(db), gpamongo.NewScanner(cfg), func() { _ = db.Client().Disconnect(context.Background()) }, nil
	}

	switch orm {
	case "gorm":
		db, err := gpagorm.Open(cfg)
		if err != nil {
			return nil, nil, noop, err
		}
		closeFn := func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}
		return gpagorm.NewValidator(db), gpagorm.NewScanner(cfg), closeFn, nil
	case "bun":
		db, err := gpabun.Open(cfg)
		if err != nil {
			return nil, nil, noop, err
		}
		return gpabun.NewValidator(db), gpabun.NewScanner(db, cfg), func() { db.Close() }, nil
	}
	return nil, nil, noop, gpameta.NewErrorf(gpameta.ErrorTypeInvalidArgument, "unknown orm %q", orm)
}
