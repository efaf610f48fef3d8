package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/leafcheck/internal/domain/apperrors"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print how logical fields map to the database columns",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		conn, err := openDB(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer conn.Close()

		sch, err := resolveSchema(cmd.Context(), conn, logger)
		var mismatch *apperrors.SchemaMismatchError
		if errors.As(err, &mismatch) {
			out := cmd.ErrOrStderr()
			fmt.Fprintln(out, "unmapped fields:")
			for _, f := range mismatch.Missing {
				fmt.Fprintln(out, "  "+f)
			}
			return err
		}
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), sch.Describe())
		return nil
	},
}
