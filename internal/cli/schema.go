package cli

import (
	"errors"
	"fmt"

	"github.com/arquery/arquery/internal/pipeline"
	"github.com/arquery/arquery/internal/server"
	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the table description used in prompts",
	Long: `The schema command describes the invoice table directly against the warehouse
and prints it exactly as it is embedded in the generation prompt. It needs only the
warehouse settings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if errs := cfg.ValidateWarehouse(); len(errs) > 0 {
			return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
		}

		ctx := cmd.Context()
		wh, err := server.NewWarehouse(ctx, cfg)
		if err != nil {
			return err
		}
		defer wh.Close()

		desc, err := pipeline.WarehouseSchemaSource{Warehouse: wh, Table: cfg.InvoiceTable}.FetchSchema(ctx)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), desc)
		return nil
	},
}
