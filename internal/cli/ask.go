package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arquery/arquery/internal/pipeline"
	"github.com/arquery/arquery/internal/server"
	"github.com/arquery/arquery/internal/warehouse"
	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var showSQL bool

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question without starting the server",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		ctx := cmd.Context()
		deps, err := server.Build(ctx, cfg)
		if err != nil {
			return err
		}
		defer deps.Close(ctx)

		spinner, _ := pterm.DefaultSpinner.Start("Generating SQL...")
		out, err := deps.Pipeline.Run(ctx, pipeline.Request{
			ID:    uuid.NewString(),
			Query: strings.Join(args, " "),
		})
		if err != nil {
			var perr *pipeline.Error
			if errors.As(err, &perr) {
				spinner.Fail(fmt.Sprintf("%d %s", perr.Kind.HTTPStatus(), perr.Detail))
				return fmt.Errorf("%s", perr.Kind)
			}
			spinner.Fail(err.Error())
			return err
		}
		spinner.Success(fmt.Sprintf("%d rows", len(out.Result.Rows)))

		if showSQL {
			pterm.Info.Println(out.SQL)
		}
		return renderResult(out.Result)
	},
}

func init() {
	askCmd.Flags().BoolVar(&showSQL, "show-sql", false, "print the generated statement")
}

func renderResult(res *warehouse.Result) error {
	if len(res.Rows) == 0 {
		pterm.Info.Println("No rows.")
		return nil
	}
	data := pterm.TableData{res.Columns}
	for _, row := range res.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = "NULL"
				continue
			}
			cells[i] = fmt.Sprint(v)
		}
		data = append(data, cells)
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
