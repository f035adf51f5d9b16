package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/arquery/arquery/internal/warehouse"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := out.String(); got != "arquery "+Version+"\n" {
		t.Errorf("output = %q", got)
	}
}

func TestSchemaCommandRejectsMissingWarehouseSettings(t *testing.T) {
	t.Setenv("WAREHOUSE_DRIVER", "postgres")
	t.Setenv("POSTGRES_DSN", "")
	rootCmd.SetArgs([]string{"schema"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "POSTGRES_DSN") {
		t.Fatalf("error = %v, want POSTGRES_DSN mention", err)
	}
}

func TestAskRequiresQuestion(t *testing.T) {
	rootCmd.SetArgs([]string{"ask"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	if err := rootCmd.Execute(); err == nil {
		t.Fatal("expected argument error")
	}
}

func TestRenderResultEmpty(t *testing.T) {
	if err := renderResult(&warehouse.Result{Columns: []string{"INVOICE_ID"}, Rows: [][]any{}}); err != nil {
		t.Fatalf("renderResult() error = %v", err)
	}
}
