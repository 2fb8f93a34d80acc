package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/garyjia/expense-approval/internal/domain/entity"
)

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringP("out", "o", "expenses.xlsx", "Output workbook path")
	exportCmd.Flags().String("status", "", "Only export expenses with this status (pending, approved, rejected)")
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export an organization's expenses to an Excel workbook",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func runExport(cmd *cobra.Command, _ []string) error {
	actor, err := adminActor(cmd)
	if err != nil {
		return err
	}
	status, _ := cmd.Flags().GetString("status")
	filter := entity.ExpenseFilter{Status: entity.Status(strings.ToLower(status))}
	if status != "" && !filter.Status.IsValid() {
		return fmt.Errorf("unknown status %q", status)
	}

	c, err := openContainer(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	path, _ := cmd.Flags().GetString("out")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if err := c.Services().Report.ExportExpenses(cmdContext(cmd), actor, filter, f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
