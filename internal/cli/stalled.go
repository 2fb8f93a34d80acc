package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/expense-approval/internal/infrastructure/worker"
)

func init() {
	rootCmd.AddCommand(stalledCmd)
}

var stalledCmd = &cobra.Command{
	Use:   "stalled",
	Short: "List pending expenses whose named approver holds no step",
	Long: `List pending expenses under a specific-approver rule whose named approver
is not bound to any of the expense's steps. Such expenses can be rejected
but never approved.`,
	Args: cobra.NoArgs,
	RunE: runStalled,
}

func runStalled(cmd *cobra.Command, _ []string) error {
	c, err := openContainer(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	monitor := worker.NewStallMonitor(0, c.Repositories().Expense, c.Engine(), nil, zap.NewNop())
	stalled, err := monitor.Scan(cmdContext(cmd))
	if err != nil {
		return err
	}

	org, _ := cmd.Flags().GetString("org")
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EXPENSE\tORG\tSUBMITTED\tAPPROVER")
	for _, exp := range stalled {
		if org != "" && exp.OrgID != org {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", exp.ID, exp.OrgID, exp.SubmittedAt.Format("2006-01-02"), exp.SpecificApproverSnapshot)
	}
	return w.Flush()
}
