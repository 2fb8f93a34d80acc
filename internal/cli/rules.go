package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesActivateCmd)
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and switch approval rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List an organization's approval rules",
	Args:  cobra.NoArgs,
	RunE:  runRulesList,
}

func runRulesList(cmd *cobra.Command, _ []string) error {
	actor, err := adminActor(cmd)
	if err != nil {
		return err
	}
	c, err := openContainer(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	rules, err := c.Services().Rule.List(cmdContext(cmd), actor)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tTHRESHOLD\tAPPROVER\tSTEPS\tACTIVE")
	for _, r := range rules {
		threshold := "-"
		if r.PercentageThreshold != nil {
			threshold = fmt.Sprintf("%d%%", *r.PercentageThreshold)
		}
		approver := r.SpecificApproverID
		if approver == "" {
			approver = "-"
		}
		active := ""
		if r.IsActive {
			active = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n", r.ID, r.Name, r.RuleType, threshold, approver, len(r.Steps), active)
	}
	return w.Flush()
}

var rulesActivateCmd = &cobra.Command{
	Use:   "activate RULE_ID",
	Short: "Make a rule the organization's active rule",
	Long:  `Make a rule the organization's active rule. Expenses already submitted keep the rule they were submitted under.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesActivate,
}

func runRulesActivate(cmd *cobra.Command, args []string) error {
	actor, err := adminActor(cmd)
	if err != nil {
		return err
	}
	c, err := openContainer(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Services().Rule.Activate(cmdContext(cmd), actor, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Rule %s is now active for %s\n", args[0], actor.OrgID)
	return nil
}
