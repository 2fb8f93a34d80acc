package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/garyjia/expense-approval/internal/application/service"
	"github.com/garyjia/expense-approval/internal/domain/entity"
)

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersSetCmd)
	usersSetCmd.Flags().String("role", "employee", "Role of the user")
	usersSetCmd.Flags().String("manager", "", "ID of the user's manager")
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Maintain the organization directory",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the organization's users and their managers",
	Args:  cobra.NoArgs,
	RunE:  runUsersList,
}

func runUsersList(cmd *cobra.Command, _ []string) error {
	actor, err := adminActor(cmd)
	if err != nil {
		return err
	}
	c, err := openContainer(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	users, err := c.Services().Directory.List(cmdContext(cmd), actor)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tROLE\tMANAGER")
	for _, u := range users {
		manager := u.ManagerID
		if manager == "" {
			manager = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", u.ID, u.Role, manager)
	}
	return w.Flush()
}

var usersSetCmd = &cobra.Command{
	Use:   "set USER_ID",
	Short: "Create or update a user's role and manager",
	Long:  `Create or update a user's role and manager. Managers see the expenses of the users that report to them.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersSet,
}

func runUsersSet(cmd *cobra.Command, args []string) error {
	actor, err := adminActor(cmd)
	if err != nil {
		return err
	}
	role, _ := cmd.Flags().GetString("role")
	manager, _ := cmd.Flags().GetString("manager")

	c, err := openContainer(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	user, err := c.Services().Directory.Upsert(cmdContext(cmd), actor, args[0], service.UserInput{
		Role:      entity.Role(role),
		ManagerID: manager,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s)\n", user.ID, user.Role)
	return nil
}
