// Package cli implements expensectl, the operator command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/expense-approval/internal/config"
	"github.com/garyjia/expense-approval/internal/container"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/pkg/utils"
)

var rootCmd = &cobra.Command{
	Use:           "expensectl",
	Short:         "Operate the expense approval service",
	Long:          `expensectl manages the schema, approval rules and reports of an expense approval database.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to config YAML (default: EXPENSE_CONFIG or built-in defaults)")
	rootCmd.PersistentFlags().String("org", "", "Organization ID to operate on")
	rootCmd.PersistentFlags().String("as", "expensectl", "Admin user ID recorded for changes")
}

// Execute runs the root command
func Execute() int {
	return ExecuteArgs(os.Args[1:], os.Stdout, os.Stderr)
}

// ExecuteArgs runs the root command with explicit arguments and streams
func ExecuteArgs(args []string, stdout, stderr io.Writer) int {
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv("EXPENSE_CONFIG")
	}
	return config.Load(path)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	// Logs go to stderr so command output stays parseable
	return utils.NewLogger(utils.LoggerConfig{
		Level:      "warn",
		OutputPath: "stderr",
		Format:     cfg.Logger.Format,
	})
}

// openContainer opens storage and services without background workers
func openContainer(cmd *cobra.Command) (*container.Container, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := c.Open(cmdContext(cmd)); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func adminActor(cmd *cobra.Command) (entity.Actor, error) {
	org, _ := cmd.Flags().GetString("org")
	if org == "" {
		return entity.Actor{}, fmt.Errorf("--org is required")
	}
	id, _ := cmd.Flags().GetString("as")
	return entity.Actor{ID: id, Role: entity.RoleAdmin, OrgID: org}, nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
