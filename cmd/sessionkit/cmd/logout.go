package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// logoutCmd invalidates the persisted session, revoking tokens when a
// revocation endpoint is configured.
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Invalidate the current session",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(cmd *cobra.Command, args []string) error {
	env, err := buildEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	// Restore first so the manager knows which strategy owns the session.
	if err := env.manager.Restore(cmd.Context()); err != nil {
		fmt.Println("No active session")
		return nil
	}

	if err := env.manager.Invalidate(cmd.Context()); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}

	fmt.Println("Logged out")
	return nil
}
