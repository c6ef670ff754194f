package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/clientauth/sessionkit/pkg/session"
)

// statusCmd restores the persisted session and reports its state.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session state",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	env, err := buildEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.manager.Restore(cmd.Context()); err != nil {
		fmt.Println("Session: unauthenticated")
		return nil
	}

	fmt.Println("Session: authenticated")
	fmt.Printf("Authenticator: %s\n", env.manager.AuthenticatorID())

	authenticated := session.AuthenticatedData(env.manager.Data())
	if expiresAt, ok := numberField(authenticated["expires_at"]); ok {
		expiry := time.UnixMilli(expiresAt)
		fmt.Printf("Expires: %s (%s from now)\n", expiry.Format(time.RFC3339), time.Until(expiry).Round(time.Second))
	}
	return nil
}

func numberField(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
