package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// watchCmd keeps the session manager running and reports lifecycle
// transitions as they happen, including those driven by other processes
// sharing the store. Useful for observing cross-process reconciliation and
// automatic token refresh.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the session and report transitions until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	env, err := buildEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	defer env.manager.OnAuthenticationSucceeded(func() {
		fmt.Printf("-> authenticated (%s)\n", env.manager.AuthenticatorID())
	})()
	defer env.manager.OnInvalidationSucceeded(func() {
		fmt.Println("-> unauthenticated")
	})()
	defer env.manager.OnInvalidationFailed(func(err error) {
		fmt.Printf("-> invalidation failed: %v\n", err)
	})()

	if err := env.manager.Restore(cmd.Context()); err != nil {
		fmt.Println("Session: unauthenticated")
	} else {
		fmt.Printf("Session: authenticated (%s)\n", env.manager.AuthenticatorID())
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	return nil
}
