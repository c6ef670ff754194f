package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clientauth/sessionkit/pkg/authenticator/oauth2password"
)

var (
	loginPassword string
	loginScope    []string
)

// loginCmd authenticates with the password grant and persists the session.
var loginCmd = &cobra.Command{
	Use:   "login <identification>",
	Short: "Authenticate against the token server",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogin,
}

func init() {
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Password (read from stdin when omitted)")
	loginCmd.Flags().StringSliceVar(&loginScope, "scope", nil, "OAuth2 scopes to request")
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	password := loginPassword
	if password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	env, err := buildEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	err = env.manager.Authenticate(cmd.Context(), oauth2password.Name, oauth2password.Credentials{
		Identification: args[0],
		Password:       password,
		Scope:          loginScope,
	})
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	fmt.Printf("Logged in as %s\n", args[0])
	return nil
}
