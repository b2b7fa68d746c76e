package main

import (
	"fmt"
	"time"

	"shelfy/internal/vitesy"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// Login outcomes, as shown to the user
const (
	loginInvalidAuth   = "invalid_auth"
	loginCannotConnect = "cannot_connect"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in to the Vitesy cloud and store the session",
		Long: `Sign in with the configured email and password and store the
resulting tokens, so later commands and the server reuse the session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cliApp()
			if err != nil {
				return err
			}
			defer a.Close()

			s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
			s.Suffix = " Signing in to Vitesy..."
			s.Writer = cmd.ErrOrStderr()
			s.Start()

			err = a.auth.Login(cmd.Context())
			s.Stop()

			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", text.FgRed.Sprint("✗"), loginFailureMessage(err))
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s Signed in as %s\n", text.FgGreen.Sprint("✓"), a.cfg.Vitesy.Email)
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cliApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.DeleteTokens(cmd.Context()); err != nil {
				return fmt.Errorf("failed to delete tokens: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s Session removed\n", text.FgGreen.Sprint("✓"))
			return nil
		},
	}
}

// classifyLoginError tells rejected credentials apart from everything else
func classifyLoginError(err error) string {
	if vitesy.IsInvalidAuth(err) {
		return loginInvalidAuth
	}
	return loginCannotConnect
}

func loginFailureMessage(err error) string {
	if classifyLoginError(err) == loginInvalidAuth {
		return "Invalid email or password"
	}
	return "Cannot connect to the Vitesy cloud"
}
