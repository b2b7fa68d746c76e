package main

import (
	"fmt"
	"time"

	"shelfy/internal/vitesy"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed in account and the token status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := cliApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.ensureSession(ctx); err != nil {
				return fmt.Errorf("failed to start session: %w", err)
			}

			renderKeyValues(cmd.OutOrStdout(), sessionRows(a.auth.Tokens(), time.Now()))
			return nil
		},
	}
}

// sessionRows describes the token set. Claims are shown when the access
// token is a JWT.
func sessionRows(tokens vitesy.Tokens, now time.Time) [][2]string {
	var rows [][2]string

	if claims, err := vitesy.ParseClaims(tokens.AccessToken); err == nil {
		if claims.Username != "" {
			rows = append(rows, [2]string{"Username", claims.Username})
		}
		if claims.Email != "" {
			rows = append(rows, [2]string{"Email", claims.Email})
		}
		rows = append(rows, [2]string{"Subject", claims.Subject})
		if claims.ClientID != "" {
			rows = append(rows, [2]string{"Client", claims.ClientID})
		}
	}

	rows = append(rows, [2]string{"Access token", tokenStatus(tokens, now)})

	refresh := text.FgYellow.Sprint("Not available (login required on expiry)")
	if tokens.RefreshToken != "" {
		refresh = text.FgGreen.Sprint("Available")
	}
	rows = append(rows, [2]string{"Refresh token", refresh})

	apiKey := "-"
	if tokens.APIKey != "" {
		apiKey = text.FgGreen.Sprint("Provisioned")
	}
	rows = append(rows, [2]string{"API key", apiKey})

	return rows
}

func tokenStatus(tokens vitesy.Tokens, now time.Time) string {
	switch {
	case tokens.AccessToken == "":
		return text.FgHiBlack.Sprint("Not cached")
	case tokens.Expired(now):
		return text.FgYellow.Sprint("Expired")
	default:
		remaining := tokens.ExpiresAt.Sub(now).Round(time.Second)
		return text.FgGreen.Sprintf("Valid (expires in %s)", remaining)
	}
}
