package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stravasync/stravasync/internal/models"
)

// tokenCmd represents the token command
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Inspect or exchange OAuth credentials",
	Long: `Show the current credential status, refreshing it when the
remaining lifetime is inside the safety margin.

With --exchange, a one-time authorization code is traded for the
initial credential and saved to the token file.

Example:
  stravasync token
  stravasync token --exchange <authorization-code>`,
	RunE: runToken,
}

var tokenFlags struct {
	Exchange string
}

func init() {
	tokenCmd.Flags().StringVar(&tokenFlags.Exchange, "exchange", "", "Authorization code to exchange for the initial credential")

	RootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	manager := newTokenManager(cfg, logger)

	ctx := context.Background()
	var cred *models.Credential
	if tokenFlags.Exchange != "" {
		cred, err = manager.Exchange(ctx, tokenFlags.Exchange)
	} else {
		cred, err = manager.GetValidCredential(ctx)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Access token:  %s\n", models.Redacted(cred.AccessToken))
	fmt.Printf("Refresh token: %s\n", models.Redacted(cred.RefreshToken))
	fmt.Printf("Expires at:    %s (%s remaining)\n",
		cred.ExpiresAtTime().UTC().Format(time.RFC3339),
		cred.Remaining(time.Now()).Round(time.Second))
	return nil
}
