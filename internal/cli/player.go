package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcoot/battleship/internal/api/response"
)

// SecretEnvVar supplies the registration secret when --secret is not given.
const SecretEnvVar = "BSCTL_SECRET"

func newPlayerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "player",
		Short: "Identity and presence commands",
	}

	cmd.AddCommand(newPlayerRegisterCmd())
	cmd.AddCommand(newPlayerMeCmd())
	cmd.AddCommand(newPlayerOnlineCmd())
	cmd.AddCommand(newPlayerHeartbeatCmd())
	cmd.AddCommand(newPlayerLogoutCmd())

	return cmd
}

func newPlayerRegisterCmd() *cobra.Command {
	var name, secret string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a display name and go online",
		Long: `Claim a display name, or sign back in to one you claimed before.
The secret set on first registration must be given on every later one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv(SecretEnvVar)
			}
			if secret == "" {
				return errors.New("a secret is required (--secret or " + SecretEnvVar + ")")
			}

			req := map[string]string{"display_name": name, "secret": secret}
			var result response.AuthResponse
			if err := client.Post(cmd.Context(), "/api/v1/players", req, &result); err != nil {
				return err
			}

			if err := cfg.SaveToken(result.SessionToken); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name (required)")
	cmd.Flags().StringVar(&secret, "secret", "", "Secret that guards the name (env: "+SecretEnvVar+")")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newPlayerMeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show your identity and presence",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Presence
			if err := client.Get(cmd.Context(), "/api/v1/players/me", &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newPlayerOnlineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "online",
		Short: "List the other players who are online",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.PlayerList
			if err := client.Get(cmd.Context(), "/api/v1/players/online", &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newPlayerHeartbeatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "heartbeat",
		Short: "Refresh your presence",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Presence
			if err := client.Post(cmd.Context(), "/api/v1/players/me/heartbeat", nil, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newPlayerLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Go offline and forget the saved token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Post(cmd.Context(), "/api/v1/players/me/logout", nil, nil); err != nil {
				return err
			}
			if err := cfg.ClearToken(); err != nil {
				return fmt.Errorf("failed to remove token: %w", err)
			}

			output(cmd).PrintMessage("Logged out")
			return nil
		},
	}
}
