package cli

import (
	"github.com/spf13/cobra"

	"github.com/mcoot/battleship/internal/api/response"
)

func newChallengeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "challenge",
		Short: "Challenge handshake commands",
	}

	cmd.AddCommand(newChallengeCreateCmd())
	cmd.AddCommand(newChallengeListCmd())
	cmd.AddCommand(newChallengeGetCmd())
	cmd.AddCommand(newChallengeRespondCmd("accept", "Accept a challenge and start the game"))
	cmd.AddCommand(newChallengeRespondCmd("decline", "Decline a challenge"))
	cmd.AddCommand(newChallengeCancelCmd())

	return cmd
}

func newChallengeCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <opponent-id>",
		Short: "Challenge an online player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"opponent_id": args[0]}
			var result response.Challenge
			if err := client.Post(cmd.Context(), "/api/v1/challenges", req, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newChallengeListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List challenges you sent or received",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.ChallengeList
			if err := client.Get(cmd.Context(), "/api/v1/challenges", &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newChallengeGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a challenge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Challenge
			if err := client.Get(cmd.Context(), "/api/v1/challenges/"+args[0], &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newChallengeRespondCmd(decision, short string) *cobra.Command {
	return &cobra.Command{
		Use:   decision + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"decision": decision}
			var result response.Challenge
			if err := client.Post(cmd.Context(), "/api/v1/challenges/"+args[0]+"/respond", req, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newChallengeCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Withdraw a challenge you sent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Challenge
			if err := client.Post(cmd.Context(), "/api/v1/challenges/"+args[0]+"/cancel", nil, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}
