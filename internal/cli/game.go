package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/battleship/internal/api/request"
	"github.com/mcoot/battleship/internal/api/response"
	"github.com/mcoot/battleship/internal/model"
	"github.com/mcoot/battleship/internal/services/gamesync"
)

func newGameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "game",
		Short: "Game session commands",
	}

	cmd.AddCommand(newGameListCmd())
	cmd.AddCommand(newGameGetCmd())
	cmd.AddCommand(newGamePlaceCmd())
	cmd.AddCommand(newGameShootCmd())
	cmd.AddCommand(newGameForfeitCmd())
	cmd.AddCommand(newGameMovesCmd())
	cmd.AddCommand(newGameWatchCmd())

	return cmd
}

// guardFlags registers the idempotency and stale-screen flags shared by submissions
func guardFlags(cmd *cobra.Command, g *request.Guard, expected *int64) {
	cmd.Flags().StringVar(&g.TransitionID, "transition-id", "", "Idempotency key; resubmitting the same key is a no-op")
	cmd.Flags().Int64Var(expected, "expected-version", -1, "Reject instead of retrying if the session is not at this version")
}

func applyGuard(g *request.Guard, expected int64) {
	if expected >= 0 {
		g.ExpectedVersion = &expected
	}
}

func newGameListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.SessionList
			if err := client.Get(cmd.Context(), "/api/v1/sessions", &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newGameGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <session-id>",
		Short: "Show your view of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.SessionView
			if err := client.Get(cmd.Context(), "/api/v1/sessions/"+args[0], &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

// parseShip reads "row,col,length,h|v"
func parseShip(s string) (request.Ship, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return request.Ship{}, fmt.Errorf("ship %q: want row,col,length,h|v", s)
	}
	nums := make([]int, 3)
	for i := range nums {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return request.Ship{}, fmt.Errorf("ship %q: %w", s, err)
		}
		nums[i] = n
	}

	var orientation model.Orientation
	switch strings.ToLower(strings.TrimSpace(parts[3])) {
	case "h", "horizontal":
		orientation = model.Horizontal
	case "v", "vertical":
		orientation = model.Vertical
	default:
		return request.Ship{}, fmt.Errorf("ship %q: orientation must be h or v", s)
	}
	return request.Ship{Row: nums[0], Col: nums[1], Length: nums[2], Orientation: string(orientation)}, nil
}

func newGamePlaceCmd() *cobra.Command {
	var (
		ships    []string
		random   bool
		req      request.PlacementRequest
		expected int64
	)

	cmd := &cobra.Command{
		Use:   "place <session-id>",
		Short: "Commit your fleet",
		Long: `Commit your fleet, either ship by ship or randomly.

Each --ship is row,col,length,orientation with the bow at row,col and
orientation h (towards higher columns) or v (towards higher rows):

  bsctl game place s_123 --ship 0,0,5,h --ship 2,0,4,h --ship 4,0,3,h \
      --ship 6,0,3,h --ship 8,0,2,h`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Random = random
			for _, s := range ships {
				ship, err := parseShip(s)
				if err != nil {
					return err
				}
				req.Ships = append(req.Ships, ship)
			}
			if err := req.Validate(); err != nil {
				return fmt.Errorf("%w (use --ship or --random)", err)
			}
			applyGuard(&req.Guard, expected)

			var result response.TransitionResult
			if err := client.Post(cmd.Context(), "/api/v1/sessions/"+args[0]+"/placement", req, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&ships, "ship", nil, "Ship as row,col,length,h|v (repeatable)")
	cmd.Flags().BoolVar(&random, "random", false, "Let the server place the fleet")
	guardFlags(cmd, &req.Guard, &expected)

	return cmd
}

func newGameShootCmd() *cobra.Command {
	var (
		req      request.ShotRequest
		expected int64
	)

	cmd := &cobra.Command{
		Use:   "shoot <session-id> <row> <col>",
		Short: "Fire at a cell of the opponent's grid",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			row, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid row: %w", err)
			}
			col, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid col: %w", err)
			}
			req.Row, req.Col = &row, &col
			applyGuard(&req.Guard, expected)

			var result response.TransitionResult
			if err := client.Post(cmd.Context(), "/api/v1/sessions/"+args[0]+"/shots", req, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	guardFlags(cmd, &req.Guard, &expected)

	return cmd
}

func newGameForfeitCmd() *cobra.Command {
	var (
		req      request.ForfeitRequest
		expected int64
	)

	cmd := &cobra.Command{
		Use:   "forfeit <session-id>",
		Short: "Concede the game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			applyGuard(&req.Guard, expected)

			var result response.TransitionResult
			if err := client.Post(cmd.Context(), "/api/v1/sessions/"+args[0]+"/forfeit", req, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	guardFlags(cmd, &req.Guard, &expected)

	return cmd
}

func newGameMovesCmd() *cobra.Command {
	var from int

	cmd := &cobra.Command{
		Use:   "moves <session-id>",
		Short: "Print the move log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.CatchUp
			path := fmt.Sprintf("/api/v1/sessions/%s/moves?from=%d", args[0], from)
			if err := client.Get(cmd.Context(), path, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().IntVar(&from, "from", 0, "First move index to fetch")

	return cmd
}

func newGameWatchCmd() *cobra.Command {
	var interval, heartbeat time.Duration

	cmd := &cobra.Command{
		Use:   "watch <session-id>",
		Short: "Follow a session, re-rendering whenever it changes",
		Long: `Keep a local copy of the session in step with the server by fetching only
new moves and checking them against the server's digest. A copy that has
drifted is rebuilt from the full log. Presence heartbeats are sent while
watching, so you stay challengeable.

Stops when the game finishes or on Ctrl+C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 || heartbeat <= 0 {
				return fmt.Errorf("--interval and --heartbeat must be positive")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var me response.Presence
			if err := client.Get(ctx, "/api/v1/players/me", &me); err != nil {
				return err
			}

			mirror := gamesync.NewMirror(client, model.SessionID(args[0]), model.PlayerID(me.Player.ID))
			return watch(ctx, cmd, mirror, interval, heartbeat)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "How often to poll for new moves")
	cmd.Flags().DurationVar(&heartbeat, "heartbeat", 30*time.Second, "How often to refresh your presence")

	return cmd
}

func watch(ctx context.Context, cmd *cobra.Command, mirror *gamesync.Mirror, interval, heartbeat time.Duration) error {
	out := output(cmd)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	beat := time.NewTicker(heartbeat)
	defer beat.Stop()

	if err := sendHeartbeat(ctx); err != nil {
		return err
	}

	resyncs := 0
	for {
		changed, err := mirror.Refresh(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if cfg.Verbose && mirror.Resyncs() != resyncs {
			resyncs = mirror.Resyncs()
			out.PrintMessage(fmt.Sprintf("resynchronised from the full log (%d so far)", resyncs))
		}

		state := mirror.State()
		if changed {
			out.Print(state)
		}
		if state.Phase == model.PhaseFinished {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-beat.C:
			if err := sendHeartbeat(ctx); err != nil && ctx.Err() == nil {
				return err
			}
		case <-ticker.C:
		}
	}
}

func sendHeartbeat(ctx context.Context) error {
	return client.Post(ctx, "/api/v1/players/me/heartbeat", nil, nil)
}
