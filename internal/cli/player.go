package cli

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/mcoot/mysphere/internal/api/request"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Aliases: []string{"me"},
		Short:   "Show your player, elements and cooldowns",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Status

			if err := client.Get("/api/v1/me", &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Register your address with the contract",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite("/api/v1/me/register", nil)
		},
	}
}

func newCheckInCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkin",
		Short: "Claim the daily check-in reward",
		Long: `Claim the daily check-in reward. Unregistered addresses are registered
first. Check-ins are allowed once every 24 hours.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite("/api/v1/me/checkin", nil)
		},
	}
}

func newFuseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fuse <id> <id> <id>",
		Short: "Fuse three elements of the same type and level",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite("/api/v1/me/fuse", request.FuseRequest{ElementIDs: args})
		},
	}
}

func newLevelUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "level-up",
		Short: "Raise your base level",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite("/api/v1/me/level-up", nil)
		},
	}
}

func runWrite(path string, body any) error {
	var result TxResult

	if err := client.Post(path, body, &result); err != nil {
		return err
	}

	out := NewOutput(cfg.Output)
	out.Print(result)
	return nil
}

func newPlayerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "player",
		Short: "Look up other players",
	}

	cmd.AddCommand(newPlayerGetCmd())
	cmd.AddCommand(newPlayerElementsCmd())

	return cmd
}

func newPlayerGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <address>",
		Short: "Show a player's on-chain record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Player

			if err := client.Get("/api/v1/players/"+url.PathEscape(args[0]), &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newPlayerElementsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "elements <address>",
		Short: "List the elements an address owns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []Element

			if err := client.Get("/api/v1/players/"+url.PathEscape(args[0])+"/elements", &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newTxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Transaction status commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <hash>",
		Short: "Show the latest phase of a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result TxStatus

			if err := client.Get("/api/v1/txs/"+url.PathEscape(args[0]), &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	})

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List your recent transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}
			var result []TxStatus

			if err := client.Get(fmt.Sprintf("/api/v1/me/txs?limit=%d", limit), &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "Maximum transactions to show")
	cmd.AddCommand(list)

	return cmd
}
