package cli

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mcoot/mysphere/internal/api/request"
)

func newQuoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote feed and moderation commands",
	}

	cmd.AddCommand(newQuoteListCmd())
	cmd.AddCommand(newQuoteSubmitCmd())
	cmd.AddCommand(newQuoteAdminCmd())

	return cmd
}

// quoteQuery builds the status/category/limit query string
func quoteQuery(status, category string, limit int) string {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if category != "" {
		q.Set("category", category)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

func newQuoteListCmd() *cobra.Command {
	var category string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List approved quotes",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result QuoteList

			if err := client.Get("/api/v1/quotes"+quoteQuery("", category, limit), &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Filter by category")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum quotes to show")

	return cmd
}

func newQuoteSubmitCmd() *cobra.Command {
	var category string
	var own bool

	cmd := &cobra.Command{
		Use:   "submit <content>",
		Short: "Submit a quote for moderation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := request.SubmitQuoteRequest{
				Content:    strings.Join(args, " "),
				Category:   category,
				IsOwnQuote: own,
			}
			var result Quote

			if err := client.Post("/api/v1/quotes", req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "other", "Quote category")
	cmd.Flags().BoolVar(&own, "own", false, "The quote is your own words")

	return cmd
}

func newQuoteAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Moderation commands (admin only)",
	}

	var status, category string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List quotes of any status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result QuoteList

			if err := client.Get("/api/v1/admin/quotes"+quoteQuery(status, category, limit), &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
	list.Flags().StringVar(&status, "status", "pending", "Filter by status (empty for all)")
	list.Flags().StringVar(&category, "category", "", "Filter by category")
	list.Flags().IntVar(&limit, "limit", 0, "Maximum quotes to show")

	cmd.AddCommand(list)
	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Count quotes by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result QuoteStats

			if err := client.Get("/api/v1/admin/quotes/stats", &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	})
	cmd.AddCommand(newModerateCmd("approve", "approved"))
	cmd.AddCommand(newModerateCmd("reject", "rejected"))
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a quote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Delete("/api/v1/admin/quotes/" + url.PathEscape(args[0])); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.PrintMessage(fmt.Sprintf("Deleted quote %s", args[0]))
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "bulk-delete <id>...",
		Short: "Delete several quotes; nothing is deleted if any id is unknown",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result BulkDeleteResult

			if err := client.Post("/api/v1/admin/quotes/bulk-delete", request.BulkDeleteRequest{IDs: args}, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	})

	return cmd
}

func newModerateCmd(use, status string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: fmt.Sprintf("Mark a pending quote %s", status),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Quote

			req := request.ModerateQuoteRequest{Status: status}
			if err := client.Patch("/api/v1/admin/quotes/"+url.PathEscape(args[0]), req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}
