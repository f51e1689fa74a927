package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pendergraft/sealreg/pkg/client"
)

func createListCmd() *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List domains with live bids",
		Long: `List every domain that currently has a live (not yet settled) bid.

EXAMPLES:
  # List live bids
  sealreg list

  # Output as JSON
  sealreg list --json
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(limit, jsonOutput)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of items to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

func runList(limit int, jsonOutput bool) error {
	c := client.New(getServer(), getAPIKey())
	ctx := context.Background()

	domains, err := c.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list bids: %w", err)
	}

	total := len(domains)
	if limit > 0 && len(domains) > limit {
		domains = domains[:limit]
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"domains": domains,
			"count":   total,
		})
	}

	if len(domains) == 0 {
		fmt.Println("No live bids")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DOMAIN\tDEPOSIT\tEXPIRES\tVERIFIED")
	for _, domain := range domains {
		bid, err := c.GetBid(ctx, domain)
		if err != nil {
			fmt.Fprintf(w, "%s\t?\t?\t?\n", domain)
			continue
		}
		verified := "no"
		if bid.Verified {
			verified = fmt.Sprintf("yes (%d)", bid.ClearAmount)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", domain, bid.Deposit, bid.Expiration.Format(time.RFC3339), verified)
	}
	w.Flush()

	if total > len(domains) {
		fmt.Printf("\n(showing %d of %d live bids)\n", len(domains), total)
	}

	return nil
}
