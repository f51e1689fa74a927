package cli

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pendergraft/sealreg/pkg/client"
)

func createStatusCmd() *cobra.Command {
	var jsonOutput bool
	var showSealed bool

	cmd := &cobra.Command{
		Use:   "status <domain>",
		Short: "Show a domain's bid and registration state",
		Long: `Display the current state of a domain: whether it is registered,
and the details of its bid if one exists.

EXAMPLES:
  sealreg status example.eth

  # Include the sealed blob
  sealreg status example.eth --sealed

  # Output as JSON
  sealreg status example.eth --json
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(args[0], showSealed, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&showSealed, "sealed", false, "include the sealed amount blob")

	return cmd
}

func runStatus(domain string, showSealed, jsonOutput bool) error {
	c := client.New(getServer(), getAPIKey())
	ctx := context.Background()

	registered, err := c.IsRegistered(ctx, domain)
	if err != nil {
		return fmt.Errorf("failed to check registration: %w", err)
	}

	bid, err := c.GetBid(ctx, domain)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Code == "NOT_FOUND" {
			bid = nil
		} else {
			return fmt.Errorf("failed to get bid: %w", err)
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"domain":     domain,
			"registered": registered,
			"bid":        bid,
		})
	}

	fmt.Printf("Domain:     %s\n", domain)
	if registered {
		fmt.Println("Status:     registered")
	} else {
		fmt.Println("Status:     available")
	}

	if bid == nil {
		fmt.Println("Bid:        none")
		return nil
	}

	fmt.Println()
	fmt.Printf("Bidder:     %s\n", bid.Bidder)
	fmt.Printf("Deposit:    %d\n", bid.Deposit)
	fmt.Printf("Placed:     %s\n", bid.PlacedAt.Format(time.RFC3339))
	fmt.Printf("Expires:    %s\n", bid.Expiration.Format(time.RFC3339))
	if bid.Verified {
		fmt.Printf("Verified:   yes (amount: %d)\n", bid.ClearAmount)
	} else {
		fmt.Println("Verified:   no")
	}
	if bid.Settled {
		fmt.Println("Settled:    yes")
	}

	if showSealed {
		sealed, err := c.GetSealed(ctx, domain)
		if err != nil {
			return fmt.Errorf("failed to get sealed amount: %w", err)
		}
		fmt.Printf("Sealed:     %s\n", hex.EncodeToString(sealed))
	}

	return nil
}
