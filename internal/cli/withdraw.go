package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pendergraft/sealreg/pkg/client"
)

func createWithdrawCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "withdraw <domain>",
		Short: "Withdraw an expired bid",
		Long: `Withdraw your bid on a domain after it has expired, reclaiming the
full escrowed deposit. Only the original bidder can withdraw, and only
once the expiration has passed.

EXAMPLES:
  sealreg withdraw example.eth
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithdraw(args[0])
		},
	}

	return cmd
}

func runWithdraw(domain string) error {
	c := client.New(getServer(), getAPIKey())

	if err := c.Withdraw(context.Background(), domain); err != nil {
		return fmt.Errorf("failed to withdraw bid: %w", err)
	}

	fmt.Printf("✅ Bid on %s withdrawn, deposit refunded\n", domain)
	return nil
}
