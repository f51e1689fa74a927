package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pendergraft/sealreg/pkg/client"
)

func createRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register <domain>",
		Short: "Register a domain from its verified bid",
		Long: `Finalize a verified bid, registering the domain to the bidder.

The bid amount is paid to the registry out of the escrowed deposit and
the remainder is refunded to the bidder. Registration is permanent.

EXAMPLES:
  sealreg register example.eth
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(args[0])
		},
	}

	return cmd
}

func runRegister(domain string) error {
	c := client.New(getServer(), getAPIKey())

	if err := c.Register(context.Background(), domain); err != nil {
		return fmt.Errorf("failed to register domain: %w", err)
	}

	fmt.Printf("✅ %s registered\n", domain)
	return nil
}
