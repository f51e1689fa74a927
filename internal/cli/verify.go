package cli

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pendergraft/sealreg/pkg/client"
)

func createVerifyCmd() *cobra.Command {
	var clearAmount uint64
	var attestationHex string

	cmd := &cobra.Command{
		Use:   "verify <domain>",
		Short: "Submit an oracle attestation for a bid",
		Long: `Submit an oracle attestation revealing a bid's cleartext amount.

Normally sealreg-oracle does this automatically from the announcement
feed; this command is for submitting an attestation obtained out of
band.

EXAMPLES:
  sealreg verify example.eth --clear 42 --attestation 9f3c...
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(args[0], clearAmount, attestationHex)
		},
	}

	cmd.Flags().Uint64Var(&clearAmount, "clear", 0, "attested cleartext amount (required)")
	cmd.Flags().StringVar(&attestationHex, "attestation", "", "hex oracle signature (required)")
	_ = cmd.MarkFlagRequired("clear")
	_ = cmd.MarkFlagRequired("attestation")

	return cmd
}

func runVerify(domain string, clearAmount uint64, attestationHex string) error {
	attestation, err := hex.DecodeString(attestationHex)
	if err != nil {
		return fmt.Errorf("invalid --attestation: %w", err)
	}

	c := client.New(getServer(), getAPIKey())
	err = c.Verify(context.Background(), domain, client.VerifyRequest{
		ClearAmount: clearAmount,
		Attestation: attestation,
	})
	if err != nil {
		return fmt.Errorf("failed to verify bid: %w", err)
	}

	fmt.Printf("✅ Bid on %s verified (amount: %d)\n", domain, clearAmount)
	fmt.Printf("   Finalize with: sealreg register %s\n", domain)

	return nil
}
