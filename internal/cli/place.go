package cli

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pendergraft/sealreg/internal/sealing"
	"github.com/pendergraft/sealreg/pkg/client"
)

func createPlaceCmd() *cobra.Command {
	var amount uint64
	var deposit uint64
	var expires time.Duration
	var expiration string

	cmd := &cobra.Command{
		Use:   "place <domain>",
		Short: "Place a sealed bid on a domain",
		Long: `Place a sealed bid on a domain name.

The bid amount is sealed locally to the registry's oracle key before it
leaves this machine; the registry and other bidders only ever see the
encrypted blob. The deposit is escrowed from your ledger account until
the bid is registered or withdrawn.

EXAMPLES:
  # Bid 42 with a 100 deposit, open for 24 hours
  sealreg place example.eth --amount 42 --deposit 100

  # Bid with an explicit expiration
  sealreg place example.eth --amount 42 --deposit 100 --expiration 2026-09-01T12:00:00Z
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Fall back to project config defaults for flags left unset.
			if cfg := loadProjectConfigSilent(); cfg != nil {
				if !cmd.Flags().Changed("deposit") && cfg.DefaultDeposit > 0 {
					deposit = cfg.DefaultDeposit
				}
				if !cmd.Flags().Changed("expires") {
					if d, ok := cfg.defaultExpires(); ok {
						expires = d
					}
				}
			}
			if deposit == 0 {
				return fmt.Errorf("--deposit is required (or set default_deposit in sealreg.toml)")
			}
			return runPlace(args[0], amount, deposit, expires, expiration)
		},
	}

	cmd.Flags().Uint64Var(&amount, "amount", 0, "bid amount, kept sealed (required)")
	cmd.Flags().Uint64Var(&deposit, "deposit", 0, "deposit to escrow (default from config)")
	cmd.Flags().DurationVar(&expires, "expires", 24*time.Hour, "how long the bid stays open")
	cmd.Flags().StringVar(&expiration, "expiration", "", "absolute expiration (RFC 3339, overrides --expires)")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func runPlace(domain string, amount, deposit uint64, expires time.Duration, expiration string) error {
	c := client.New(getServer(), getAPIKey())
	ctx := context.Background()

	exp := time.Now().Add(expires)
	if expiration != "" {
		parsed, err := time.Parse(time.RFC3339, expiration)
		if err != nil {
			return fmt.Errorf("invalid --expiration: %w", err)
		}
		exp = parsed
	}

	// Fetch the registry's sealing identity and seal the amount locally.
	inst, err := c.GetInstance(ctx)
	if err != nil {
		return fmt.Errorf("failed to get instance: %w", err)
	}
	warnAPIVersion(inst)

	instanceID, err := hex.DecodeString(inst.InstanceID)
	if err != nil {
		return fmt.Errorf("server returned invalid instance ID: %w", err)
	}
	boxKey, err := hex.DecodeString(inst.OracleBoxKey)
	if err != nil {
		return fmt.Errorf("server returned invalid oracle box key: %w", err)
	}

	sealed, proof, err := sealing.Seal(instanceID, boxKey, amount)
	if err != nil {
		return fmt.Errorf("sealing bid amount: %w", err)
	}

	err = c.Place(ctx, domain, client.PlaceRequest{
		Sealed:     sealed,
		Proof:      proof,
		Deposit:    deposit,
		Expiration: exp,
	})
	if err != nil {
		return fmt.Errorf("failed to place bid: %w", err)
	}

	fmt.Printf("✅ Bid placed on %s\n", domain)
	fmt.Printf("   Deposit: %d (escrowed)\n", deposit)
	fmt.Printf("   Expires: %s\n", exp.Format(time.RFC3339))
	fmt.Println()
	fmt.Println("   The amount stays sealed until the oracle attests it.")
	fmt.Printf("   Check progress with: sealreg status %s\n", domain)

	return nil
}
