package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pendergraft/sealreg/pkg/client"
	"github.com/pendergraft/sealreg/pkg/oracle"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "sealreg-oracle",
		Short:   "Sealreg oracle - decrypts sealed bids and attests amounts",
		Version: version,
	}

	rootCmd.AddCommand(newKeygenCmd())
	rootCmd.AddCommand(newRunCmd())

	return rootCmd
}

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate oracle key material",
		Long: `Generate a fresh X25519 box key and Ed25519 attestation key.

The private halves go in the oracle's environment; the public halves go in
the registry's sealing configuration. The keys are only shown once.

EXAMPLES:
  sealreg-oracle keygen
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeygen()
		},
	}
}

func newRunCmd() *cobra.Command {
	var serverURL string
	var interval time.Duration
	var since int64

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Watch the announcement feed and attest bids",
		Long: `Poll the registry's announcement feed, decrypt every sealed amount
this oracle holds the key for, and submit an attestation so the bid
can be verified and registered.

Key material is read from the environment:
  ORACLE_BOX_PRIVATE_KEY  hex X25519 private key
  ORACLE_ATTEST_SEED      hex Ed25519 seed

EXAMPLES:
  sealreg-oracle run --server http://localhost:8080 --interval 5s
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOracle(serverURL, interval, since)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "registry base URL")
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "feed poll interval")
	cmd.Flags().Int64Var(&since, "since", 0, "feed sequence number to resume from")

	return cmd
}

func runKeygen() error {
	keys, err := oracle.GenerateKeys()
	if err != nil {
		return err
	}

	fmt.Println("⚠️  Oracle keys (save these - they cannot be retrieved later):")
	fmt.Println()
	fmt.Println("Oracle environment (private):")
	fmt.Printf("  export ORACLE_BOX_PRIVATE_KEY=%s\n", hex.EncodeToString(keys.BoxPriv))
	fmt.Printf("  export ORACLE_ATTEST_SEED=%s\n", hex.EncodeToString(keys.AttestPriv.Seed()))
	fmt.Println()
	fmt.Println("Registry environment (public):")
	fmt.Printf("  export ORACLE_BOX_KEY=%s\n", hex.EncodeToString(keys.BoxPub))
	fmt.Printf("  export ORACLE_PUBLIC_KEY=%s\n", hex.EncodeToString(keys.AttestPub))

	return nil
}

func runOracle(serverURL string, interval time.Duration, since int64) error {
	keys, err := oracle.LoadKeys(os.Getenv("ORACLE_BOX_PRIVATE_KEY"), os.Getenv("ORACLE_ATTEST_SEED"))
	if err != nil {
		return fmt.Errorf("loading oracle keys: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	logger.Info("starting sealreg-oracle", "version", version, "server", serverURL, "interval", interval)

	// The oracle never acts as a bidder, so no API key.
	api := client.New(serverURL, "")
	runner := oracle.NewRunner(oracle.New(keys), api, logger, interval, since)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}

	logger.Info("oracle stopped", "cursor", runner.Cursor())
	return nil
}
