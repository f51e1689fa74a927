package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"

	"github.com/pendergraft/sealreg/pkg/client"
)

// supportedAPIVersion is the server API this CLI was built against.
const supportedAPIVersion = "v1.0.0"

func createInstanceCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "instance",
		Short: "Show the registry's sealing identity",
		Long: `Display the registry's instance ID and oracle keys.

Sealed amounts are bound to this identity: a blob sealed for one
instance is rejected by every other.

EXAMPLES:
  sealreg instance
  sealreg instance --json
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstance(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

func runInstance(jsonOutput bool) error {
	c := client.New(getServer(), getAPIKey())

	inst, err := c.GetInstance(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get instance: %w", err)
	}
	warnAPIVersion(inst)

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(inst)
	}

	fmt.Printf("Server:       %s\n", getServer())
	fmt.Printf("API version:  %s\n", inst.APIVersion)
	fmt.Printf("Backend:      %s\n", inst.Backend)
	fmt.Printf("Instance ID:  %s\n", inst.InstanceID)
	fmt.Printf("Box key:      %s\n", inst.OracleBoxKey)
	fmt.Printf("Oracle key:   %s\n", inst.OraclePublicKey)

	return nil
}

// warnAPIVersion prints a warning when the server speaks a different major
// API version than this CLI was built for.
func warnAPIVersion(inst *client.Instance) {
	if inst.APIVersion == "" || !semver.IsValid(inst.APIVersion) {
		return
	}
	if semver.Major(inst.APIVersion) != semver.Major(supportedAPIVersion) {
		fmt.Fprintf(os.Stderr, "Warning: server API %s differs from supported %s; upgrade the CLI\n",
			inst.APIVersion, supportedAPIVersion)
	}
}
