package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"cosmossdk.io/math"
	"github.com/spf13/cobra"

	"github.com/greenmesh/greenmesh/app"
	registrytypes "github.com/greenmesh/greenmesh/x/registry/types"
	"github.com/greenmesh/greenmesh/x/shared/access"
)

const (
	flagAdmin     = "admin"
	flagOperator  = "operator"
	flagCatalog   = "catalog"
	flagBalance   = "balance"
	flagGrant     = "grant"
	flagOverwrite = "overwrite"
)

// InitCmd writes genesis.json and app.toml under home.
func InitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize genesis and node configuration",
		Long: `Write <home>/config/genesis.json and <home>/config/app.toml.

Addresses may be given as bech32 or as the name of a local key.

Example:
  greenmeshd keys add admin
  greenmeshd init --admin admin --operator dispatcher \
    --balance client=1000000 --grant attestor=attestor --catalog devices.yaml
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			home, _ := cmd.Flags().GetString(flagHome)
			overwrite, _ := cmd.Flags().GetBool(flagOverwrite)

			if _, err := os.Stat(genesisPath(home)); err == nil && !overwrite {
				return fmt.Errorf("genesis file already exists: %s (use --%s)", genesisPath(home), flagOverwrite)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}

			gs, operator, err := buildGenesis(cmd, home)
			if err != nil {
				return err
			}
			if err := gs.Validate(); err != nil {
				return err
			}
			if err := WriteDefaultConfig(home, map[string]any{
				"dispatcher.enabled":  operator != "",
				"dispatcher.operator": operator,
			}); err != nil {
				return err
			}
			if err := app.WriteGenesisFile(genesisPath(home), gs); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s\n", genesisPath(home), configPath(home))
			return nil
		},
	}
	cmd.Flags().String(flagAdmin, "", "admin address or key name (required)")
	cmd.Flags().String(flagOperator, "", "dispatcher operator address or key name; granted the scheduler role")
	cmd.Flags().String(flagCatalog, "", "YAML device catalog replacing the built-in profiles")
	cmd.Flags().StringArray(flagBalance, nil, "initial balance as <address|key>=<amount>, repeatable")
	cmd.Flags().StringArray(flagGrant, nil, "role grant as <role>=<address|key>, repeatable")
	cmd.Flags().Bool(flagOverwrite, false, "overwrite an existing genesis file")
	_ = cmd.MarkFlagRequired(flagAdmin)
	return cmd
}

func buildGenesis(cmd *cobra.Command, home string) (app.GenesisState, string, error) {
	adminArg, _ := cmd.Flags().GetString(flagAdmin)
	operatorArg, _ := cmd.Flags().GetString(flagOperator)
	catalogPath, _ := cmd.Flags().GetString(flagCatalog)
	balances, _ := cmd.Flags().GetStringArray(flagBalance)
	grants, _ := cmd.Flags().GetStringArray(flagGrant)

	admin, err := resolveAddress(home, adminArg)
	if err != nil {
		return nil, "", err
	}
	gs := app.NewDefaultGenesisState(admin)

	var operator string
	if operatorArg != "" {
		addr, err := resolveAddress(home, operatorArg)
		if err != nil {
			return nil, "", err
		}
		if gs, err = gs.AddGrant(access.RoleScheduler, addr); err != nil {
			return nil, "", err
		}
		operator = addr.String()
	}

	for _, entry := range grants {
		role, who, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, "", fmt.Errorf("--%s %q: want <role>=<address>", flagGrant, entry)
		}
		addr, err := resolveAddress(home, who)
		if err != nil {
			return nil, "", err
		}
		if gs, err = gs.AddGrant(access.Role(role), addr); err != nil {
			return nil, "", err
		}
	}

	for _, entry := range balances {
		who, amountStr, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, "", fmt.Errorf("--%s %q: want <address>=<amount>", flagBalance, entry)
		}
		addr, err := resolveAddress(home, who)
		if err != nil {
			return nil, "", err
		}
		amount, ok := math.NewIntFromString(amountStr)
		if !ok {
			return nil, "", fmt.Errorf("--%s %q: invalid amount", flagBalance, entry)
		}
		if gs, err = gs.AddBalance(addr, amount); err != nil {
			return nil, "", err
		}
	}

	if catalogPath != "" {
		profiles, err := registrytypes.LoadCatalog(catalogPath)
		if err != nil {
			return nil, "", err
		}
		var registry registrytypes.GenesisState
		if err := json.Unmarshal(gs[registrytypes.ModuleName], &registry); err != nil {
			return nil, "", err
		}
		registry.Profiles = profiles
		gs = gs.SetModule(registrytypes.ModuleName, registry)
	}
	return gs, operator, nil
}

// ValidateGenesisCmd checks a genesis file without starting the node.
func ValidateGenesisCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-genesis [file]",
		Short: "Validate a genesis file (defaults to <home>/config/genesis.json)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			home, _ := cmd.Flags().GetString(flagHome)
			path := genesisPath(home)
			if len(args) == 1 {
				path = args[0]
			}
			gs, err := app.ReadGenesisFile(path)
			if err != nil {
				return err
			}
			if err := gs.Validate(); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", path)
			return nil
		},
	}
}
