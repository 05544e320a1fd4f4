package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/spf13/cobra"

	"github.com/greenmesh/greenmesh/x/shared/attest"
)

const (
	keysDir     = "keys"
	keyFileExt  = ".key"
	flagRecover = "recover"
)

var keyNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// KeysCmd manages the secp256k1 keys nodes, attestors and oracles sign with.
func KeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage local signing keys",
	}
	cmd.AddCommand(keysAddCmd(), keysShowCmd(), keysListCmd())
	return cmd
}

func keysAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [name]",
		Short: "Generate a key, or import one with --recover",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			home, _ := cmd.Flags().GetString(flagHome)
			recoverHex, _ := cmd.Flags().GetString(flagRecover)

			var key *secp256k1.PrivateKey
			if recoverHex != "" {
				bz, err := hex.DecodeString(strings.TrimSpace(recoverHex))
				if err != nil || len(bz) != secp256k1.PrivKeyBytesLen {
					return fmt.Errorf("--recover needs %d hex-encoded bytes", secp256k1.PrivKeyBytesLen)
				}
				key = secp256k1.PrivKeyFromBytes(bz)
			} else {
				var err error
				if key, err = secp256k1.GeneratePrivateKey(); err != nil {
					return err
				}
			}
			if err := writeKey(home, args[0], key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", args[0], attest.Address(key.PubKey()))
			return nil
		},
	}
	cmd.Flags().String(flagRecover, "", "hex-encoded private key to import")
	return cmd
}

func keysShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [name]",
		Short: "Print a key's address and public key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			home, _ := cmd.Flags().GetString(flagHome)
			key, err := loadKey(home, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "address: %s\npubkey: %x\n",
				attest.Address(key.PubKey()), key.PubKey().SerializeCompressed())
			return nil
		},
	}
}

func keysListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List local keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			home, _ := cmd.Flags().GetString(flagHome)
			entries, err := os.ReadDir(filepath.Join(home, keysDir))
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			if err != nil {
				return err
			}
			var names []string
			for _, e := range entries {
				if name, ok := strings.CutSuffix(e.Name(), keyFileExt); ok && !e.IsDir() {
					names = append(names, name)
				}
			}
			sort.Strings(names)
			for _, name := range names {
				key, err := loadKey(home, name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, attest.Address(key.PubKey()))
			}
			return nil
		},
	}
}

func keyPath(home, name string) (string, error) {
	if !keyNamePattern.MatchString(name) {
		return "", fmt.Errorf("invalid key name %q", name)
	}
	return filepath.Join(home, keysDir, name+keyFileExt), nil
}

func writeKey(home, name string, key *secp256k1.PrivateKey) error {
	path, err := keyPath(home, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("key %q already exists", name)
	}
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(f, hex.EncodeToString(key.Serialize())); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func loadKey(home, name string) (*secp256k1.PrivateKey, error) {
	path, err := keyPath(home, name)
	if err != nil {
		return nil, err
	}
	bz, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load key %q: %w", name, err)
	}
	raw, err := hex.DecodeString(strings.TrimSpace(string(bz)))
	if err != nil || len(raw) != secp256k1.PrivKeyBytesLen {
		return nil, fmt.Errorf("key file %s is corrupt", path)
	}
	return secp256k1.PrivKeyFromBytes(raw), nil
}

// resolveAddress accepts a bech32 address or the name of a local key.
func resolveAddress(home, s string) (sdk.AccAddress, error) {
	if addr, err := sdk.AccAddressFromBech32(s); err == nil {
		return addr, nil
	}
	key, err := loadKey(home, s)
	if err != nil {
		return nil, fmt.Errorf("%q is neither an address nor a local key", s)
	}
	return attest.Address(key.PubKey()), nil
}
