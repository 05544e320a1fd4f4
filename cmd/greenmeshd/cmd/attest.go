package cmd

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/greenmesh/greenmesh/api"
	registrytypes "github.com/greenmesh/greenmesh/x/registry/types"
	"github.com/greenmesh/greenmesh/x/shared/attest"
	signalstypes "github.com/greenmesh/greenmesh/x/signals/types"
)

const (
	flagKey        = "key"
	flagNode       = "node"
	flagCaps       = "caps"
	flagDocument   = "document"
	flagMultiplier = "multiplier"
	flagValidUntil = "valid-until"
	flagNonce      = "nonce"
	flagGreen      = "green"
)

// AttestCmd signs statements as a trusted attestor or oracle.
func AttestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attest",
		Short: "Sign node attestations and green certificates",
	}
	cmd.AddCommand(attestNodeCmd(), attestCertificateCmd())
	return cmd
}

func attestNodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Sign a hardware attestation for a node's declared capabilities",
		Long: `Sign a hardware attestation. The claim binds the node address, its
capabilities (JSON file) and the digest of the attestation document. The
output is the "attestation" field of a node registration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			home, _ := cmd.Flags().GetString(flagHome)
			keyName, _ := cmd.Flags().GetString(flagKey)
			nodeArg, _ := cmd.Flags().GetString(flagNode)
			capsPath, _ := cmd.Flags().GetString(flagCaps)
			docPath, _ := cmd.Flags().GetString(flagDocument)

			key, err := loadKey(home, keyName)
			if err != nil {
				return err
			}
			node, err := resolveAddress(home, nodeArg)
			if err != nil {
				return err
			}
			capsJSON, err := os.ReadFile(capsPath)
			if err != nil {
				return err
			}
			var caps registrytypes.Capabilities
			if err := json.Unmarshal(capsJSON, &caps); err != nil {
				return fmt.Errorf("parse %s: %w", capsPath, err)
			}
			doc, err := os.ReadFile(docPath)
			if err != nil {
				return err
			}
			hash := sha256.Sum256(doc)

			sig, err := attest.SignStatement(key, node, caps, hash[:])
			if err != nil {
				return err
			}
			return writeJSON(cmd, registrytypes.AttestationClaim{Hash: hash[:], Signature: sig})
		},
	}
	cmd.Flags().String(flagKey, "", "attestor key name")
	cmd.Flags().String(flagNode, "", "node address or key name")
	cmd.Flags().String(flagCaps, "", "capabilities JSON file")
	cmd.Flags().String(flagDocument, "", "attestation document to bind")
	for _, f := range []string{flagKey, flagNode, flagCaps, flagDocument} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func attestCertificateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "certificate",
		Short: "Sign a green certificate for a node",
		Long: `Sign a green certificate as an oracle. The output is the request body
for POST /api/signals/certificates.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			home, _ := cmd.Flags().GetString(flagHome)
			keyName, _ := cmd.Flags().GetString(flagKey)
			nodeArg, _ := cmd.Flags().GetString(flagNode)
			multiplier, _ := cmd.Flags().GetUint32(flagMultiplier)
			validUntil, _ := cmd.Flags().GetString(flagValidUntil)
			nonce, _ := cmd.Flags().GetUint64(flagNonce)
			green, _ := cmd.Flags().GetBool(flagGreen)

			key, err := loadKey(home, keyName)
			if err != nil {
				return err
			}
			node, err := resolveAddress(home, nodeArg)
			if err != nil {
				return err
			}
			until, err := time.Parse(time.RFC3339, validUntil)
			if err != nil {
				return fmt.Errorf("--%s: %w", flagValidUntil, err)
			}
			claim := signalstypes.CertificateClaim{
				Node:       node.String(),
				Green:      green,
				Multiplier: multiplier,
				ValidUntil: until.Unix(),
				Nonce:      nonce,
			}
			if err := claim.Validate(); err != nil {
				return err
			}
			sig, err := attest.SignStatement(key, node, claim, signalstypes.CertificateDomain)
			if err != nil {
				return err
			}
			return writeJSON(cmd, api.SubmitCertificateRequest{Claim: claim, Signature: sig})
		},
	}
	cmd.Flags().String(flagKey, "", "oracle key name")
	cmd.Flags().String(flagNode, "", "node address or key name")
	cmd.Flags().Uint32(flagMultiplier, signalstypes.NeutralMultiplier, "reward multiplier")
	cmd.Flags().String(flagValidUntil, "", "expiry as RFC3339")
	cmd.Flags().Uint64(flagNonce, 0, "strictly increasing per node")
	cmd.Flags().Bool(flagGreen, true, "whether the node runs on renewable energy")
	for _, f := range []string{flagKey, flagNode, flagValidUntil, flagNonce} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
