package cmd

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/greenmesh/greenmesh/api"
)

const flagTTL = "ttl"

// TokenCmd issues an API token with the node's own secret, for operators
// and services that hold no signing key.
func TokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token [address|key]",
		Short: "Issue an API bearer token signed with api.jwt_secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nc, err := loadNodeContext(cmd)
			if err != nil {
				return err
			}
			if nc.cfg.API.JWTSecret == "" {
				return errors.New("api.jwt_secret is not set; tokens would not verify against a running node")
			}
			addr, err := resolveAddress(nc.home, args[0])
			if err != nil {
				return err
			}
			ttl, _ := cmd.Flags().GetDuration(flagTTL)
			if ttl <= 0 {
				ttl = nc.cfg.API.TokenTTL
			}

			token, expires, err := api.NewAuthService([]byte(nc.cfg.API.JWTSecret), ttl).GenerateToken(addr)
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(api.TokenResponse{Token: token, ExpiresAt: expires})
		},
	}
	cmd.Flags().Duration(flagTTL, 0, "token lifetime (defaults to api.token_ttl)")
	return cmd
}
