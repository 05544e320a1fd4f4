package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/greenmesh/greenmesh/pkg/provider"
)

const (
	flagAPI       = "api"
	flagInterval  = "interval"
	flagPingEvery = "ping-every"
	flagOnce      = "once"
)

// ProviderCmd runs the worker loop for a registered node.
func ProviderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provider",
		Short: "Poll the API for assigned jobs, run them and submit results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			nc, err := loadNodeContext(cmd)
			if err != nil {
				return err
			}
			keyName, _ := cmd.Flags().GetString(flagKey)
			endpoint, _ := cmd.Flags().GetString(flagAPI)
			interval, _ := cmd.Flags().GetDuration(flagInterval)
			pingEvery, _ := cmd.Flags().GetInt(flagPingEvery)
			once, _ := cmd.Flags().GetBool(flagOnce)

			key, err := loadKey(nc.home, keyName)
			if err != nil {
				return err
			}
			client := provider.NewClient(endpoint, key, nil)
			worker, err := provider.NewWorker(client, client.Address().String(), nil, provider.Config{
				Interval:  interval,
				PingEvery: pingEvery,
			}, nc.logger)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := client.Login(ctx); err != nil {
				return err
			}
			if !once {
				return worker.Run(ctx)
			}
			res, err := worker.Poll(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "started=%d completed=%d audited=%d failed=%d\n",
				res.Started, res.Completed, res.Audited, res.Failed)
			return nil
		},
	}
	defaults := provider.DefaultConfig()
	cmd.Flags().String(flagKey, "", "node key name")
	cmd.Flags().String(flagAPI, "http://localhost:1317", "API base URL")
	cmd.Flags().Duration(flagInterval, defaults.Interval, "poll interval")
	cmd.Flags().Int(flagPingEvery, defaults.PingEvery, "send a liveness ping every n polls (0 disables)")
	cmd.Flags().Bool(flagOnce, false, "poll once and exit")
	_ = cmd.MarkFlagRequired(flagKey)
	return cmd
}
