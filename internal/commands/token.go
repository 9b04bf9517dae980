package commands

import (
	"time"

	"github.com/spf13/cobra"

	"ledgerscan/internal/service"
)

func newTokenCommand(deps Deps) *cobra.Command {
	var subject string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token signed with the configured secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := deps.loadConfig(cmd)
			if err != nil {
				return err
			}
			issued, err := service.NewTokenService(cfg.JWT).Issue(subject, ttl)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), issued)
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "token subject (required)")
	_ = cmd.MarkFlagRequired("subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")

	return cmd
}
