package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ledgerscan/internal/domain"
	"ledgerscan/internal/service"
)

func newProcessCommand(deps Deps) *cobra.Command {
	var reprocess bool
	var hint string

	cmd := &cobra.Command{
		Use:   "process <document-id>",
		Short: "Run the pipeline for one document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid document id %q", args[0])
			}
			cfg, err := deps.loadConfig(cmd)
			if err != nil {
				return err
			}
			b, err := deps.openDatabase(cmd.Context(), cfg, true)
			if err != nil {
				return err
			}
			defer b.Close()

			res, err := b.pipeline.Process(cmd.Context(), id, service.ProcessOptions{Reprocess: reprocess, Hint: hint})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().BoolVar(&reprocess, "reprocess", false, "re-run a completed or failed document from the start")
	cmd.Flags().StringVar(&hint, "hint", "", "document type hint that skips classification")

	return cmd
}

func newReprocessCommand(deps Deps) *cobra.Command {
	var status string
	var limit, concurrency int

	cmd := &cobra.Command{
		Use:   "reprocess",
		Short: "Re-run every document in a status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, ok := domain.ParsePipelineStatus(status)
			if !ok {
				return fmt.Errorf("unknown status %q", status)
			}
			cfg, err := deps.loadConfig(cmd)
			if err != nil {
				return err
			}
			if concurrency <= 0 {
				concurrency = cfg.Pipeline.Concurrency
			}
			b, err := deps.openDatabase(cmd.Context(), cfg, true)
			if err != nil {
				return err
			}
			defer b.Close()

			res, err := b.pipeline.ReprocessBatch(cmd.Context(), st, limit, concurrency)
			if res != nil {
				if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
					return perr
				}
			}
			return err
		},
	}

	cmd.Flags().StringVar(&status, "status", string(domain.StatusFailed), "status of the documents to reprocess")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of documents")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "parallel runs (defaults to the pipeline concurrency)")

	return cmd
}
