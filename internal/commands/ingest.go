package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"ledgerscan/internal/service"
)

func newIngestCommand(deps Deps) *cobra.Command {
	var process bool
	var uploadedBy string

	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Upload files and create pending documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			b, err := deps.openDatabase(ctx, cfg, process)
			if err != nil {
				return err
			}
			defer b.Close()

			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("reading %s: %w", path, err)
				}
				res, err := b.uploads.Upload(ctx, service.UploadInput{
					Filename:   filepath.Base(path),
					Data:       data,
					UploadedBy: uploadedBy,
				})
				if err != nil {
					return fmt.Errorf("uploading %s: %w", path, err)
				}
				if err := printJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
				if !process {
					continue
				}
				pr, err := b.pipeline.Process(ctx, res.DocumentID, service.ProcessOptions{})
				if err != nil {
					return fmt.Errorf("processing %s: %w", res.DocumentID, err)
				}
				if err := printJSON(cmd.OutOrStdout(), pr); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&process, "process", false, "run the pipeline right after each upload")
	cmd.Flags().StringVar(&uploadedBy, "uploaded-by", os.Getenv("USER"), "uploader recorded on the document")

	return cmd
}
