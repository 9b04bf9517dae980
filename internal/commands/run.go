package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"ledgerscan/internal/domain"
	"ledgerscan/internal/service"
)

func newRunCommand(deps Deps) *cobra.Command {
	var hint, format, out, dir string

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Upload, process and export one file without a database",
		Long: "Run the whole pipeline in process against an in-memory store. " +
			"Files are kept under --dir, or a temporary directory removed on exit.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.loadConfig(cmd)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			if dir == "" {
				tmp, err := os.MkdirTemp("", "ledgerctl-*")
				if err != nil {
					return err
				}
				defer func() { _ = os.RemoveAll(tmp) }()
				dir = tmp
			}
			b, err := deps.openMemory(cfg, dir)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			up, err := b.uploads.Upload(ctx, service.UploadInput{Filename: filepath.Base(args[0]), Data: data})
			if err != nil {
				return err
			}
			res, err := b.pipeline.Process(ctx, up.DocumentID, service.ProcessOptions{Hint: hint})
			if err != nil {
				return err
			}
			if res.Status == domain.StatusFailed {
				detail, _ := b.exports.LastError(ctx, up.DocumentID)
				return fmt.Errorf("document failed: %s: %s", res.FailureReason, detail)
			}

			e, err := b.exports.Rows(ctx, up.DocumentID)
			if err != nil {
				return err
			}
			w, closeOut, err := openOutput(out, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if err := writeExport(w, e, format); err != nil {
				_ = closeOut()
				return err
			}
			return closeOut()
		},
	}

	cmd.Flags().StringVar(&hint, "hint", "", "document type hint that skips classification")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "json, csv or xlsx")
	cmd.Flags().StringVarP(&out, "output", "o", "", "write to a file instead of stdout")
	cmd.Flags().StringVar(&dir, "dir", "", "directory for stored files")

	return cmd
}
