package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newExportCommand(deps Deps) *cobra.Command {
	var format, out string

	cmd := &cobra.Command{
		Use:   "export <document-id>",
		Short: "Export a completed document",
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
			b, err := deps.openDatabase(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer b.Close()

			e, err := b.exports.Rows(cmd.Context(), id)
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

	cmd.Flags().StringVarP(&format, "format", "f", "json", "json, csv or xlsx")
	cmd.Flags().StringVarP(&out, "output", "o", "", "write to a file instead of stdout")

	return cmd
}
