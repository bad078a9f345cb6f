package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/local/qrprint/internal/communes"
	"github.com/local/qrprint/internal/config"
)

func newCommunesCmd(cfg config.Config) *cobra.Command {
	c := cfg.Communes

	cmd := &cobra.Command{
		Use:   "communes",
		Short: "Extract the commune code/name table from the spreadsheet to JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return report(cmd.OutOrStdout(), runCommunes(cmd.OutOrStdout(), c))
		},
	}

	f := cmd.Flags()
	f.StringVar(&c.Spreadsheet, "xlsx", cfg.Communes.Spreadsheet, "spreadsheet to read")
	f.StringVar(&c.Sheet, "sheet", cfg.Communes.Sheet, "sheet name (default: first sheet)")
	f.StringVarP(&c.Output, "output", "o", cfg.Communes.Output, "JSON file to write")
	return cmd
}

func runCommunes(out io.Writer, c config.CommunesConfig) error {
	list, err := communes.Extract(c.Spreadsheet, c.Sheet)
	if err != nil {
		return err
	}
	if err := communes.WriteJSON(c.Output, list); err != nil {
		return err
	}
	fmt.Fprintf(out, "Successfully extracted %d communes to %s\n", len(list), c.Output)
	return nil
}
