package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/shopmonkeyus/go-common/logger"
	"github.com/shopmonkeyus/tablekit/internal/util"
	"github.com/spf13/cobra"
)

func runValidate(ctx context.Context, log logger.Logger, out io.Writer, s settings) error {
	r, err := s.registry(ctx, log)
	if err != nil {
		return err
	}
	bold := color.New(color.Bold).SprintFunc()
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", bold("TABLE"), bold("STORE"), bold("FIELDS"), bold("FINGERPRINT"))
	var fingerprints []any
	for _, t := range r.Tables() {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", t.ID(), t.Name(), len(t.Fields()), t.Fingerprint())
		fingerprints = append(fingerprints, t.Fingerprint())
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\ncatalog %s is valid: %d tables, fingerprint %s\n", s.Catalog, len(fingerprints), util.Hash(fingerprints...))
	return nil
}

var validateCmd = &cobra.Command{
	Use:   "validate [catalog]",
	Short: "Load a catalog and print its tables",
	Long: `Load a catalog, validate every table definition and print each table with its fingerprint.

	tablekit validate ./catalog.yaml
	tablekit validate s3://my-bucket/catalog.json
`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		log := newLogger("validate")
		defer util.RecoverPanic(log)
		s := loadSettings()
		if len(args) > 0 {
			s.Catalog = args[0]
		}
		if err := runValidate(cmd.Context(), log, cmd.OutOrStdout(), s); err != nil {
			log.Fatal("catalog is invalid: %s", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
