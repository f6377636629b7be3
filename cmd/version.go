package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/shopmonkeyus/tablekit/internal/changefeed"
	"github.com/shopmonkeyus/tablekit/internal/sqlq"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "tablekit %s (%s/%s)\n", Version, runtime.GOOS, runtime.GOARCH)
		fmt.Fprintf(out, "dialects: %s\n", strings.Join(sqlq.Dialects(), ", "))
		fmt.Fprintf(out, "changefeeds: %s\n", strings.Join(changefeed.Schemes(), ", "))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
