package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/shopmonkeyus/go-common/logger"
	"github.com/shopmonkeyus/tablekit/internal/changefeed"
	"github.com/shopmonkeyus/tablekit/internal/util"
	"github.com/spf13/cobra"
)

func runFlush(ctx context.Context, log logger.Logger, out io.Writer, s settings) error {
	if s.Outbox == "" || s.Publish == "" {
		return fmt.Errorf("flush requires --outbox and --publish")
	}
	outbox, err := changefeed.OpenOutbox(log, s.Outbox)
	if err != nil {
		return err
	}
	defer outbox.Close()
	sink, err := changefeed.NewSink(ctx, log, s.Publish)
	if err != nil {
		return err
	}
	defer sink.Close()
	count, err := outbox.Flush(ctx, sink)
	fmt.Fprintf(out, "published %d events\n", count)
	return err
}

var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Publish the change events waiting in the outbox",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		log := newLogger("flush")
		defer util.RecoverPanic(log)
		if err := runFlush(cmd.Context(), log, cmd.OutOrStdout(), loadSettings()); err != nil {
			log.Fatal("flush failed: %s", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(flushCmd)
}
