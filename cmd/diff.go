package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/shopmonkeyus/go-common/logger"
	"github.com/shopmonkeyus/tablekit/internal"
	"github.com/shopmonkeyus/tablekit/internal/changefeed"
	"github.com/shopmonkeyus/tablekit/internal/sqlq"
	"github.com/shopmonkeyus/tablekit/internal/store"
	"github.com/shopmonkeyus/tablekit/internal/table"
	"github.com/shopmonkeyus/tablekit/internal/util"
	"github.com/spf13/cobra"
)

type diffOptions struct {
	Table    string
	Prior    string
	Incoming string
	Key      string
	Mode     string
	Execute  bool
}

// resolveMode defaults to new without a prior row and update with one.
func resolveMode(mode string, hasPrior bool) (string, error) {
	switch mode {
	case "":
		if hasPrior {
			return string(internal.RowModeUpdate), nil
		}
		return string(internal.RowModeNew), nil
	case string(internal.RowModeNew), string(internal.RowModeUpdate), "delete":
		return mode, nil
	}
	return "", fmt.Errorf("invalid mode: %s, use new, update or delete", mode)
}

func printDiff(out io.Writer, m *table.Mutation) {
	yellow := color.New(color.FgYellow, color.Bold).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()
	fmt.Fprintf(out, "%s %s\n", yellow(string(m.Operation)), m.Table.ID())
	if m.Diff == nil {
		return
	}
	for _, c := range m.Diff.Changes {
		fmt.Fprintf(out, "  %s: %s => %s\n", c.Member, red(util.JSONStringify(c.Old)), green(util.JSONStringify(c.New)))
	}
	members := make([]string, 0, len(m.Diff.Errors))
	for member := range m.Diff.Errors {
		members = append(members, member)
	}
	sort.Strings(members)
	for _, member := range members {
		fmt.Fprintf(out, "  %s %s: %s\n", red("error"), member, m.Diff.Errors[member])
	}
	for _, member := range m.Stripped {
		fmt.Fprintf(out, "  %s %s\n", gray("not authorized:"), member)
	}
	unknown := make([]string, 0, len(m.Diff.Unknown))
	for member := range m.Diff.Unknown {
		unknown = append(unknown, member)
	}
	sort.Strings(unknown)
	for _, member := range unknown {
		fmt.Fprintf(out, "  %s %s\n", gray("unknown:"), member)
	}
}

func runDiff(ctx context.Context, log logger.Logger, out io.Writer, s settings, o diffOptions) error {
	r, err := s.registry(ctx, log)
	if err != nil {
		return err
	}
	t, err := lookupTable(r, o.Table)
	if err != nil {
		return err
	}
	d, err := s.dialect()
	if err != nil {
		return err
	}
	uc, err := s.usageContext()
	if err != nil {
		return err
	}
	if o.Execute && s.URL == "" {
		return fmt.Errorf("--execute requires --url")
	}
	if s.Publish != "" && !o.Execute {
		return fmt.Errorf("--publish requires --execute")
	}
	var exec *store.Executor
	if s.URL != "" {
		if exec, err = store.Open(ctx, log, s.URL); err != nil {
			return err
		}
		defer exec.Close()
	}
	prior, err := util.ReadJSONObject(o.Prior, os.Stdin)
	if err != nil {
		return err
	}
	if o.Key != "" {
		if exec == nil {
			return fmt.Errorf("--key requires --url")
		}
		if prior, err = exec.Get(ctx, t, o.Key, uc); err != nil {
			return err
		}
	}
	incoming, err := util.ReadJSONObject(o.Incoming, os.Stdin)
	if err != nil {
		return err
	}
	mode, err := resolveMode(o.Mode, prior != nil)
	if err != nil {
		return err
	}
	var m *table.Mutation
	if mode == "delete" {
		if prior == nil {
			return fmt.Errorf("delete requires --prior or --key")
		}
		m, err = t.PrepareDelete(prior, uc, d, 0)
	} else {
		m, err = t.PrepareMutation(table.MutationInput{
			Prior:    prior,
			Incoming: incoming,
			Mode:     internal.RowMode(mode),
			UC:       uc,
			Dialect:  d,
		})
	}
	if err != nil {
		return err
	}
	printDiff(out, m)
	if !m.OK() {
		return fmt.Errorf("validation failed for %s", t.ID())
	}
	if m.IsNoop() {
		fmt.Fprintln(out, "no changes")
		return nil
	}
	if !m.Statement.IsEmpty() {
		printStatement(out, d, "statement", m.Statement)
	}
	if m.Key != nil {
		for _, stmt := range m.AssociationStatements(m.Key) {
			printStatement(out, d, "association", stmt)
		}
	}
	if !o.Execute {
		return nil
	}
	res, err := exec.Apply(ctx, m)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "applied %s %v, %d rows affected\n", m.Operation, res.Key, res.RowsAffected)
	if s.Publish == "" {
		return nil
	}
	event := changefeed.FromMutation(m, uc)
	if m.Key == nil {
		event.SetKey(res.Key)
	}
	if err := publish(ctx, log, s, event); err != nil {
		return err
	}
	fmt.Fprintf(out, "published %s to %s\n", event, event.Subject())
	return nil
}

// publish sends the event after any events still waiting in the outbox. When an outbox is set a
// failed publish is kept there instead of failing the command.
func publish(ctx context.Context, log logger.Logger, s settings, event *changefeed.ChangeEvent) error {
	var outbox *changefeed.Outbox
	if s.Outbox != "" {
		var err error
		if outbox, err = changefeed.OpenOutbox(log, s.Outbox); err != nil {
			return err
		}
		defer outbox.Close()
	}
	err := sendEvent(ctx, log, s.Publish, outbox, event)
	if err != nil && outbox != nil {
		log.Warn("publish failed, keeping %s in the outbox: %s", event, err)
		return outbox.Add(event)
	}
	return err
}

func sendEvent(ctx context.Context, log logger.Logger, url string, outbox *changefeed.Outbox, event *changefeed.ChangeEvent) error {
	sink, err := changefeed.NewSink(ctx, log, url)
	if err != nil {
		return err
	}
	defer sink.Close()
	if outbox != nil {
		if _, err := outbox.Flush(ctx, sink); err != nil {
			return err
		}
	}
	return sink.Publish(ctx, event)
}

var diffCmd = &cobra.Command{
	Use:   "diff <table>",
	Short: "Validate an incoming model against a prior row and print the resulting mutation",
	Long: `Validate an incoming model against a prior row and print the changes and the SQL.

	tablekit diff artists --incoming '{"name":"Abba"}'
	tablekit diff artists --key 12 --incoming changes.json --url postgres://localhost/music --execute
	tablekit diff artists --prior row.json --mode delete

Rows are JSON documents, files or - for stdin. With --execute the mutation is applied to --url and
with --publish a change event is sent after it commits.
`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		log := newLogger("diff")
		defer util.RecoverPanic(log)
		o := diffOptions{
			Table:    args[0],
			Prior:    mustFlagString(cmd, "prior", false),
			Incoming: mustFlagString(cmd, "incoming", false),
			Key:      mustFlagString(cmd, "key", false),
			Mode:     mustFlagString(cmd, "mode", false),
			Execute:  mustFlagBool(cmd, "execute", false),
		}
		if err := runDiff(cmd.Context(), log, cmd.OutOrStdout(), loadSettings(), o); err != nil {
			log.Fatal("diff failed: %s", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(diffCmd)
	diffCmd.Flags().String("prior", "", "the prior client model as JSON, a file or - for stdin")
	diffCmd.Flags().String("incoming", "", "the incoming model as JSON, a file or - for stdin")
	diffCmd.Flags().String("key", "", "load the prior row by key from --url")
	diffCmd.Flags().String("mode", "", "new, update or delete, defaults from the prior row")
	diffCmd.Flags().Bool("execute", false, "apply the mutation to --url")
}
