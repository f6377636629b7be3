package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/shopmonkeyus/go-common/logger"
	"github.com/shopmonkeyus/tablekit/internal/sqlq"
	"github.com/shopmonkeyus/tablekit/internal/store"
	"github.com/shopmonkeyus/tablekit/internal/table"
	"github.com/shopmonkeyus/tablekit/internal/util"
	"github.com/spf13/cobra"
)

type queryOptions struct {
	Table   string
	Filter  string
	Facets  bool
	Execute bool
}

func readFilter(fn string, stdin io.Reader) (*table.Filter, error) {
	obj, err := util.ReadJSONObject(fn, stdin)
	if err != nil {
		return nil, err
	}
	var filter table.Filter
	if obj == nil {
		return &filter, nil
	}
	buf, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(buf, &filter); err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}
	return &filter, nil
}

func printStatement(out io.Writer, d sqlq.Dialect, title string, f sqlq.Fragment) {
	heading := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintf(out, "%s\n%s\n\n", heading("-- "+title), sqlq.Interpolate(d, f))
}

func printProblems(out io.Writer, problems []string) {
	yellow := color.New(color.FgYellow).SprintFunc()
	for _, p := range problems {
		fmt.Fprintf(out, "%s %s\n", yellow("problem:"), p)
	}
}

func runQuery(ctx context.Context, log logger.Logger, out io.Writer, s settings, o queryOptions) error {
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
	filter, err := readFilter(o.Filter, os.Stdin)
	if err != nil {
		return err
	}
	if !o.Execute || s.Verbose {
		selectq, err := t.SelectQuery(filter, uc, d)
		if err != nil {
			return err
		}
		countq, err := t.CountQuery(filter, uc, d)
		if err != nil {
			return err
		}
		printStatement(out, d, "select", selectq)
		printStatement(out, d, "count", countq)
		if o.Facets {
			facets, err := t.FacetQueries(filter, uc, d)
			if err != nil {
				return err
			}
			for _, fq := range facets {
				printStatement(out, d, "facet "+fq.Member, fq.Query)
			}
		}
		printProblems(out, selectq.Problems)
	}
	if !o.Execute {
		return nil
	}
	if s.URL == "" {
		return fmt.Errorf("--execute requires --url")
	}
	exec, err := store.Open(ctx, log, s.URL)
	if err != nil {
		return err
	}
	defer exec.Close()
	res, err := exec.List(ctx, t, filter, uc, store.ListOptions{Facets: o.Facets})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

var queryCmd = &cobra.Command{
	Use:   "query <table>",
	Short: "Compose the list queries of a table and optionally run them",
	Long: `Compose the select, count and facet queries for a filter and print them.

The filter is a JSON document, a file or - for stdin:

	tablekit query events --filter '{"query":"jazz","criteria":{"status":{"behavior":"hasSomeOf","options":["published"]}}}' --facets

With --execute the queries run against --url and the client models are printed as JSON.
`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		log := newLogger("query")
		defer util.RecoverPanic(log)
		o := queryOptions{
			Table:   args[0],
			Filter:  mustFlagString(cmd, "filter", false),
			Facets:  mustFlagBool(cmd, "facets", false),
			Execute: mustFlagBool(cmd, "execute", false),
		}
		if err := runQuery(cmd.Context(), log, cmd.OutOrStdout(), loadSettings(), o); err != nil {
			log.Fatal("query failed: %s", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().String("filter", "", "the filter as JSON, a file or - for stdin")
	queryCmd.Flags().Bool("facets", false, "include the facet queries")
	queryCmd.Flags().Bool("execute", false, "run the queries against --url")
}
