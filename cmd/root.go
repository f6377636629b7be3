package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/shopmonkeyus/go-common/logger"
	"github.com/shopmonkeyus/tablekit/internal"
	"github.com/shopmonkeyus/tablekit/internal/auth"
	"github.com/shopmonkeyus/tablekit/internal/catalog"
	"github.com/shopmonkeyus/tablekit/internal/sqlq"
	"github.com/shopmonkeyus/tablekit/internal/table"
	"github.com/shopmonkeyus/tablekit/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set by main.
var Version = "dev"

var configFile string

func mustFlagBool(cmd *cobra.Command, name string, required bool) bool {
	val, err := cmd.Flags().GetBool(name)
	if required && err != nil {
		fmt.Printf("error: %s\n", err)
		os.Exit(1)
	}
	return val
}

func mustFlagString(cmd *cobra.Command, name string, required bool) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		fmt.Printf("error: %s\n", err)
		os.Exit(1)
	}
	if required && val == "" {
		fmt.Printf("error: required flag --%s missing\n", name)
		os.Exit(1)
	}
	return val
}

func newLogger(name string) logger.Logger {
	return logger.NewConsoleLogger().WithPrefix("[" + name + "]")
}

// settings are the resolved persistent options shared by every command.
type settings struct {
	Catalog   string
	Dialect   string
	URL       string
	Verbose   bool
	Publish   string
	Outbox    string
	UserToken string
	TokenKey  string
	Intention string
}

func loadSettings() settings {
	return settings{
		Catalog:   viper.GetString("catalog"),
		Dialect:   viper.GetString("dialect"),
		URL:       viper.GetString("url"),
		Verbose:   viper.GetBool("verbose"),
		Publish:   viper.GetString("publish"),
		Outbox:    viper.GetString("outbox"),
		UserToken: viper.GetString("user-token"),
		TokenKey:  viper.GetString("token-key"),
		Intention: viper.GetString("intention"),
	}
}

func (s settings) registry(ctx context.Context, log logger.Logger) (*table.Registry, error) {
	if s.Catalog == "" {
		return nil, fmt.Errorf("no catalog set, use --catalog or TABLEKIT_CATALOG")
	}
	return catalog.Load(ctx, log, s.Catalog)
}

// dialect comes from the database url when one is set.
func (s settings) dialect() (sqlq.Dialect, error) {
	if s.URL != "" {
		d, _, err := sqlq.DialectForURL(s.URL)
		return d, err
	}
	return sqlq.GetDialect(s.Dialect)
}

func (s settings) usageContext() (*internal.UsageContext, error) {
	var user *internal.User
	if s.UserToken != "" {
		if s.TokenKey == "" {
			return nil, fmt.Errorf("--token-key is required with --user-token")
		}
		u, err := auth.UserFromToken(s.UserToken, []byte(s.TokenKey))
		if err != nil {
			return nil, err
		}
		user = u
	}
	intention := internal.Intention(s.Intention)
	switch intention {
	case "":
		intention = internal.IntentionPublic
		if user != nil {
			intention = internal.IntentionUser
		}
	case internal.IntentionPublic, internal.IntentionUser, internal.IntentionAdmin:
	default:
		return nil, fmt.Errorf("invalid intention: %s", s.Intention)
	}
	return internal.NewUsageContext(intention, user), nil
}

func lookupTable(r *table.Registry, id string) (*table.Table, error) {
	t, ok := r.Table(id)
	if !ok {
		return nil, errors.Wrapf(internal.ErrNotFound, "table %s", id)
	}
	return t, nil
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tablekit",
	Short: "Inspect and exercise a table catalog",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if viper.GetBool("verbose") {
			newLogger("tablekit").Debug("running: %s", strings.Join(util.MaskArguments(os.Args[1:]), " "))
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TABLEKIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("tablekit")
		viper.AddConfigPath(".")
	}
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			fmt.Printf("error: reading config: %s\n", err)
			os.Exit(1)
		}
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file, defaults to ./tablekit.{toml,yaml,json}")
	flags.String("catalog", "", "the table catalog: a path, file:// url or s3://bucket/key")
	flags.String("dialect", "postgres", "the sql dialect used when no --url is set")
	flags.String("url", "", "the database url")
	flags.Bool("verbose", false, "print executed statements")
	flags.String("publish", "", "the changefeed url, nats:// or kafka://")
	flags.String("outbox", "", "directory of the outbox keeping events which could not be published")
	flags.String("user-token", "", "a signed token identifying the acting user")
	flags.String("token-key", "", "the key used to verify --user-token")
	flags.String("intention", "", "the request intention: public, user or admin")
	for _, name := range []string{"catalog", "dialect", "url", "verbose", "publish", "outbox", "user-token", "token-key", "intention"} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}
