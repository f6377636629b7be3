package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopmonkeyus/tablekit/internal"
	"github.com/shopmonkeyus/tablekit/internal/auth"
	"github.com/shopmonkeyus/tablekit/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Sign a user token for --user-token",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		log := newLogger("token")
		defer util.RecoverPanic(log)
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			log.Fatal("invalid user id: %s", args[0])
		}
		key := viper.GetString("token-key")
		if key == "" {
			log.Fatal("--token-key is required")
		}
		permissions, err := cmd.Flags().GetStringSlice("permission")
		if err != nil {
			log.Fatal("%s", err)
		}
		ttl, err := cmd.Flags().GetDuration("ttl")
		if err != nil {
			log.Fatal("%s", err)
		}
		user := internal.User{
			ID:          id,
			Name:        mustFlagString(cmd, "name", false),
			IsSysAdmin:  mustFlagBool(cmd, "sysadmin", false),
			Permissions: permissions,
		}
		token, err := auth.NewToken(user, []byte(key), ttl)
		if err != nil {
			log.Fatal("error signing token: %s", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().String("name", "", "the user name")
	tokenCmd.Flags().Bool("sysadmin", false, "grant every permission")
	tokenCmd.Flags().StringSlice("permission", nil, "a permission the user holds, may be repeated")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "how long the token is valid")
}
