package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"shortly/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [command] [args...]",
	Short: "Apply or inspect database migrations",
	Long: `Runs a goose command against the configured database. Without arguments
all pending migrations are applied. Examples: "migrate status", "migrate down",
"migrate up-to 2".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		command := "up"
		if len(args) > 0 {
			command, args = args[0], args[1:]
		}

		db, err := database.Connect(cmd.Context(), cfg.Database.URL)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := database.Migrate(cmd.Context(), db, command, args...); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: done\n", command)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(migrateCmd)
}
