package command

import (
	"github.com/spf13/cobra"
)

func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "migrate",
		Short:   "Create or update the database schema",
		Args:    cobra.NoArgs,
		Example: `  DB_DRIVER=sqlite3 SQLITE_PATH=./market.db salvage-market migrate`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			return app.Migrate(cmd.Context())
		},
	}
}
