package command

import (
	"github.com/spf13/cobra"
)

func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "salvage-market",
		Short: "Recycling and salvage marketplace backend",
		Example: `  salvage-market serve
  salvage-market migrate
  salvage-market sweep`,
		SilenceUsage: true,
	}

	cmd.AddCommand(
		NewServeCommand(),
		NewMigrateCommand(),
		NewSweepCommand(),
	)

	return cmd
}
