package command

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewSweepCommand runs one expiration sweep, for deployments that
// schedule it externally instead of inside serve.
func NewSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire overdue listings once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Sweeper.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d listings, cancelled %d assignments, assigned %d agents\n",
				res.Expired, res.AssignmentsCancelled, res.AgentsAssigned)
			return nil
		},
	}
}
