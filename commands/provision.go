package commands

import (
	"github.com/spf13/cobra"
)

func NewProvisionCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "provision",
		Short: "Create tables and indexes, then exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			rt, err := newRuntime(ctx, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.gw.Connect(ctx); err != nil {
				return err
			}
			if err := rt.gw.Provision(ctx); err != nil {
				return err
			}
			rt.logger.Info("storage provisioned")
			return nil
		},
	}
}
