package commands

import (
	"encoding/json"
	"errors"
	"io"
	"os"

	"slipsync/services"

	"github.com/spf13/cobra"
)

type syncOptions struct {
	File string
}

// NewSyncCommand applies one sync payload from a file, or stdin with "-",
// and prints the report. Partial reports are printed before the error.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &syncOptions{}

	cmd := &cobra.Command{
		Use:   "sync --file payload.json",
		Short: "Apply a sync payload without going through HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, rootOpts, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "payload file, or - for stdin")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runSync(cmd *cobra.Command, rootOpts *RootOptions, opts *syncOptions) error {
	var in io.Reader = cmd.InOrStdin()
	if opts.File != "-" {
		f, err := os.Open(opts.File)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	payload, err := services.DecodeSyncPayload(in)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	rt, err := newRuntime(ctx, rootOpts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.close()

	if err := rt.gw.Connect(ctx); err != nil {
		return err
	}
	if rt.cfg.DB.AutoMigrate {
		if err := rt.gw.Provision(ctx); err != nil {
			return err
		}
	}

	report, syncErr := rt.syncProcessor().Sync(ctx, payload)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return errors.Join(syncErr, err)
	}
	return syncErr
}
