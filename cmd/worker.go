package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/link-archiver/internal/worker"
)

// newWorkerCmd is the child side of the process pool. It speaks JSON lines
// on stdin/stdout and logs to stderr.
func newWorkerCmd() *cobra.Command {
	var id int
	cmd := &cobra.Command{
		Use:    "worker",
		Short:  "Run a single capture worker (used internally by screen-all)",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			logger := app.Logger.With(zap.Int("worker_id", id))

			factory, cleanup, err := newCapturerFactory(cmd.Context(), app.Config, logger)
			if err != nil {
				return fmt.Errorf("worker %d: %w", id, err)
			}
			defer cleanup()

			w := worker.New(id, factory, logger)
			if err := worker.Serve(cmd.Context(), w, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
				return fmt.Errorf("worker %d: %w", id, err)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&id, "id", 0, "worker identifier assigned by the dispatcher")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
