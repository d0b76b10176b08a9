package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"shortreel/internal/approval"
	"shortreel/internal/pipeline"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var interactive bool

	cmd := &cobra.Command{
		Use:   "run <topic>",
		Short: "Run the pipeline for a topic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topic := strings.Join(args, " ")

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("interactive") {
				cfg.Approval.Interactive = interactive
			}

			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			run, err := pipeline.New(cfg, logger, st).Run(cmd.Context(), topic)
			if errors.Is(err, pipeline.ErrAwaitingApproval) {
				fmt.Printf("Run %s is awaiting approval.\n", run.ID)
				fmt.Printf("Review with: shortreel approve %s  (then: shortreel resume %s)\n", run.ID, run.ID)
				return nil
			}
			if errors.Is(err, approval.ErrRejected) {
				fmt.Printf("Run %s rejected.\n", run.ID)
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Printf("Run %s complete. Video: %s\n", run.ID, run.VideoPath)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Review the script in this terminal instead of parking the run")
	return cmd
}
