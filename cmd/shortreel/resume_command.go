package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shortreel/internal/pipeline"
)

func newResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <run-id>",
		Short: "Continue an approved run into synthesis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
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

			if err := pipeline.New(cfg, logger, st).Resume(cmd.Context(), args[0]); err != nil {
				return err
			}

			run, err := st.GetByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Run %s complete. Video: %s\n", run.ID, run.VideoPath)
			return nil
		},
	}
}
