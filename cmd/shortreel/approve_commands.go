package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shortreel/internal/store"
)

func newApproveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <run-id>",
		Short: "Approve a parked script for synthesis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			run, err := st.GetByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if run.Status != store.StatusAwaitingApproval {
				return fmt.Errorf("run %s is %s, not awaiting approval", run.ID, run.Status)
			}
			if err := st.Transition(cmd.Context(), run.ID, store.StatusApproved); err != nil {
				return err
			}

			fmt.Printf("Run %s approved. Continue with: shortreel resume %s\n", run.ID, run.ID)
			return nil
		},
	}
}

func newRejectCommand(ctx *commandContext) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "reject <run-id>",
		Short: "Reject a parked script; the run is terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Reject(cmd.Context(), args[0], reason); err != nil {
				return err
			}
			fmt.Printf("Run %s rejected.\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "", "Why the script was rejected")
	return cmd
}
