package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No runs yet.")
				return nil
			}

			headers := []string{"RUN", "TOPIC", "STATUS", "UPDATED", "VIDEO"}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					run.ID,
					truncate(run.Topic, 40),
					string(run.Status),
					humanAge(run.UpdatedAt),
					run.VideoPath,
				})
			}
			fmt.Println(renderTable(headers, rows))
			return nil
		},
	}
}

func humanAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	age := time.Since(t).Round(time.Minute)
	if age < time.Minute {
		return "just now"
	}
	return age.String() + " ago"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
