package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run_id>",
		Short: "Show details of a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]

			resp, err := client.Get("/api/v1/runs/" + id)
			if err != nil {
				return fmt.Errorf("get run: %w", err)
			}

			var data map[string]any
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			state, _ := data["state"].(string)
			policy, _ := data["policy"].(string)
			scenarioName, _ := data["scenario"].(string)
			ticks, _ := data["ticks"].(float64)
			timerFreq, _ := data["timer_freq"].(float64)
			timeSlice, _ := data["time_slice"].(float64)

			fmt.Printf("Run: %s\n", id)
			fmt.Printf("  Scenario:   %s\n", scenarioName)
			fmt.Printf("  Policy:     %s\n", policy)
			fmt.Printf("  State:      %s\n", state)
			fmt.Printf("  Ticks:      %d\n", int64(ticks))
			fmt.Printf("  Timer freq: %d\n", int(timerFreq))
			fmt.Printf("  Time slice: %d\n", int(timeSlice))

			if errMsg, ok := data["error"].(string); ok && errMsg != "" {
				fmt.Printf("  Error:      %s\n", errMsg)
			}
			if startedAt, ok := data["started_at"].(string); ok {
				fmt.Printf("  Started:    %s\n", startedAt)
			}
			if finishedAt, ok := data["finished_at"].(string); ok && finishedAt != "" {
				fmt.Printf("  Finished:   %s\n", finishedAt)
			}

			return nil
		},
	}
}
