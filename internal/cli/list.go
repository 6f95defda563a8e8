package cli

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	var state string
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if state != "" {
				q.Set("state", state)
			}
			q.Set("limit", strconv.Itoa(limit))
			q.Set("offset", strconv.Itoa(offset))

			resp, err := client.Get("/api/v1/runs?" + q.Encode())
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}

			var data []map[string]any
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			if len(data) == 0 {
				fmt.Println("No runs found.")
				return nil
			}

			fmt.Printf("%-42s  %-10s  %-9s  %8s  %s\n", "ID", "STATE", "POLICY", "TICKS", "SCENARIO")
			fmt.Printf("%-42s  %-10s  %-9s  %8s  %s\n", "----", "-----", "------", "-----", "--------")
			for _, run := range data {
				id, _ := run["id"].(string)
				runState, _ := run["state"].(string)
				policy, _ := run["policy"].(string)
				ticks, _ := run["ticks"].(float64)
				scenarioName, _ := run["scenario"].(string)
				fmt.Printf("%-42s  %-10s  %-9s  %8d  %s\n", id, runState, policy, int64(ticks), scenarioName)
			}

			if resp.Pagination != nil && resp.Pagination.HasMore {
				fmt.Printf("\n(%d of %d shown)\n", len(data), resp.Pagination.Total)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "Filter by run state (RUNNING, COMPLETED, FAILED)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "Offset into the run list")

	return cmd
}
