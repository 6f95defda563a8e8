package cli

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

func newTraceCmd() *cobra.Command {
	var limit, offset int
	var samples bool

	cmd := &cobra.Command{
		Use:   "trace <run_id>",
		Short: "Print the lifecycle events recorded for a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if samples {
				return printSamples(id)
			}

			q := url.Values{}
			q.Set("limit", strconv.Itoa(limit))
			q.Set("offset", strconv.Itoa(offset))

			resp, err := client.Get("/api/v1/runs/" + id + "/events?" + q.Encode())
			if err != nil {
				return fmt.Errorf("get events: %w", err)
			}

			var data []map[string]any
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			if len(data) == 0 {
				fmt.Println("No events recorded.")
				return nil
			}

			fmt.Printf("%8s  %6s  %-16s  %s\n", "TICK", "TID", "THREAD", "EVENT")
			for _, ev := range data {
				tick, _ := ev["tick"].(float64)
				tid, _ := ev["thread_id"].(float64)
				thread, _ := ev["thread"].(string)
				kind, _ := ev["kind"].(string)
				fmt.Printf("%8d  %6d  %-16s  %s\n", int64(tick), int(tid), thread, kind)
			}

			if resp.Pagination != nil && resp.Pagination.HasMore {
				fmt.Printf("\n(%d of %d shown)\n", len(data), resp.Pagination.Total)
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum events to print")
	cmd.Flags().IntVar(&offset, "offset", 0, "Offset into the event list")
	cmd.Flags().BoolVar(&samples, "samples", false, "Print per-second load samples instead of events")

	return cmd
}

func printSamples(id string) error {
	resp, err := client.Get("/api/v1/runs/" + id + "/samples")
	if err != nil {
		return fmt.Errorf("get samples: %w", err)
	}

	var data []map[string]any
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	if len(data) == 0 {
		fmt.Println("No samples recorded.")
		return nil
	}

	fmt.Printf("%8s  %10s  %6s  %s\n", "TICK", "LOAD_AVG", "READY", "RUNNING")
	for _, s := range data {
		tick, _ := s["tick"].(float64)
		load, _ := s["load_avg_100"].(float64)
		ready, _ := s["ready_count"].(float64)
		running, _ := s["running"].(string)
		fmt.Printf("%8d  %10.2f  %6d  %s\n", int64(tick), load/100, int(ready), running)
	}

	return nil
}
