package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run_id>",
		Short: "Delete a recorded run and its trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]

			if _, err := client.Delete("/api/v1/runs/" + id); err != nil {
				return fmt.Errorf("delete run: %w", err)
			}

			fmt.Printf("Run %s deleted.\n", id)
			return nil
		},
	}
}
