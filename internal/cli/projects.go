package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newProjectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List open projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			logger := GetLogger()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client, err := login(ctx, cfg, newStdPrompter(), logger)
			if err != nil {
				return err
			}
			projects, err := client.ListOpenProjects(ctx)
			if err != nil {
				return fmt.Errorf("failed to list projects: %w", err)
			}

			rows := make([][]string, 0, len(projects))
			for i, p := range projects {
				rows = append(rows, []string{strconv.Itoa(i + 1), p.Name, p.ID})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"#", "Name", "ID"}, rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft}))
			return nil
		},
	}
}
