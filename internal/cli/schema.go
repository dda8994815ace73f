package cli

import (
	"fmt"

	"github.com/p-n-ai/pai-curator/internal/curriculum"
	"github.com/spf13/cobra"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "schema [topic|weekly]",
		Short:     "Print the JSON Schema that written files are validated against",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"topic", "weekly"},
		RunE: func(cmd *cobra.Command, args []string) error {
			gen := curriculum.RecordSchema
			if len(args) == 1 && args[0] == "weekly" {
				gen = curriculum.WeeklyUnitSchema
			}
			data, err := gen()
			if err != nil {
				return fmt.Errorf("generating schema: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}
