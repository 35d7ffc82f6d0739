package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/claude/repcoach/internal/client"
	"github.com/claude/repcoach/internal/exercise"
	"github.com/spf13/cobra"
)

var exercisesCmd = &cobra.Command{
	Use:   "exercises [key]",
	Short: "List exercises, or print one definition as JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, err := exercises(cmd)
		if err != nil {
			return err
		}

		if len(args) == 1 {
			for _, ex := range all {
				if ex.Key == args[0] {
					enc := json.NewEncoder(os.Stdout)
					enc.SetIndent("", "  ")
					return enc.Encode(ex)
				}
			}
			return fmt.Errorf("%q: %w", args[0], exercise.ErrUnknownExercise)
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KEY\tNAME\tRANGE\tTEMPO (C/H/E)\tRULES")
		for _, ex := range all {
			fmt.Fprintf(tw, "%s\t%s\t%g-%g\t%g/%g/%g\t%d\n",
				ex.Key, ex.Name, ex.AngleRange[0], ex.AngleRange[1],
				ex.Timing.Concentric, ex.Timing.Hold, ex.Timing.Eccentric, len(ex.FormChecks))
		}
		return tw.Flush()
	},
}

func exercises(cmd *cobra.Command) ([]*exercise.Exercise, error) {
	if url, _ := cmd.Flags().GetString("server"); url != "" {
		key, _ := cmd.Flags().GetString("api-key")
		return client.New(url, key).Exercises(cmd.Context())
	}
	cat, err := loadCatalog(cmd)
	if err != nil {
		return nil, err
	}
	return cat.All(), nil
}
