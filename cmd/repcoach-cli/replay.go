package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/claude/repcoach/internal/client"
	"github.com/claude/repcoach/internal/registry"
	"github.com/claude/repcoach/internal/replay"
	"github.com/claude/repcoach/internal/session"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var replayCmd = &cobra.Command{
	Use:   "replay <recording.jsonl[.gz]>",
	Short: "Drive a frame recording through a workout session",
	Long: `Replays a JSON-lines recording of detector frames. Locally the session clock
follows the recording timestamps. With --server the frames are posted to a new
session on the remote service, paced in real time.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		planPath, _ := cmd.Flags().GetString("plan")
		exerciseKey, _ := cmd.Flags().GetString("exercise")
		startingSet, _ := cmd.Flags().GetInt("starting-set")
		verbose, _ := cmd.Flags().GetBool("verbose")

		plan, err := loadPlan(planPath)
		if err != nil {
			return err
		}

		src, err := replay.Open(args[0])
		if err != nil {
			return err
		}
		defer src.Close()

		var onFrame func(replay.Record, session.Output)
		if verbose {
			enc := json.NewEncoder(os.Stdout)
			onFrame = func(rec replay.Record, out session.Output) {
				enc.Encode(struct {
					TMillis int64 `json:"t_ms"`
					session.Output
				}{rec.TMillis, out})
			}
		}

		if url, _ := cmd.Flags().GetString("server"); url != "" {
			key, _ := cmd.Flags().GetString("api-key")
			return replayRemote(cmd, client.New(url, key), src, registry.CreateParams{
				Plan: plan, ExerciseKey: exerciseKey, StartingSet: startingSet,
			}, onFrame)
		}

		catalog, err := loadCatalog(cmd)
		if err != nil {
			return err
		}
		sum, err := replay.Run(cmd.Context(), src, catalog, replay.Options{
			Plan:        plan,
			ExerciseKey: exerciseKey,
			StartingSet: startingSet,
			Logger:      newLogger(cmd),
			OnFrame:     onFrame,
		})
		if err != nil {
			return err
		}
		printSummary(sum)
		return nil
	},
}

func init() {
	replayCmd.Flags().String("plan", "", "workout plan YAML (list of exercise_key, target_sets, target_reps)")
	replayCmd.Flags().String("exercise", "", "start with this exercise instead of the first of the plan")
	replayCmd.Flags().Int("starting-set", 1, "set number to start at")
	replayCmd.Flags().BoolP("verbose", "v", false, "print every frame output as JSON")
}

func loadPlan(path string) (session.Plan, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan: %w", err)
	}
	var plan session.Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parsing plan: %w", err)
	}
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("plan %s: %w", path, err)
	}
	return plan, nil
}

// replayRemote streams src into a new server session and reports where it ended.
func replayRemote(cmd *cobra.Command, c *client.Client, src *replay.Reader, p registry.CreateParams, onFrame func(replay.Record, session.Output)) error {
	ctx := cmd.Context()
	info, err := c.CreateSession(ctx, p)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "session %s (%s)\n", info.ID, info.ExerciseKey)

	var sets []session.SetFinished
	n, err := c.Stream(ctx, info.ID, src, true, func(rec replay.Record, out session.Output) {
		if out.SetFinished != nil {
			sets = append(sets, *out.SetFinished)
		}
		if onFrame != nil {
			onFrame(rec, out)
		}
	})
	if err != nil {
		return fmt.Errorf("session %s: %w", info.ID, err)
	}

	final, err := c.Session(ctx, info.ID)
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Println("=== Remote Replay Summary ===")
	fmt.Printf("  Session:          %s\n", info.ID)
	fmt.Printf("  Frames sent:      %d\n", n)
	for _, s := range sets {
		fmt.Printf("  %s set %d: %d good, %d bad\n", s.ExerciseKey, s.CompletedSetNumber, s.GoodRepsInSet, s.BadRepsInSet)
	}
	fmt.Printf("\n  Final state:      %s (%s, set %d/%d)\n", final.State, final.ExerciseKey, final.CurrentSet, final.TargetSets)
	fmt.Println()
	return nil
}

func printSummary(sum replay.Summary) {
	fmt.Println()
	fmt.Println("=== Replay Summary ===")
	fmt.Printf("  Frames:           %d\n", sum.Frames)
	fmt.Printf("  Duration:         %s\n", sum.Duration)
	fmt.Printf("  Frame interval:   %.1f ms (sd %.1f)\n", sum.IntervalMean, sum.IntervalStdDev)
	fmt.Printf("  Good reps:        %d\n", sum.GoodReps)
	fmt.Printf("  Bad reps:         %d\n", sum.BadReps)
	fmt.Println()
	for _, s := range sum.Sets {
		fmt.Printf("  %s set %d: %d good, %d bad\n", s.ExerciseKey, s.CompletedSetNumber, s.GoodRepsInSet, s.BadRepsInSet)
	}
	for _, e := range sum.Exercises {
		fmt.Printf("  %s finished\n", e.ExerciseKey)
	}
	fmt.Printf("\n  Final state:      %s (%s, set %d/%d)\n",
		sum.Final.State, sum.Final.ExerciseKey, sum.Final.CurrentSet, sum.Final.TargetSets)
	fmt.Println()
}
