package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/dentai/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded turns",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		learner, _ := cmd.Flags().GetString("learner")

		s, err := openEventStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		turns, err := s.EventRepo().QueryTurns(cmd.Context(), store.QueryOpts{
			Limit:     limit,
			LearnerID: learner,
		})
		if err != nil {
			return fmt.Errorf("query turns: %w", err)
		}
		if len(turns) == 0 {
			fmt.Println("No turns recorded.")
			return nil
		}

		fmt.Printf("%-19s  %-10s  %-12s  %-8s  %-32s  %-12s  %6s  %s\n",
			"Timestamp", "Learner", "Case", "Mode", "Action", "Source", "Score", "Outcome")
		fmt.Println(strings.Repeat("─", 124))
		for _, t := range turns {
			fmt.Printf("%-19s  %-10s  %-12s  %-8s  %-32s  %-12s  %6.1f  %s\n",
				t.Timestamp.Local().Format(timeLayout),
				truncate(t.LearnerID, 10),
				truncate(t.CaseID, 12),
				t.Mode,
				truncate(t.InterpretedAction, 32),
				orDash(t.Source),
				t.Score,
				t.RuleOutcome,
			)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Number of turns to show")
	historyCmd.Flags().StringP("learner", "l", "", "Only show this learner's turns")
}
