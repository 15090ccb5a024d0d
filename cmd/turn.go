package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/dentai/internal/agent"
)

var turnCmd = &cobra.Command{
	Use:   "turn <text>",
	Short: "Process one learner turn and print the result as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		learner, _ := cmd.Flags().GetString("learner")
		caseID, _ := cmd.Flags().GetString("case")
		educator, _ := cmd.Flags().GetBool("educator")

		rt, err := buildRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		mode := agent.ModePatient
		if educator {
			mode = agent.ModeEducator
		}
		res, err := rt.agent.ProcessTurn(cmd.Context(), agent.TurnRequest{
			LearnerID: learner,
			Text:      strings.Join(args, " "),
			CaseID:    caseID,
			Mode:      mode,
		})
		if err != nil {
			return fmt.Errorf("process turn: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(res)
	},
}

func init() {
	turnCmd.Flags().StringP("learner", "l", "", "Learner id")
	turnCmd.Flags().StringP("case", "c", "", "Switch the learner to this case first")
	turnCmd.Flags().Bool("educator", false, "Answer as the educator instead of the patient")
	_ = turnCmd.MarkFlagRequired("learner")
}
