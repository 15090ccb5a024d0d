package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/dentai/internal/interpret"
	"github.com/abhisek/dentai/internal/llm"
	"github.com/abhisek/dentai/internal/store"
)

const timeLayout = "2006-01-02 15:04:05"

// pipelineSteps lists purposes in pipeline order; anything else sorts after.
var pipelineSteps = []string{llm.PurposeInterpret, llm.PurposeRoleplay, llm.PurposeValidate}

var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Inspect language model calls made by the pipeline",
}

var llmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent model calls",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		purpose, _ := cmd.Flags().GetString("purpose")
		turnID, _ := cmd.Flags().GetString("turn")

		s, err := openEventStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		events, err := s.EventRepo().QueryLLMEvents(cmd.Context(), store.QueryOpts{
			Limit:   limit,
			Purpose: purpose,
			TurnID:  turnID,
		})
		if err != nil {
			return fmt.Errorf("query events: %w", err)
		}
		writeLLMEvents(cmd.OutOrStdout(), events)
		return nil
	},
}

var llmViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "Show one model call with the turn that triggered it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid ID %q: %w", args[0], err)
		}

		s, err := openEventStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		repo := s.EventRepo()
		e, err := repo.GetLLMEvent(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("get event: %w", err)
		}
		if e == nil {
			return fmt.Errorf("event %d not found", id)
		}

		var turn *store.TurnEvent
		if e.TurnID != "" {
			if turn, err = repo.GetTurn(cmd.Context(), e.TurnID); err != nil {
				return fmt.Errorf("get turn: %w", err)
			}
		}
		writeLLMEvent(cmd.OutOrStdout(), e, turn)
		return nil
	},
}

var llmStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show usage per pipeline step, interpretation fallbacks and cost",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openEventStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		repo := s.EventRepo()
		ctx := cmd.Context()
		steps, err := repo.LLMUsageByPurpose(ctx)
		if err != nil {
			return fmt.Errorf("query usage: %w", err)
		}
		sources, err := repo.TurnsBySource(ctx)
		if err != nil {
			return fmt.Errorf("query interpretation sources: %w", err)
		}
		models, err := repo.LLMUsageByModel(ctx)
		if err != nil {
			return fmt.Errorf("query model usage: %w", err)
		}

		w := cmd.OutOrStdout()
		if len(steps) == 0 && len(sources) == 0 {
			fmt.Fprintln(w, "Nothing recorded yet.")
			return nil
		}
		writeStepUsage(w, steps)
		writeSources(w, sources)
		writeModelCost(w, models)
		return nil
	},
}

func writeLLMEvents(w io.Writer, events []store.LLMEvent) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No LLM events found.")
		return
	}
	fmt.Fprintf(w, "%-5s  %-19s  %-8s  %-10s  %-28s  %11s  %6s  %s\n",
		"ID", "Time", "Turn", "Step", "Model", "Tokens", "Ms", "OK")
	rule(w, 100)
	for _, e := range events {
		status := "ok"
		if !e.Success {
			status = "failed: " + truncate(e.ErrorMessage, 40)
		}
		fmt.Fprintf(w, "%-5d  %-19s  %-8s  %-10s  %-28s  %5d/%-5d  %6d  %s\n",
			e.ID,
			e.Timestamp.Local().Format(timeLayout),
			orDash(truncate(e.TurnID, 8)),
			e.Purpose,
			truncate(e.Model, 28),
			e.InputTokens, e.OutputTokens,
			e.LatencyMs,
			status,
		)
	}
}

func writeLLMEvent(w io.Writer, e *store.LLMEvent, turn *store.TurnEvent) {
	fmt.Fprintf(w, "Call %d  %s  %s/%s  step=%s\n",
		e.ID, e.Timestamp.Local().Format(timeLayout), e.Provider, e.Model, e.Purpose)
	fmt.Fprintf(w, "  tokens %d in / %d out, %dms\n", e.InputTokens, e.OutputTokens, e.LatencyMs)
	if !e.Success {
		fmt.Fprintf(w, "  failed: %s\n", e.ErrorMessage)
	}

	section(w, "TURN")
	switch {
	case e.TurnID == "":
		fmt.Fprintln(w, "(made outside a turn)")
	case turn == nil:
		fmt.Fprintf(w, "%s (not recorded)\n", e.TurnID)
	default:
		fmt.Fprintf(w, "%s  learner=%s  case=%s  mode=%s\n", turn.TurnID, turn.LearnerID, turn.CaseID, turn.Mode)
		fmt.Fprintf(w, "Student:  %s\n", turn.RawText)
		fmt.Fprintf(w, "Action:   %s %s (source: %s)\n", turn.IntentType, turn.InterpretedAction, orDash(turn.Source))
		fmt.Fprintf(w, "Outcome:  %s, score %.1f\n", orDash(turn.RuleOutcome), turn.Score)
		fmt.Fprintf(w, "Reply:    %s\n", turn.FinalFeedback)
	}

	section(w, "REQUEST")
	fmt.Fprintln(w, orNotCaptured(e.RequestBody))
	section(w, "RESPONSE")
	fmt.Fprintln(w, orNotCaptured(e.ResponseBody))
}

func writeStepUsage(w io.Writer, usage []store.PurposeUsage) {
	if len(usage) == 0 {
		return
	}
	fmt.Fprintln(w, "Pipeline steps")
	rule(w, 78)
	fmt.Fprintf(w, "%-12s  %6s  %8s  %7s  %10s  %10s  %8s\n",
		"Step", "Calls", "Failed", "Fail %", "Input", "Output", "Avg Ms")
	rule(w, 78)

	var calls, failed, in, out int
	for _, u := range orderSteps(usage) {
		fmt.Fprintf(w, "%-12s  %6d  %8d  %6.1f%%  %10d  %10d  %8d\n",
			u.Purpose, u.Calls, u.Failures, percent(u.Failures, u.Calls),
			u.InputTokens, u.OutputTokens, u.AvgLatencyMs)
		calls += u.Calls
		failed += u.Failures
		in += u.InputTokens
		out += u.OutputTokens
	}
	rule(w, 78)
	fmt.Fprintf(w, "%-12s  %6d  %8d  %6.1f%%  %10d  %10d\n",
		"TOTAL", calls, failed, percent(failed, calls), in, out)
}

// writeSources reports how turns were interpreted. Keyword and error
// fallbacks are counted per mode so a quota outage stands out.
func writeSources(w io.Writer, counts []store.SourceCount) {
	if len(counts) == 0 {
		return
	}
	totals := make(map[string]int)
	for _, c := range counts {
		totals[c.Mode] += c.Turns
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Interpretation sources")
	rule(w, 56)
	fmt.Fprintf(w, "%-10s  %-14s  %8s  %7s  %s\n", "Mode", "Source", "Turns", "Share", "")
	rule(w, 56)

	var turns, fallbacks int
	for _, c := range counts {
		mark := ""
		if isFallback(c.Source) {
			mark = "fallback"
			fallbacks += c.Turns
		}
		turns += c.Turns
		fmt.Fprintf(w, "%-10s  %-14s  %8d  %6.1f%%  %s\n",
			c.Mode, orDash(c.Source), c.Turns, percent(c.Turns, totals[c.Mode]), mark)
	}
	rule(w, 56)
	fmt.Fprintf(w, "Fallbacks: %d of %d turns (%.1f%%)\n", fallbacks, turns, percent(fallbacks, turns))
}

func writeModelCost(w io.Writer, usage []store.ModelUsage) {
	if len(usage) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Estimated cost (USD)")
	rule(w, 72)

	var total float64
	var unpriced []string
	for _, mu := range usage {
		price := "?"
		if cost := llm.LookupCost(mu.Model); cost != nil {
			c := cost.Cost(mu.InputTokens, mu.OutputTokens)
			total += c
			price = formatCost(c)
		} else {
			unpriced = append(unpriced, mu.Model)
		}
		fmt.Fprintf(w, "%-32s  %6d calls  %10d in  %10d out  %9s\n",
			truncate(mu.Model, 32), mu.Calls, mu.InputTokens, mu.OutputTokens, price)
	}
	rule(w, 72)
	label := "TOTAL"
	if len(unpriced) > 0 {
		label = "TOTAL (partial)"
	}
	fmt.Fprintf(w, "%-32s  %9s\n", label, formatCost(total))
	if len(unpriced) > 0 {
		fmt.Fprintf(w, "Pricing unavailable for: %s\n", strings.Join(unpriced, ", "))
	}
}

// orderSteps puts known pipeline steps first, in pipeline order.
func orderSteps(usage []store.PurposeUsage) []store.PurposeUsage {
	out := make([]store.PurposeUsage, 0, len(usage))
	seen := make(map[string]bool)
	for _, step := range pipelineSteps {
		for _, u := range usage {
			if u.Purpose == step {
				out = append(out, u)
				seen[step] = true
			}
		}
	}
	for _, u := range usage {
		if !seen[u.Purpose] {
			out = append(out, u)
		}
	}
	return out
}

func isFallback(source string) bool {
	return interpret.Interpretation{Source: interpret.Source(source)}.Fallback()
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return 100 * float64(part) / float64(whole)
}

func rule(w io.Writer, width int) {
	fmt.Fprintln(w, strings.Repeat("─", width))
}

func section(w io.Writer, title string) {
	fmt.Fprintln(w)
	rule(w, 60)
	fmt.Fprintln(w, title)
	rule(w, 60)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func orNotCaptured(s string) string {
	if s == "" {
		return "(not captured)"
	}
	return s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func formatCost(usd float64) string {
	if usd < 0.01 {
		return fmt.Sprintf("$%.4f", usd)
	}
	return fmt.Sprintf("$%.2f", usd)
}

func init() {
	llmListCmd.Flags().IntP("limit", "n", 20, "Number of events to show")
	llmListCmd.Flags().StringP("purpose", "p", "", "Filter by pipeline step (interpret, roleplay, validate)")
	llmListCmd.Flags().StringP("turn", "t", "", "Only show calls made for this turn id")

	llmCmd.AddCommand(llmListCmd)
	llmCmd.AddCommand(llmViewCmd)
	llmCmd.AddCommand(llmStatsCmd)
}
