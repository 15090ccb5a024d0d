package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/dentai/internal/agent"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive session on stdin",
	Long: `Reads one learner turn per line. Lines starting with / are commands:
  /case <id>       switch case
  /mode <mode>     patient or educator
  /state           print the learner state
  /reset           start over
  /quit            leave`,
	RunE: func(cmd *cobra.Command, args []string) error {
		learner, _ := cmd.Flags().GetString("learner")
		educator, _ := cmd.Flags().GetBool("educator")

		rt, err := buildRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		s := &chatSession{
			agent:   rt.agent,
			learner: learner,
			out:     cmd.OutOrStdout(),
			errOut:  cmd.ErrOrStderr(),
		}
		if educator {
			s.mode = agent.ModeEducator
		}
		return s.run(cmd.Context(), cmd.InOrStdin())
	},
}

type chatSession struct {
	agent   *agent.Agent
	learner string
	mode    agent.Mode
	caseID  string
	out     io.Writer
	errOut  io.Writer
}

func (s *chatSession) run(ctx context.Context, in io.Reader) error {
	st, err := s.agent.Store().State(ctx, s.learner)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Vaka: %s (%s modu). Çıkmak için /quit.\n", st.CaseID, s.mode)

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(s.out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			quit, err := s.command(ctx, line)
			if err != nil {
				fmt.Fprintln(s.errOut, "error:", err)
			}
			if quit {
				return nil
			}
			continue
		}

		res, err := s.agent.ProcessTurn(ctx, agent.TurnRequest{
			LearnerID: s.learner,
			Text:      line,
			CaseID:    s.caseID,
			Mode:      s.mode,
		})
		if err != nil {
			fmt.Fprintln(s.errOut, "error:", err)
			continue
		}
		s.caseID = ""
		fmt.Fprintln(s.out, res.FinalFeedback)
	}
}

func (s *chatSession) command(ctx context.Context, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/case":
		if len(fields) != 2 {
			return false, fmt.Errorf("usage: /case <id>")
		}
		if _, ok := s.agent.Store().Catalog().Lookup(fields[1]); !ok {
			return false, fmt.Errorf("unknown case %q", fields[1])
		}
		s.caseID = fields[1]
		fmt.Fprintf(s.out, "Sonraki tur %s vakasında.\n", s.caseID)
	case "/mode":
		if len(fields) != 2 {
			return false, fmt.Errorf("usage: /mode patient|educator")
		}
		m, err := agent.ParseMode(fields[1])
		if err != nil {
			return false, err
		}
		s.mode = m
		fmt.Fprintf(s.out, "Mod: %s\n", s.mode)
	case "/state":
		st, err := s.agent.Store().State(ctx, s.learner)
		if err != nil {
			return false, err
		}
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return false, err
		}
		fmt.Fprintln(s.out, string(data))
	case "/reset":
		if err := s.agent.Store().Reset(ctx, s.learner); err != nil {
			return false, err
		}
		fmt.Fprintln(s.out, "Durum sıfırlandı.")
	default:
		return false, fmt.Errorf("unknown command %s", fields[0])
	}
	return false, nil
}

func init() {
	chatCmd.Flags().StringP("learner", "l", "local", "Learner id")
	chatCmd.Flags().Bool("educator", false, "Start in educator mode")
}
