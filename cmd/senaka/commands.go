package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lilamaris/senaka"
)

func newRunCmd(configPath *string) *cobra.Command {
	var (
		agentID   string
		sessionID string
		maxSteps  int
		mode      string
		noStream  bool
		yes       bool
		no        bool
		ask       bool
	)

	cmd := &cobra.Command{
		Use:   "run <goal>",
		Short: "Run the agent loop once against a goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			h, err := newHost(ctx, *configPath, true)
			if err != nil {
				return err
			}
			defer h.close(context.Background())

			session, err := h.store.LoadOrCreate(ctx, sessionID, "")
			if err != nil {
				return err
			}
			if sessionID == "" {
				fmt.Fprintln(os.Stderr, "session:", session.ID)
			}

			_, err = runOnce(ctx, h, session, args[0], agentID, runParams{
				maxSteps: maxSteps,
				mode:     mode,
				noStream: noStream,
				yes:      yes,
				no:       no,
			})
			return err
		},
	}

	cmd.Flags().StringVar(&agentID, "agent", "", "agent id from the registry")
	cmd.Flags().StringVar(&sessionID, "session", "", "session id (new one generated when empty)")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "worker step budget override")
	cmd.Flags().StringVar(&mode, "mode", "", "routing mode override")
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "disable token streaming")
	cmd.Flags().BoolVar(&yes, "yes", false, "answer YES to all operator questions")
	cmd.Flags().BoolVar(&no, "no", false, "answer NO to all operator questions")
	cmd.Flags().BoolVar(&ask, "ask", false, "prompt on stdin for operator questions (default)")
	cmd.MarkFlagsMutuallyExclusive("yes", "no", "ask")
	return cmd
}

type runParams struct {
	maxSteps int
	mode     string
	noStream bool
	yes      bool
	no       bool
}

func runOnce(ctx context.Context, h *host, session *senaka.ChatSession, goal, agentID string, p runParams) (senaka.RunResult, error) {
	stdin := bufio.NewReader(os.Stdin)
	stream := !p.noStream
	printer := &runPrinter{out: os.Stdout, errOut: os.Stderr}

	opts := senaka.RunOptions{
		Mode:     p.mode,
		MaxSteps: p.maxSteps,
		Stream:   &stream,
		AskUser:  askPolicy(p.yes, p.no, stdin),
		OnEvent:  printer.handle,
	}

	result, err := h.loop.Run(ctx, session, goal, agentID, opts)
	if err != nil {
		return result, err
	}
	printer.finish(result.Summary)
	return result, nil
}

// runPrinter renders run events for the terminal: tool commands echo to
// errOut, streamed final-report tokens go to out.
type runPrinter struct {
	out      io.Writer
	errOut   io.Writer
	streamed strings.Builder
}

func (p *runPrinter) handle(ev senaka.Event) {
	switch ev.Kind {
	case senaka.EventToolStart:
		fmt.Fprintf(p.errOut, "  $ %s\n", ev.Cmd)
	case senaka.EventToolResult:
		if ev.ExitCode != 0 {
			fmt.Fprintf(p.errOut, "  exit %d\n", ev.ExitCode)
		}
	case senaka.EventMainToken:
		// Only the final report is user-facing prose. Planning, sufficiency,
		// and forced-synthesis phases stream internal JSON and never print.
		if ev.Phase == senaka.PhaseFinalReport {
			fmt.Fprint(p.out, ev.Token)
			p.streamed.WriteString(ev.Token)
		}
	}
}

// finish prints the final answer. Repair rewrites, answer-field salvage, and
// the deterministic fallback do not stream final-report tokens, and a
// streamed first attempt may be rejected and rewritten after its tokens hit
// the screen; whenever the accepted answer differs from what streamed, it is
// rendered from the run summary.
func (p *runPrinter) finish(summary string) {
	if p.streamed.Len() > 0 {
		fmt.Fprintln(p.out)
		if strings.TrimSpace(p.streamed.String()) == strings.TrimSpace(summary) {
			return
		}
	}
	fmt.Fprint(p.out, renderFinal(summary))
}

func newChatCmd(configPath *string) *cobra.Command {
	var (
		agentID   string
		sessionID string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive loop: each line runs a goal on the same session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			h, err := newHost(ctx, *configPath, true)
			if err != nil {
				return err
			}
			defer h.close(context.Background())

			session, err := h.store.LoadOrCreate(ctx, sessionID, "")
			if err != nil {
				return err
			}
			fmt.Println("session:", session.ID)
			fmt.Println("commands: /reset discards the transcript, /quit exits")

			in := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("> ")
				if !in.Scan() {
					break
				}
				line := strings.TrimSpace(in.Text())
				switch {
				case line == "":
					continue
				case line == "/quit":
					return nil
				case line == "/reset":
					session, err = h.store.Reset(ctx, session.ID, "")
					if err != nil {
						return err
					}
					fmt.Println("session reset")
					continue
				}

				if _, err := runOnce(ctx, h, session, line, agentID, runParams{}); err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					fmt.Fprintln(os.Stderr, "run failed:", err)
					continue
				}
			}
			return in.Err()
		},
	}

	cmd.Flags().StringVar(&agentID, "agent", "", "agent id from the registry")
	cmd.Flags().StringVar(&sessionID, "session", "", "session id (new one generated when empty)")
	return cmd
}

func newModelsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models from the registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			h, err := newHost(ctx, *configPath, false)
			if err != nil {
				return err
			}
			defer h.close(context.Background())

			for _, m := range h.registry.Models() {
				ctxLen := "-"
				if m.ContextLength > 0 {
					ctxLen = fmt.Sprintf("%d", m.ContextLength)
				}
				fmt.Printf("%-24s %-12s %-32s ctx=%s\n", m.ID, m.Provider, m.ModelName, ctxLen)
			}
			return nil
		},
	}
}

func newResetCmd(configPath *string) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Discard a session's transcript",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			h, err := newHost(ctx, *configPath, false)
			if err != nil {
				return err
			}
			defer h.close(context.Background())

			session, err := h.store.Reset(ctx, sessionID, "")
			if err != nil {
				return err
			}
			fmt.Println("reset session:", session.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "session id to reset")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}
