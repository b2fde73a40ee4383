package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/szaher/infraagent/internal/telemetry"
)

// requester is the part of the agent the REPL needs.
type requester interface {
	ProcessRequest(ctx context.Context, text string, maxIterations int) string
}

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, telemetry.FormatText)
			if err != nil {
				return err
			}
			return runREPL(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), a.agent)
		},
	}
}

func isExit(line string) bool {
	switch strings.ToLower(line) {
	case "quit", "exit", "退出":
		return true
	}
	return false
}

// runREPL reads one request per line until EOF, an exit word or ctx ends.
func runREPL(ctx context.Context, in io.Reader, out io.Writer, agent requester) error {
	fmt.Fprintln(out, "Cloud infrastructure agent. Describe what you need, e.g. \"create an OSS bucket named logs-2024\".")
	fmt.Fprintln(out, "Type quit, exit or 退出 to leave.")

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		fmt.Fprint(out, "\nYou: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if isExit(line) {
			fmt.Fprintln(out, "Goodbye.")
			return nil
		}

		reply := agent.ProcessRequest(ctx, line, 0)
		fmt.Fprintf(out, "Agent: %s\n", reply)
		if ctx.Err() != nil {
			return nil
		}
	}
}
