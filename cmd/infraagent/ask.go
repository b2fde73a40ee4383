package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/szaher/infraagent/internal/telemetry"
)

func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <request...>",
		Short: "Send one request and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return fmt.Errorf("request text is empty")
			}

			a, err := newApp(ctx, telemetry.FormatText)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.agent.ProcessRequest(ctx, text, 0))
			return nil
		},
	}
}
