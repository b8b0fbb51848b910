package main

import (
	"fmt"

	"github.com/spf13/cobra"

	kspai "github.com/kisahsukses/kspai/internal"
)

func newHistoryCmd(configPath *string) *cobra.Command {
	var clearSession bool

	cmd := &cobra.Command{
		Use:   "history [session-id]",
		Short: "Show or clear a session's conversation history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := kspai.DefaultSessionID
			if len(args) == 1 {
				id = args[0]
			}

			_, p, err := loadPipeline(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer p.Close()

			out := cmd.OutOrStdout()
			sessions := p.resolver.Sessions()
			if clearSession {
				if !sessions.Delete(id) {
					return fmt.Errorf("session %q not found", id)
				}
				fmt.Fprintf(out, "Session %q cleared.\n", id)
				return nil
			}

			history := sessions.History(id)
			if len(history) == 0 {
				fmt.Fprintf(out, "Session %q has no messages.\n", id)
				return nil
			}
			for _, m := range history {
				fmt.Fprintf(out, "[%s] %s: %s\n", m.TS.Format("2006-01-02 15:04:05"), m.Role, m.Text)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&clearSession, "clear", false, "delete the session instead of printing it")
	return cmd
}
