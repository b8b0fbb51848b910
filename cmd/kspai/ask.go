package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	kspai "github.com/kisahsukses/kspai/internal"
)

func newAskCmd(configPath *string) *cobra.Command {
	var (
		sessionID   string
		maxTokens   int
		temperature float64
		force       bool
		stream      bool
	)

	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Ask a single question; reads the prompt from stdin when no argument is given",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := promptFrom(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			_, p, err := loadPipeline(ctx, *configPath)
			if err != nil {
				return err
			}
			defer p.Close()

			req := &kspai.AskRequest{
				Prompt:       prompt,
				SessionID:    sessionID,
				MaxTokens:    maxTokens,
				ForceRefresh: force,
			}
			if cmd.Flags().Changed("temperature") {
				req.Temperature = &temperature
			}

			out := cmd.OutOrStdout()
			var ans *kspai.Answer
			if stream {
				ans, err = p.streamer.StreamAsk(ctx, req, func(chunk string) error {
					_, werr := io.WriteString(out, chunk)
					return werr
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(out)
			} else {
				ans, err = p.resolver.Ask(ctx, req)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, ans.Text)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "[source: %s, session: %s]\n", ans.Source, ans.SessionID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id (default \"default\")")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "maximum response tokens (default 400)")
	cmd.Flags().Float64Var(&temperature, "temperature", kspai.DefaultTemperature, "sampling temperature, clamped to [0, 1]")
	cmd.Flags().BoolVar(&force, "force", false, "bypass the response cache")
	cmd.Flags().BoolVar(&stream, "stream", false, "print the answer incrementally")
	return cmd
}

// promptFrom joins args, or reads all of r when there are none.
func promptFrom(args []string, r io.Reader) (string, error) {
	prompt := strings.Join(args, " ")
	if prompt == "" && r != nil {
		if f, ok := r.(*os.File); ok {
			if fi, err := f.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
				return "", errors.New("prompt required")
			}
		}
		b, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("read prompt: %w", err)
		}
		prompt = string(b)
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt required")
	}
	return prompt, nil
}
