package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"astra/client"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type globalOptions struct {
	server  string
	apiKey  string
	timeout time.Duration
}

type chatOptions struct {
	session client.Session
	delay   time.Duration
}

func newRootCmd() *cobra.Command {
	_ = godotenv.Load()

	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:   "astra-chat",
		Short: "Talk to Astra from the terminal",
		Long: `astra-chat is a terminal client for the Astra astrology API.

Examples:
  astra-chat characters
  astra-chat chat --name Rahul --date 15/08/1990 --time 14:30 --place "Mumbai, India"`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.server, "server", envOr("ASTRA_SERVER", "http://localhost:8080"), "Astra API base URL")
	cmd.PersistentFlags().StringVar(&opts.apiKey, "api-key", os.Getenv("ASTRA_API_KEY"), "API key sent as X-API-Key")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 90*time.Second, "Request timeout")

	cmd.AddCommand(newCharactersCmd(opts), newChatCmd(opts))
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newCharactersCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "characters",
		Short: "List the available astrologer characters",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(opts.server, opts.apiKey, opts.timeout)
			chars, err := c.Characters(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing characters: %w", err)
			}
			out := cmd.OutOrStdout()
			for _, ch := range chars {
				fmt.Fprintf(out, "%-14s %s %s (%s)\n", ch.ID, ch.Emoji, ch.Name, ch.Specialty)
			}
			return nil
		},
	}
}

func newChatCmd(opts *globalOptions) *cobra.Command {
	co := &chatOptions{}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start a conversation",
		Long: `Start a conversation with an Astra character.

Type 'exit' to end the session. Pass --session to continue an earlier one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(opts.server, opts.apiKey, opts.timeout)
			return runChat(cmd.Context(), c, &co.session, co.delay, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&co.session.Name, "name", "", "Your name")
	f.StringVar(&co.session.BirthDate, "date", "", "Birth date (DD/MM/YYYY or YYYY-MM-DD)")
	f.StringVar(&co.session.BirthTime, "time", "", "Birth time (HH:MM, 24h)")
	f.StringVar(&co.session.BirthLocation, "place", "", "Birth place (City, Country)")
	f.StringVar(&co.session.Timezone, "tz", "", "Birth timezone (IANA name)")
	f.StringVar(&co.session.Character, "character", "general", "Character id")
	f.StringVar(&co.session.Language, "language", "", "Preferred reply language")
	f.StringVar(&co.session.PromptVariant, "prompt", "", "Prompt variant (persona, classic, concise)")
	f.StringVar(&co.session.SessionID, "session", "", "Continue an existing session")
	f.DurationVar(&co.delay, "delay", 500*time.Millisecond, "Pause between message segments")
	for _, name := range []string{"name", "date", "time", "place"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

// runChat は1行ごとに送信し、応答のセグメントを間隔をあけて表示する
func runChat(ctx context.Context, c *client.Client, s *client.Session, delay time.Duration, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintln(out, "ASTRA - Your Cosmic Companion")
	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintln(out, "Type 'exit' to end the session.")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\nYou: ")
		if !scanner.Scan() {
			break
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		switch strings.ToLower(query) {
		case "exit", "quit", "bye":
			fmt.Fprintln(out, "\nAstra: May the stars guide you always.")
			return nil
		}

		reply, err := c.Chat(ctx, s, query)
		if err != nil {
			fmt.Fprintf(out, "\n(error: %v)\n", err)
			continue
		}

		name := reply.Character.Name
		if name == "" {
			name = "Astra"
		}
		for i, seg := range reply.Segments() {
			if i > 0 && delay > 0 {
				time.Sleep(delay)
			}
			fmt.Fprintf(out, "%s: %s\n", name, seg)
		}
	}
	if s.SessionID != "" {
		fmt.Fprintf(out, "\nSession: %s\n", s.SessionID)
	}
	return scanner.Err()
}
