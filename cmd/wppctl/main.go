package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/matheus3301/wppdesk/internal/api"
	"github.com/matheus3301/wppdesk/internal/bus"
	"github.com/matheus3301/wppdesk/internal/lock"
	"github.com/matheus3301/wppdesk/internal/model"
	"github.com/matheus3301/wppdesk/internal/session"
	"github.com/matheus3301/wppdesk/internal/wa"
)

type globals struct {
	session string
	json    bool
	timeout time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "wppctl",
		Short:         "Control a running wppd session daemon",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&g.session, "session", "", "session name (overrides config default)")
	root.PersistentFlags().BoolVar(&g.json, "json", false, "output in JSON format")
	root.PersistentFlags().DurationVar(&g.timeout, "timeout", 30*time.Second, "request timeout")

	root.AddCommand(
		statusCmd(g),
		authCmd(g),
		logoutCmd(g),
		snapshotCmd(g),
		sendCmd(g),
		transcribeCmd(g),
		searchCmd(g),
		flagsCmd(g),
		watchCmd(g),
	)
	return root
}

// dial resolves the session and connects to its daemon.
func (g *globals) dial() (*api.Client, session.Layout, error) {
	name, err := session.Name(g.session)
	if err != nil {
		return nil, session.Layout{}, err
	}
	layout := session.For(name)
	if _, held, err := lock.Probe(layout.LockPath()); err == nil && !held {
		return nil, layout, fmt.Errorf("no daemon running for session %q (start it with: wppd --session %s)", name, name)
	}
	c, err := api.Dial(layout.SocketPath())
	if err != nil {
		return nil, layout, err
	}
	return c, layout, nil
}

func (g *globals) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), g.timeout)
}

func (g *globals) print(v any, human func()) error {
	if g.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	human()
	return nil
}

func statusCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session status",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			c, _, err := g.dial()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			ctx, cancel := g.context()
			defer cancel()

			resp, err := c.Status(ctx)
			if err != nil {
				return err
			}
			return g.print(resp, func() {
				w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
				fmt.Fprintf(w, "Session:\t%s\n", resp.Session)
				fmt.Fprintf(w, "State:\t%s (since %s)\n", resp.State, resp.StateSince.Format(time.RFC3339))
				if resp.PhoneNumber != "" {
					fmt.Fprintf(w, "Phone:\t%s\n", resp.PhoneNumber)
				}
				fmt.Fprintf(w, "Logged in:\t%v\n", resp.LoggedIn)
				fmt.Fprintf(w, "Chats:\t%d\n", resp.Chats)
				fmt.Fprintf(w, "Contacts:\t%d\n", resp.Contacts)
				fmt.Fprintf(w, "Messages:\t%d (%d searchable)\n", resp.Messages, resp.Indexed)
				fmt.Fprintf(w, "History batches:\t%d\n", resp.Sync.HistoryBatches)
				fmt.Fprintf(w, "Live upserts:\t%d\n", resp.Sync.Upserts)
				fmt.Fprintf(w, "Uptime:\t%s\n", (time.Duration(resp.UptimeMs) * time.Millisecond).Round(time.Second))
				_ = w.Flush()
			})
		},
	}
}

func authCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Pair this session by scanning a QR code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, _, err := g.dial()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				errCh <- c.Watch(ctx, "", func(env *api.Envelope) error {
					switch env.Kind {
					case bus.KindQR:
						var code model.PairingCode
						if err := env.Decode(&code); err != nil {
							return err
						}
						// Piped output gets the raw code so another tool can render it.
						if g.json || !term.IsTerminal(int(os.Stdout.Fd())) {
							fmt.Println(code.Code)
							return nil
						}
						fmt.Println("Scan this code with WhatsApp > Linked devices:")
						wa.PrintQR(os.Stdout, code.Code)
					case bus.KindReady:
						fmt.Println("Paired and connected.")
						return errDone
					case bus.KindError:
						var n model.Notice
						_ = env.Decode(&n)
						fmt.Fprintln(os.Stderr, "error:", n.Message)
					}
					return nil
				})
			}()

			cctx, cancel := g.context()
			ack, err := c.Connect(cctx)
			cancel()
			if err != nil {
				return err
			}
			fmt.Println(ack.Message)
			if ack.Message == "already connected" {
				return nil
			}
			if err := <-errCh; err != nil && !errors.Is(err, errDone) {
				return err
			}
			return nil
		},
	}
}

var errDone = errors.New("done")

func logoutCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Unlink this device and delete its credentials",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			c, _, err := g.dial()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			ctx, cancel := g.context()
			defer cancel()

			ack, err := c.Logout(ctx)
			if err != nil {
				return err
			}
			return g.print(ack, func() { fmt.Println(ack.Message) })
		},
	}
}

func snapshotCmd(g *globals) *cobra.Command {
	var chatID string
	cmd := &cobra.Command{
		Use:   "chats",
		Short: "List chats, or the messages of one chat with --chat",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			c, _, err := g.dial()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			ctx, cancel := g.context()
			defer cancel()

			snap, err := c.Snapshot(ctx, chatID)
			if err != nil {
				return err
			}
			return g.print(snap, func() {
				w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
				if chatID == "" {
					fmt.Fprintln(w, "CHAT\tNAME\tUNREAD\tTAG")
					for _, ch := range snap.Chats {
						fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", ch.ID, ch.Name, ch.Unreads(), ch.Tag)
					}
				} else {
					fmt.Fprintln(w, "ID\tTIME\tFROM\tTEXT")
					for _, m := range snap.Messages[chatID] {
						fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.Key.ID, m.MessageTimestamp.Time().Format("2006-01-02 15:04"), sender(m), preview(m))
					}
				}
				_ = w.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&chatID, "chat", "", "chat id to list messages for")
	return cmd
}

func sendCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "send <to> <text>",
		Short: "Send a text message to a phone number or JID",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			c, _, err := g.dial()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			ctx, cancel := g.context()
			defer cancel()

			msg, err := c.SendText(ctx, args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			return g.print(msg, func() { fmt.Printf("sent %s to %s\n", msg.Key.ID, msg.ChatID()) })
		},
	}
}

func transcribeCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <chat> <message-id>",
		Short: "Transcribe a voice note",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			c, _, err := g.dial()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			ctx, cancel := g.context()
			defer cancel()

			msg, err := c.Transcribe(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return g.print(msg, func() { fmt.Println(msg.Audio().TranscribedText) })
		},
	}
}

func searchCmd(g *globals) *cobra.Command {
	var (
		chatID string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search message text and transcripts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c, _, err := g.dial()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			ctx, cancel := g.context()
			defer cancel()

			resp, err := c.Search(ctx, strings.Join(args, " "), chatID, limit)
			if err != nil {
				return err
			}
			return g.print(resp, func() {
				w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
				fmt.Fprintln(w, "CHAT\tID\tTIME\tSNIPPET")
				for _, h := range resp.Hits {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", h.ChatID, h.MsgID, time.Unix(h.Timestamp, 0).Format("2006-01-02 15:04"), h.Snippet)
				}
				_ = w.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&chatID, "chat", "", "limit results to one chat")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of results")
	return cmd
}

func flagsCmd(g *globals) *cobra.Command {
	var (
		tag                string
		silence, unsilence bool
		unread, read       bool
	)
	cmd := &cobra.Command{
		Use:   "flag <chat>",
		Short: "Set the local tag, silenced or unread flag of a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var flags model.ChatFlags
			if cmd.Flags().Changed("tag") {
				flags.Tag = &tag
			}
			switch {
			case silence && unsilence:
				return errors.New("--silence and --unsilence are exclusive")
			case silence:
				flags.Silenced = model.Flag(true)
			case unsilence:
				flags.Silenced = model.Flag(false)
			}
			switch {
			case unread && read:
				return errors.New("--unread and --read are exclusive")
			case unread:
				flags.Unread = model.Flag(true)
			case read:
				flags.Unread = model.Flag(false)
			}
			if flags.IsZero() {
				return errors.New("nothing to change; pass --tag, --silence, --unsilence, --unread or --read")
			}

			c, _, err := g.dial()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			ctx, cancel := g.context()
			defer cancel()

			chat, err := c.SetChatFlags(ctx, args[0], flags)
			if err != nil {
				return err
			}
			return g.print(chat, func() {
				fmt.Printf("%s tag=%q silenced=%v unread=%v\n", chat.ID, chat.Tag, chat.Silenced(), chat.Unread())
			})
		},
	}
	cmd.Flags().StringVar(&tag, "tag", "", "free-text category")
	cmd.Flags().BoolVar(&silence, "silence", false, "mark the chat as silenced")
	cmd.Flags().BoolVar(&unsilence, "unsilence", false, "clear the silenced flag")
	cmd.Flags().BoolVar(&unread, "unread", false, "mark the chat as unread")
	cmd.Flags().BoolVar(&read, "read", false, "clear the unread flag")
	return cmd
}

func watchCmd(g *globals) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream daemon events as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, _, err := g.dial()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			enc := json.NewEncoder(os.Stdout)
			return c.Watch(ctx, prefix, func(env *api.Envelope) error {
				return enc.Encode(env)
			})
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "only events whose kind starts with this (ui. or session.)")
	return cmd
}

func sender(m model.Message) string {
	switch {
	case m.Key.FromMe:
		return "me"
	case m.PushName != "":
		return m.PushName
	case m.Key.Participant != "":
		return m.Key.Participant
	default:
		return m.ChatID()
	}
}

func preview(m model.Message) string {
	if t := m.Text(); t != "" {
		return strings.ReplaceAll(t, "\n", " ")
	}
	if a := m.Audio(); a != nil {
		if a.TranscribedText != "" {
			return "[audio] " + a.TranscribedText
		}
		return fmt.Sprintf("[audio %ds]", a.Seconds)
	}
	return ""
}
