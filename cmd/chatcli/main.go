// chatcli is a terminal client for the chat server. It owns the session
// lifecycle (connect, subscribe, teardown) and renders store snapshots as
// plain text, standing in for the visual UI layer.
package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/parley/chat-client/internal/client"
	"github.com/parley/chat-client/internal/config"
	"github.com/parley/chat-client/internal/metrics"
	"github.com/parley/chat-client/internal/protocol"
)

var (
	flagURL         string
	flagUsername    string
	flagRoom        string
	flagConfig      string
	flagMetricsAddr string
	flagAckPolicy   string
)

var rootCmd = &cobra.Command{
	Use:   "chatcli",
	Short: "Terminal client for the parley chat server",
	RunE:  runChat,

	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagURL, "url", "", "chat server URL (default http://localhost:5000)")
	flags.StringVar(&flagUsername, "username", "", "display name announced on connect")
	flags.StringVar(&flagRoom, "room", "", "room to join automatically after connecting")
	flags.StringVar(&flagConfig, "config", "", "path to a TOML config file")
	flags.StringVar(&flagMetricsAddr, "metrics-addr", "", "listen address for the Prometheus /metrics endpoint")
	flags.StringVar(&flagAckPolicy, "ack-policy", "", "read ack policy: receipt or manual")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfig layers defaults, the optional config file, environment
// variables, and finally explicit flags.
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()

	var err error
	if flagConfig != "" {
		if cfg, err = config.LoadFile(cfg, flagConfig); err != nil {
			return cfg, err
		}
	}
	if cfg, err = config.FromEnv(cfg); err != nil {
		return cfg, err
	}

	if cmd.Flags().Changed("url") {
		cfg.ServerURL = flagURL
	}
	if cmd.Flags().Changed("username") {
		cfg.Username = flagUsername
	}
	if cmd.Flags().Changed("room") {
		cfg.Room = flagRoom
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.MetricsAddr = flagMetricsAddr
	}
	if cmd.Flags().Changed("ack-policy") {
		cfg.AckPolicy = flagAckPolicy
	}
	return cfg, cfg.Validate()
}

func runChat(cmd *cobra.Command, args []string) error {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger()

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Username == "" {
		return fmt.Errorf("a username is required (--username or CHAT_USERNAME)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.Warn().Err(err).Msg("metrics endpoint stopped")
			}
		}()
	}

	sess := client.New(cfg, log)
	sess.OnReconnectExhausted(func(err error) {
		log.Error().Err(err).Msg("connection lost for good; restart to reconnect")
		stop()
	})
	dispose := sess.Subscribe()
	defer dispose()

	if err := sess.Connect(ctx, cfg.Username); err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.ServerURL, err)
	}
	defer sess.Disconnect()
	log.Info().Str("url", cfg.ServerURL).Str("username", cfg.Username).Msg("connected")

	if cfg.Room != "" {
		if err := sess.JoinRoom(cfg.Room); err != nil {
			log.Warn().Err(err).Str("room", cfg.Room).Msg("auto-join failed")
		}
	}

	go renderLoop(ctx, sess)

	input := make(chan string)
	go func() {
		defer close(input)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			input <- scanner.Text()
		}
	}()

	currentRoom := cfg.Room
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-input:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "/quit" {
				return nil
			}
			var err error
			if currentRoom, err = handleLine(log, sess, currentRoom, line); err != nil {
				log.Warn().Err(err).Msg("command failed")
			}
		}
	}
}

// handleLine interprets one line of input as a command or a message and
// returns the (possibly updated) current room.
func handleLine(log zerolog.Logger, sess *client.Session, currentRoom, line string) (string, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return currentRoom, nil
	}

	if !strings.HasPrefix(line, "/") {
		return currentRoom, sendText(log, sess, currentRoom, line)
	}

	cmd, rest, _ := strings.Cut(line[1:], " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "join":
		if rest == "" {
			return currentRoom, fmt.Errorf("usage: /join <room>")
		}
		if err := sess.JoinRoom(rest); err != nil {
			return currentRoom, err
		}
		fmt.Printf("-- now talking in %q\n", rest)
		return rest, nil

	case "leave":
		if currentRoom == "" {
			return currentRoom, fmt.Errorf("not in a room")
		}
		if err := sess.LeaveRoom(currentRoom); err != nil {
			return currentRoom, err
		}
		fmt.Println("-- back in the global room")
		return "", nil

	case "msg":
		to, text, ok := strings.Cut(rest, " ")
		if !ok || text == "" {
			return currentRoom, fmt.Errorf("usage: /msg <user-id> <text>")
		}
		return currentRoom, sess.SendPrivateMessage(to, text)

	case "users":
		for _, u := range sess.Presence().Roster() {
			fmt.Printf("  %s (%s)\n", u.Username, u.ID)
		}
		return currentRoom, nil

	case "typing":
		fmt.Printf("  typing: %s\n", strings.Join(sess.Typing().Users(), ", "))
		return currentRoom, nil

	case "rooms":
		for _, r := range sess.Rooms().Rooms() {
			fmt.Printf("  %s (%d messages)\n", r, len(sess.Rooms().Messages(r)))
		}
		return currentRoom, nil

	default:
		return currentRoom, fmt.Errorf("unknown command /%s", cmd)
	}
}

// sendText delivers a plain message to the current room, or to the global
// room when none is joined. The typing indicator is raised for the duration
// of the send and cleared afterwards; a failed typing signal is logged but
// never blocks the message itself.
func sendText(log zerolog.Logger, sess *client.Session, currentRoom, text string) error {
	if err := sess.SetTyping(true); err != nil {
		log.Debug().Err(err).Msg("typing signal failed")
	}
	defer func() {
		if err := sess.SetTyping(false); err != nil {
			log.Debug().Err(err).Msg("typing signal failed")
		}
	}()

	if currentRoom != "" {
		return sess.SendRoomMessage(currentRoom, text)
	}
	return sess.SendMessage(text)
}

// renderLoop prints new feed entries whenever the session signals an update.
// It tracks how much of each feed has been rendered; stores are append-only
// outside history replaces, so a length watermark is enough.
func renderLoop(ctx context.Context, sess *client.Session) {
	var globalSeen int
	roomSeen := make(map[string]int)
	connected := sess.IsConnected()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sess.Updates():
		}

		if now := sess.IsConnected(); now != connected {
			connected = now
			if connected {
				fmt.Println("-- online")
			} else {
				fmt.Printf("-- offline (%s)\n", sess.State())
			}
		}

		msgs := sess.Messages().Messages()
		for ; globalSeen < len(msgs); globalSeen++ {
			printMessage(msgs[globalSeen])
		}

		for _, r := range sess.Rooms().Rooms() {
			feed := sess.Rooms().Messages(r)
			if roomSeen[r] > len(feed) {
				// History replace shrank the feed; re-render it.
				roomSeen[r] = 0
				fmt.Printf("-- history for %q --\n", r)
			}
			for ; roomSeen[r] < len(feed); roomSeen[r]++ {
				printMessage(feed[roomSeen[r]])
			}
		}
	}
}

func printMessage(msg protocol.Message) {
	switch {
	case msg.System:
		fmt.Printf("* %s\n", msg.Text)
	case msg.IsPrivate:
		fmt.Printf("[pm] %s: %s\n", msg.Sender, msg.Text)
	case msg.Room != "":
		fmt.Printf("[%s] %s: %s\n", msg.Room, msg.Sender, msg.Text)
	default:
		fmt.Printf("%s: %s\n", msg.Sender, msg.Text)
	}
}
