// Command horserace runs the Horse Race multiplayer room server.
//
// It has three commands:
//  1. "serve" (default) – runs the HTTP server: game WebSocket, REST API and an /mcp endpoint
//  2. "mcp" – runs an MCP stdio server against a running server, or an internal one if none answers
//  3. "bot" – joins a room as a headless racer and prints the final rankings
//
// Settings come from the environment (and a .env file), and command-line
// flags override them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/horserace/config"
	"github.com/wricardo/horserace/logging"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Horse Race Multiplayer Server"
)

// main loads .env, builds the command tree and runs it until a signal arrives.
func main() {
	// A missing .env file is fine
	envErr := godotenv.Load()
	if envErr != nil && !os.IsNotExist(envErr) {
		fmt.Fprintf(os.Stderr, "warning: loading .env: %v\n", envErr)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "horserace",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "HTTP server host (env HOST)"},
			&cli.IntFlag{Name: "port", Usage: "HTTP server port (env PORT)"},
			&cli.StringFlag{Name: "log-level", Usage: "trace, debug, info, warn or error (env LOG_LEVEL)"},
			&cli.StringFlag{Name: "log-format", Usage: "console or json (env LOG_FORMAT)"},
		},
		Action: runServe,
		Commands: []*cli.Command{
			{
				Name:    "serve",
				Aliases: []string{"server", "http"},
				Usage:   "Run the HTTP server with game WebSocket, REST API and MCP endpoint",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "ngrok", Usage: "Expose the server through an ngrok tunnel (env NGROK_ENABLED)"},
					&cli.StringFlag{Name: "ngrok-auth", Usage: "Ngrok auth token (env NGROK_AUTHTOKEN)"},
					&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (env NGROK_DOMAIN)"},
				},
				Action: runServe,
			},
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp", "mcp-stdio"},
				Usage:   "Run an MCP stdio server",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "api", Value: "http://localhost:8080", Usage: "REST API to proxy; an internal server is started if it does not answer"},
				},
				Action: runStdioMCP,
			},
			{
				Name:  "bot",
				Usage: "Join a room as a headless racer",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "url", Value: "ws://localhost:8080/ws", Usage: "Game WebSocket URL"},
					&cli.StringFlag{Name: "name", Value: "bot", Usage: "Player name"},
					&cli.StringFlag{Name: "room", Usage: "Room code; empty to matchmake"},
					&cli.Float64Flag{Name: "target", Value: 3000, Usage: "Distance at which the bot finishes"},
					&cli.DurationFlag{Name: "boost-every", Value: 10 * time.Second, Usage: "Boost period, 0 to never boost"},
				},
				Action: runBot,
			},
		},
	}
}

// loadConfig reads the environment and applies any flags that were set.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if cmd.IsSet("host") {
		cfg.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Port = cmd.Int("port")
	}
	if cmd.IsSet("log-level") {
		level, err := zerolog.ParseLevel(cmd.String("log-level"))
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		cfg.LogLevel = level
	}
	if cmd.IsSet("log-format") {
		cfg.LogFormat = cmd.String("log-format")
	}
	if cmd.IsSet("ngrok") {
		cfg.NgrokEnabled = cmd.Bool("ngrok")
	}
	if cmd.IsSet("ngrok-auth") {
		cfg.NgrokAuthToken = cmd.String("ngrok-auth")
	}
	if cmd.IsSet("ngrok-domain") {
		cfg.NgrokDomain = cmd.String("ngrok-domain")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger always writes to stderr so stdout stays free for the MCP stdio transport.
func newLogger(cfg *config.Config) zerolog.Logger {
	return logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat).With().Str("app", "horserace").Logger()
}
