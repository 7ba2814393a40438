package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/horserace/api"
	"github.com/wricardo/horserace/bot"
	"github.com/wricardo/horserace/config"
	"github.com/wricardo/horserace/game/lobby"
	"github.com/wricardo/horserace/game/loop"
	"github.com/wricardo/horserace/transport/mcp"
	"github.com/wricardo/horserace/transport/websocket"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
	"golang.org/x/sync/errgroup"
)

const (
	// Events buffered ahead of the game loop.
	loopQueueSize = 1024

	shutdownTimeout = 10 * time.Second
)

// stack is one complete server: game loop, lobby, WebSocket hub and HTTP front.
type stack struct {
	manager *lobby.Manager
	hub     *websocket.Hub
	srv     *http.Server
	log     zerolog.Logger
}

// newStack wires a server whose /mcp endpoint proxies to selfURL.
func newStack(selfURL string, logger zerolog.Logger) *stack {
	l := loop.New(logger, loopQueueSize)
	manager := lobby.NewManager(l, logger)
	hub := websocket.NewHub(manager, logger)
	apiServer := api.NewServer(manager, hub, mcp.NewClient(selfURL), logger)

	return &stack{
		manager: manager,
		hub:     hub,
		srv: &http.Server{
			Handler:           apiServer,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		log: logger,
	}
}

// run serves on every listener until ctx is done, then shuts everything down.
func (s *stack) run(ctx context.Context, listeners ...net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.manager.Run(gctx) })
	g.Go(func() error { return s.hub.Run(gctx) })

	for _, ln := range listeners {
		g.Go(func() error {
			err := s.srv.Serve(ln)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		s.log.Info().Msg("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// loopbackURL is the address the process can reach its own listener on.
func loopbackURL(ln net.Listener) string {
	port := ln.Addr().(*net.TCPAddr).Port
	return fmt.Sprintf("http://127.0.0.1:%d", port)
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	logger.Info().Str("version", Version).Msgf("starting %s", AppName)

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Addr(), err)
	}
	s := newStack(loopbackURL(ln), logger)

	listeners := []net.Listener{ln}
	if cfg.NgrokEnabled {
		tun, err := listenNgrok(ctx, cfg, logger)
		if err != nil {
			ln.Close()
			return err
		}
		listeners = append(listeners, tun)
	}

	addr := ln.Addr().String()
	logger.Info().
		Str("addr", addr).
		Str("websocket", "ws://"+addr+"/ws").
		Str("api", "http://"+addr+"/api").
		Str("mcp", "http://"+addr+"/mcp").
		Msg("http server listening")

	err = s.run(ctx, listeners...)
	logger.Info().Msg("server stopped")
	return err
}

func listenNgrok(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (net.Listener, error) {
	var tunnel ngrokConfig.Tunnel
	if cfg.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.NgrokDomain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	logger.Info().Str("domain", cfg.NgrokDomain).Msg("starting ngrok tunnel")
	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(cfg.NgrokAuthToken))
	if err != nil {
		return nil, fmt.Errorf("starting ngrok tunnel: %w", err)
	}

	logger.Info().
		Str("url", tun.URL()).
		Str("websocket", tun.URL()+"/ws").
		Str("mcp", tun.URL()+"/mcp").
		Msg("ngrok tunnel established")
	return tun, nil
}

// runStdioMCP serves MCP over stdio. It proxies to an already running server
// when one answers, otherwise it starts an internal server on a loopback port.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	// Closing stdin ends the command, internal server included.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	baseURL := cmd.String("api")
	g, gctx := errgroup.WithContext(ctx)

	if !reachable(ctx, baseURL) {
		logger.Info().Str("api", baseURL).Msg("no server answering, starting internal one")

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("listening for internal server: %w", err)
		}
		baseURL = loopbackURL(ln)
		s := newStack(baseURL, logger)
		g.Go(func() error { return s.run(gctx, ln) })
	}

	logger.Info().Str("api", baseURL).Msg("mcp stdio server ready")
	stdio := server.NewStdioServer(mcp.NewClient(baseURL).GetMCPServer())
	g.Go(func() error {
		defer cancel()
		err := stdio.Listen(gctx, os.Stdin, os.Stdout)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	return g.Wait()
}

func reachable(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/health", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}

func runBot(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	res, err := bot.Run(ctx, bot.Options{
		URL:        cmd.String("url"),
		Name:       cmd.String("name"),
		Room:       cmd.String("room"),
		Target:     cmd.Float64("target"),
		BoostEvery: cmd.Duration("boost-every"),
	}, logger)
	if err != nil {
		return err
	}

	bot.PrintRankings(os.Stdout, res)
	return nil
}
