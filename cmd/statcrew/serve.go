package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nidhogg/statcrew/internal/api"
	"github.com/nidhogg/statcrew/internal/bus"
	"github.com/nidhogg/statcrew/internal/command"
	"github.com/nidhogg/statcrew/internal/config"
	"github.com/nidhogg/statcrew/internal/crew"
	"github.com/nidhogg/statcrew/internal/gateway"
	"github.com/nidhogg/statcrew/internal/rag"
	msgrouter "github.com/nidhogg/statcrew/internal/router"
	"github.com/nidhogg/statcrew/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	servePort       int
	serveRunTimeout time.Duration
	serveNoAck      bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and chat gateways",
	Long: `Serve the REST API and connect the enabled Slack and Discord gateways.

Chat messages starting with "/" are commands (/help, /graphs, /leaders,
/search, /runs, /status). Anything else is a crew request; prefix it with
"@<graph>" to skip keyword routing.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Listen port (default from config)")
	serveCmd.Flags().DurationVar(&serveRunTimeout, "run-timeout", 15*time.Minute, "Upper bound for one chat-initiated crew run")
	serveCmd.Flags().BoolVar(&serveNoAck, "no-ack", false, "Do not post a notice when a crew run starts")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()
	logger := a.logger

	logger.Info("Starting statcrew...")

	runs, err := a.openStore(ctx)
	if err != nil {
		logger.Warn("PostgreSQL unavailable, running without run history", zap.Error(err))
		runs = nil
	}
	events, err := a.openBus(ctx)
	if err != nil {
		logger.Warn("Redis unavailable, running without task events", zap.Error(err))
		events = nil
	}

	gw := gateway.NewGateway(logger)
	broadcaster := gateway.NewBroadcaster(gw, logger)

	var sinks bus.Fanout
	if events != nil {
		sinks = append(sinks, events)
	}
	if a.cfg.Gateway.AnnounceRuns {
		sinks = append(sinks, broadcaster)
	}
	var sink crew.EventSink
	if len(sinks) > 0 {
		sink = sinks
	}
	var recorder crew.RunRecorder
	if runs != nil {
		recorder = runs
	}
	svc := crew.NewService(a.builder, a.runner(sink), recorder, logger)

	commands := newCommands(a, gw, runs)

	// The handler must be set before adapters are registered.
	router := msgrouter.New(svc, gw, commands, msgrouter.Options{
		Graphs:  a.builder.Definitions().GraphNames(),
		Timeout: serveRunTimeout,
		Ack:     !serveNoAck,
	}, logger)
	gw.SetHandler(router.Handle)

	rest := gateway.NewRESTAdapter(serveRunTimeout, logger)
	gw.Register(rest)
	if sc := a.cfg.Gateway.Slack; sc.Enabled && sc.BotToken != "" {
		slack := gateway.NewSlackAdapter(sc.BotToken, sc.AppToken, logger)
		applyPersonas(slack, a.cfg.Gateway.Personas)
		gw.Register(slack)
	}
	if dc := a.cfg.Gateway.Discord; dc.Enabled && dc.BotToken != "" {
		discord := gateway.NewDiscordAdapter(dc.BotToken, logger)
		applyPersonas(discord, a.cfg.Gateway.Personas)
		for channel, hook := range dc.Webhooks {
			discord.SetWebhook(channel, hook)
		}
		gw.Register(discord)
	}
	if err := gw.ConnectAll(ctx); err != nil {
		logger.Warn("some gateway adapters failed to connect", zap.Error(err))
	}
	defer gw.Close()

	deps := api.Deps{
		Crew:        svc,
		Builder:     a.builder,
		RAG:         a.index,
		Skills:      a.skills,
		Gateway:     gw,
		Broadcaster: broadcaster,
		REST:        rest,
	}
	if runs != nil {
		deps.Runs = runs
	}
	handler := api.NewHandler(deps, logger)

	port := servePort
	if port == 0 {
		port = a.cfg.Server.Port
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("statcrew listening", zap.Int("port", port))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down statcrew...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if events != nil {
		events.Close()
	}
	if runs != nil {
		runs.Close()
	}
	return nil
}

// applyPersonas overrides an adapter's built-in agent personas.
func applyPersonas(a interface {
	SetPersona(agentID string, persona *gateway.Persona)
}, personas map[string]config.PersonaConfig) {
	for id, p := range personas {
		a.SetPersona(id, &gateway.Persona{Name: p.Name, IconURL: p.IconURL, Emoji: p.Emoji})
	}
}

// newCommands registers the chat slash commands. /runs needs Postgres.
func newCommands(a *app, gw *gateway.Gateway, runs *store.Store) *command.Registry {
	reg := command.NewRegistry()
	command.RegisterBuiltins(reg, a.builder.Definitions(), a.skills, gw)
	command.RegisterLeadersCommand(reg, a.nba)
	command.RegisterSearchCommand(reg, rag.NewProviderAdapter(a.index), a.cfg.RAG.TopK)
	if runs != nil {
		command.RegisterRunsCommand(reg, runs)
	}
	return reg
}
