package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/soyeahso/forager/internal/agent"
	"github.com/soyeahso/forager/internal/config"
	"github.com/soyeahso/forager/internal/gateway"
	"github.com/soyeahso/forager/internal/hooks"
	"github.com/soyeahso/forager/internal/llm"
	"github.com/soyeahso/forager/internal/logging"
	"github.com/soyeahso/forager/internal/session"
	"github.com/soyeahso/forager/internal/store"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the turn gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("creating data directories: %w", err)
			}
			logFile, err := os.OpenFile(filepath.Join(paths.Logs, "forager.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
			if err != nil {
				return fmt.Errorf("opening log file: %w", err)
			}
			defer logFile.Close()
			log = logging.New(logging.Output(cfg.Logging.ConsoleStyle, os.Stderr, logFile), cfg.Logging.Level)

			if issues := config.Validate(&cfg); len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv, cleanup, err := buildServer(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")

	return cmd
}

// buildServer wires the process-wide session registry, the reasoning
// collaborator and the optional journal into a gateway server.
func buildServer(cfg config.Config) (*gateway.Server, func(), error) {
	cleanup := func() {}

	registry, err := llm.NewRegistryFromConfig(cfg.LLM, log)
	if err != nil {
		return nil, cleanup, err
	}
	client := llm.NewFailoverClient(registry, cfg.LLM.Provider, cfg.LLM.Fallbacks, log)
	log.Info().
		Str("provider", cfg.LLM.Provider).
		Strs("fallbacks", cfg.LLM.Fallbacks).
		Strs("available", registry.List()).
		Msg("LLM providers ready")

	instructions, err := agent.LoadInstructions(cfg.Agents.InstructionsFile)
	if err != nil {
		return nil, cleanup, err
	}

	retries := config.DefaultOutputRetries
	if cfg.LLM.OutputRetries != nil {
		retries = *cfg.LLM.OutputRetries
	}
	collab := agent.NewLLMCollaborator(client, agent.CollaboratorConfig{
		Model:         cfg.LLM.Providers[cfg.LLM.Provider].Model,
		MaxTokens:     cfg.LLM.MaxTokens,
		Temperature:   cfg.LLM.Temperature,
		OutputRetries: retries,
		MediaType:     cfg.Agents.AttachmentMediaType,
		CallTimeout:   time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	}, log)

	hookMgr := hooks.NewManager(log)
	cleanup = func() { closeHooks(hookMgr) }
	sessions := session.NewRegistry()

	runnerOpts := []agent.RunnerOption{agent.WithHooks(hookMgr)}
	serverOpts := []gateway.ServerOption{gateway.WithHooks(hookMgr)}

	if cfg.Journal.Enabled {
		path := cfg.Journal.Path
		if path == "" {
			path = paths.Journal
		}
		db, err := store.Open(context.Background(), path, log)
		if err != nil {
			return nil, cleanup, fmt.Errorf("opening journal: %w", err)
		}
		cleanup = func() {
			closeHooks(hookMgr)
			db.Close()
		}
		journal := store.NewJournal(db)
		runnerOpts = append(runnerOpts, agent.WithJournal(journal))
		serverOpts = append(serverOpts, gateway.WithJournal(journal))
		log.Info().Str("path", path).Msg("turn journal enabled")
	}

	runner := agent.NewRunner(agent.RunnerConfig{
		Instructions: instructions,
		TurnTimeout:  time.Duration(cfg.Gateway.TurnTimeoutSeconds) * time.Second,
	}, sessions, collab, log, runnerOpts...)

	return gateway.New(cfg.Gateway, runner, sessions, log, serverOpts...), cleanup, nil
}

// closeHooks waits briefly for queued lifecycle events to reach observers.
func closeHooks(hm *hooks.Manager) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hm.Close(ctx); err != nil {
		log.Warn().Err(err).Int("pending", hm.Pending()).Msg("hook queue not drained")
	}
}
