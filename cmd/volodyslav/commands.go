package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/volodyslav/volodyslav/internal/clock"
	"github.com/volodyslav/volodyslav/internal/config"
	"github.com/volodyslav/volodyslav/internal/environment"
	"github.com/volodyslav/volodyslav/internal/eventlog"
	"github.com/volodyslav/volodyslav/internal/filesystem"
	"github.com/volodyslav/volodyslav/internal/gitstore"
	"github.com/volodyslav/volodyslav/internal/gitwrap"
	"github.com/volodyslav/volodyslav/internal/history"
	"github.com/volodyslav/volodyslav/internal/history/factory"
	"github.com/volodyslav/volodyslav/internal/logger"
	"github.com/volodyslav/volodyslav/internal/metrics"
	"github.com/volodyslav/volodyslav/internal/runtimestate"
	"github.com/volodyslav/volodyslav/internal/scheduler"
	"github.com/volodyslav/volodyslav/internal/server"
	"github.com/volodyslav/volodyslav/internal/subprocess"
)

const defaultConfigPath = "volodyslav.toml"

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the status HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to the TOML configuration")
	return cmd
}

func serve(ctx context.Context, configPath string) error {
	fc, err := config.Load(configPath)
	if err != nil {
		return err
	}
	env := environment.New()

	workDir := fc.WorkDir
	if workDir == "" {
		workDir, err = env.Root()
		if err != nil {
			return fmt.Errorf("no workdir in config and %w", err)
		}
	}
	listen := fc.Server.Listen
	if listen == "" {
		port, err := env.ServerPort()
		if err == nil {
			listen = fmt.Sprintf(":%d", port)
		}
	}

	log, logCloser := logger.New(fc.Log)
	defer func() { _ = logCloser.Close() }()

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}

	sink, err := buildHistorySink(fc.HistoryDSNs, log)
	if err != nil {
		return err
	}
	defer func() { _ = sink.Close() }()

	git := gitwrap.New(subprocess.NewRunner())
	if err := git.Available(); err != nil {
		return err
	}
	clk := clock.System()
	store := runtimestate.NewStore(gitstore.Env{Git: git, Log: log}, clk, workDir)

	runner := subprocess.NewRunner()
	regs := make([]scheduler.Registration, 0, len(fc.Tasks))
	for _, task := range fc.Tasks {
		regs = append(regs, scheduler.Registration{
			Name:       task.Name,
			CronText:   task.Schedule,
			Callback:   taskCallback(log, runner, task),
			RetryDelay: task.RetryDelay,
		})
	}

	sched := scheduler.New(scheduler.Env{
		Clock:   clk,
		Log:     log,
		State:   store,
		History: sink,
	}, scheduler.Options{PollInterval: fc.Scheduler.PollInterval})

	if err := sched.Initialize(ctx, regs); err != nil {
		return err
	}
	log.Info("scheduler started", "tasks", len(regs), "workDir", workDir)

	var srv *http.Server
	if listen != "" {
		srv = server.NewServer(listen, sched)
		log.Info("status server listening", "addr", listen)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		log.Info("shutting down", "signal", s.String())
	case <-ctx.Done():
	}

	sched.Stop()
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	return nil
}

// taskCallback shells out to the configured command and surfaces stderr in
// the failure so the retry log lines carry the cause.
func taskCallback(log *slog.Logger, runner *subprocess.Runner, task config.TaskConfig) func(context.Context) error {
	return func(ctx context.Context) error {
		result, err := runner.Run(ctx, task.WorkDir, task.Command, task.Args...)
		if err != nil {
			return err
		}
		if result.Stdout != "" {
			log.Debug("task output", "taskName", task.Name, "stdout", strings.TrimSpace(result.Stdout))
		}
		return nil
	}
}

func buildHistorySink(dsns []string, log *slog.Logger) (history.Sink, error) {
	sinks := make([]history.Sink, 0, len(dsns))
	for _, dsn := range dsns {
		s, err := factory.NewSinkFromDSN(dsn)
		if err != nil {
			for _, open := range sinks {
				_ = open.Close()
			}
			return nil, fmt.Errorf("history sink %q: %w", dsn, err)
		}
		sinks = append(sinks, s)
	}
	if len(sinks) == 0 {
		return history.NewMemory(), nil
	}
	return history.NewMulti(log, sinks...), nil
}

func newValidateCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file without starting anything",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fc, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cmd.Printf("ok: %d task(s)\n", len(fc.Tasks))
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to the TOML configuration")
	return cmd
}

func newEventCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Append to or read the git-backed event log",
	}
	cmd.AddCommand(newEventAddCmd())
	cmd.AddCommand(newEventListCmd())
	return cmd
}

func eventLogFromFlags(workDir string) (*eventlog.Log, error) {
	env := environment.New()
	if workDir == "" {
		var err error
		workDir, err = env.Root()
		if err != nil {
			return nil, err
		}
	}
	log, _ := logger.New(logger.Config{})
	git := gitwrap.New(subprocess.NewRunner())
	if err := git.Available(); err != nil {
		return nil, err
	}
	return eventlog.New(gitstore.Env{Git: git, Log: log}, clock.System(), workDir, env.EventLogRepository()), nil
}

func newEventAddCmd() *cobra.Command {
	var workDir, eventType string
	var data []string
	var assets []string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record one event, optionally with asset files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := eventLogFromFlags(workDir)
			if err != nil {
				return err
			}
			payload := make(map[string]any, len(data))
			for _, kv := range data {
				i := strings.IndexByte(kv, '=')
				if i <= 0 {
					return fmt.Errorf("data entry %q is not key=value", kv)
				}
				payload[kv[:i]] = kv[i+1:]
			}
			files := make([]filesystem.ExistingFile, 0, len(assets))
			for _, path := range assets {
				f, err := filesystem.CheckFile(path)
				if err != nil {
					return err
				}
				files = append(files, f)
			}
			event, err := log.Append(cmd.Context(), eventType, payload, files)
			if err != nil {
				return err
			}
			cmd.Println(event.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&workDir, "workdir", "", "working directory root (default MY_ROOT)")
	cmd.Flags().StringVar(&eventType, "type", "", "event type")
	cmd.Flags().StringArrayVar(&data, "data", nil, "payload entries as key=value")
	cmd.Flags().StringArrayVar(&assets, "asset", nil, "files to copy into the event's assets")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newEventListCmd() *cobra.Command {
	var workDir string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print every recorded event",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := eventLogFromFlags(workDir)
			if err != nil {
				return err
			}
			events, err := log.ReadAll(cmd.Context())
			if err != nil {
				return err
			}
			for _, e := range events {
				cmd.Printf("%s\t%s\t%s\n", e.ID, e.OccurredAt, e.Type)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&workDir, "workdir", "", "working directory root (default MY_ROOT)")
	return cmd
}
