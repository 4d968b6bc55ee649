package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/keywatch/db"
	"github.com/monocle-dev/keywatch/internal/auth"
	"github.com/monocle-dev/keywatch/internal/config"
	"github.com/monocle-dev/keywatch/internal/handlers"
	"github.com/monocle-dev/keywatch/internal/lock"
	"github.com/monocle-dev/keywatch/internal/logger"
	"github.com/monocle-dev/keywatch/internal/monitors"
	"github.com/monocle-dev/keywatch/internal/repository"
	"github.com/monocle-dev/keywatch/internal/router"
	"github.com/monocle-dev/keywatch/internal/scheduler"
	"github.com/monocle-dev/keywatch/internal/services"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
	"gorm.io/gorm"
)

const usage = `Usage: keywatch <command> [flags]

Commands:
  check     run one check batch over due monitors
  serve     run the scheduler and the audit API
  cleanup   delete old check results
  migrate   create or update the database schema
  token     issue an API token for a user
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command, args := os.Args[1], os.Args[2:]

	var err error

	switch command {
	case "check":
		err = runCheck(ctx, args)
	case "serve":
		err = runServe(ctx, args)
	case "cleanup":
		err = runCleanup(ctx, args)
	case "migrate":
		err = runMigrate(args)
	case "token":
		err = runToken(args)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
		os.Exit(2)
	}

	if errors.Is(err, flag.ErrHelp) {
		return
	}

	if err != nil {
		log.Error().Err(err).Str("command", command).Msg("Command failed")
		stop()
		os.Exit(1)
	}
}

// app holds the dependencies shared by every command
type app struct {
	cfg   *config.Config
	conn  *gorm.DB
	repo  repository.Repository
	redis *redis.Client
}

func newApp(ctx context.Context, verbose bool) (*app, error) {
	cfg, err := config.Load()

	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	logger.Setup(level, cfg.LogPretty)

	conn, err := db.ConnectDatabase(cfg.DatabaseURL)

	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, conn: conn, repo: repository.NewRepository(conn)}

	if cfg.RedisURL != "" {
		client, err := lock.NewRedisClient(ctx, cfg.RedisURL)

		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, running without monitor locks")
		} else {
			a.redis = client
		}
	}

	return a, nil
}

func (a *app) close() {
	if a.redis != nil {
		a.redis.Close()
	}

	if sqlDB, err := a.conn.DB(); err == nil {
		sqlDB.Close()
	}
}

func (a *app) newRunner() *scheduler.Runner {
	dispatcher := services.NewDispatcher(a.repo, services.NewSMTPMailer(a.cfg.SMTPConfig()))
	runner := scheduler.NewRunner(a.repo, monitors.NewFetcher(a.cfg.CheckConfig()), dispatcher, a.cfg.RunnerOptions())

	if a.redis != nil {
		runner.WithGuard(lock.NewRedisLocker(a.redis, a.cfg.LockTTL))
	}

	return runner
}

func runCheck(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("check", flag.ContinueOnError)
	monitorID := flags.Uint("monitor-id", 0, "check only this monitor, ignoring its schedule")
	userID := flags.Uint("user-id", 0, "check only this user's monitors, ignoring their schedule")
	verbose := flags.BoolP("verbose", "v", false, "log every monitor")

	if err := flags.Parse(args); err != nil {
		return err
	}

	a, err := newApp(ctx, *verbose)

	if err != nil {
		return err
	}
	defer a.close()

	policy := scheduler.RetryPolicy{MaxRetries: a.cfg.RetryMax, Backoff: a.cfg.RetryBackoff}

	summary, err := a.newRunner().RunWithRetry(ctx, scheduler.RunOptions{
		MonitorID: *monitorID,
		UserID:    *userID,
	}, policy)

	return finishCheck(os.Stdout, summary, err)
}

// finishCheck prints whatever summary the batch produced, including a partial one
// from an interrupted batch, and passes err through
func finishCheck(w io.Writer, summary *scheduler.Summary, err error) error {
	if summary != nil {
		printSummary(w, summary, err != nil)
	}

	return err
}

func printSummary(w io.Writer, s *scheduler.Summary, interrupted bool) {
	state := "finished"
	if interrupted {
		state = "stopped early"
	}

	fmt.Fprintf(w, "Batch %s %s in %s\n", s.BatchID, state, s.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  selected: %d\n", s.Selected)
	fmt.Fprintf(w, "  checked:  %d\n", s.Checked)
	fmt.Fprintf(w, "  found:    %d\n", s.Found)
	fmt.Fprintf(w, "  errors:   %d\n", s.Errored)
	fmt.Fprintf(w, "  skipped:  %d\n", s.Skipped)
	fmt.Fprintf(w, "  warned:   %d\n", s.Warned)
}

func runServe(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("serve", flag.ContinueOnError)
	port := flags.String("port", "", "listen port, overrides PORT")
	verbose := flags.BoolP("verbose", "v", false, "enable debug logging")

	if err := flags.Parse(args); err != nil {
		return err
	}

	a, err := newApp(ctx, *verbose)

	if err != nil {
		return err
	}
	defer a.close()

	if a.cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required to serve the API")
	}

	if *port == "" {
		*port = a.cfg.Port
	}

	if !*verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	runner := a.newRunner()
	sched := scheduler.NewScheduler(runner, a.repo, a.cfg.ScheduleConfig())

	hub := handlers.NewHub(a.cfg.Origins())
	runner.OnResult(hub.Broadcast)

	engine := router.NewRouter(router.Config{
		AllowedOrigins: a.cfg.Origins(),
		JWTSecret:      a.cfg.JWTSecret,
	}, handlers.NewHandler(a.repo, sched, hub), a.repo)

	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	server := &http.Server{Addr: ":" + *port, Handler: engine, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)

	go func() {
		log.Info().Str("port", *port).Msg("Starting server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

func runCleanup(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("cleanup", flag.ContinueOnError)
	days := flags.Int("days", 0, "retention in days, overrides RESULT_RETENTION_DAYS")

	if err := flags.Parse(args); err != nil {
		return err
	}

	a, err := newApp(ctx, false)

	if err != nil {
		return err
	}
	defer a.close()

	retention := a.cfg.ResultRetentionDays
	if *days > 0 {
		retention = *days
	}

	deleted, err := scheduler.CleanupResults(ctx, a.repo, retention, time.Now())

	if err != nil {
		return err
	}

	fmt.Printf("Deleted %d check results older than %d days\n", deleted, retention)

	return nil
}

func runMigrate(args []string) error {
	flags := flag.NewFlagSet("migrate", flag.ContinueOnError)

	if err := flags.Parse(args); err != nil {
		return err
	}

	a, err := newApp(context.Background(), false)

	if err != nil {
		return err
	}
	defer a.close()

	if err := db.MigrateDatabase(a.conn); err != nil {
		return err
	}

	log.Info().Msg("Database migrated")

	return nil
}

func runToken(args []string) error {
	flags := flag.NewFlagSet("token", flag.ContinueOnError)
	userID := flags.Uint("user-id", 0, "user the token is issued for")
	ttl := flags.Duration("ttl", auth.DefaultTokenTTL, "token lifetime")

	if err := flags.Parse(args); err != nil {
		return err
	}

	if *userID == 0 {
		return fmt.Errorf("--user-id is required")
	}

	a, err := newApp(context.Background(), false)

	if err != nil {
		return err
	}
	defer a.close()

	user, err := a.repo.GetUser(context.Background(), *userID)

	if err != nil {
		return fmt.Errorf("load user %d: %w", *userID, err)
	}

	token, err := auth.GenerateJWT(a.cfg.JWTSecret, user.ID, user.Email, *ttl)

	if err != nil {
		return err
	}

	fmt.Println(token)

	return nil
}
