package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	emailAdapter "academy/internal/adapters/email"
	web "academy/internal/adapters/http"
	notificationStore "academy/internal/adapters/storage/notification"
	outboxStore "academy/internal/adapters/storage/outbox"
	"academy/internal/application/agenda"
	"academy/internal/application/orchestrators"
	"academy/internal/config"
	"academy/internal/domain/outbox"
)

const shutdownTimeout = 10 * time.Second

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the agenda HTTP API",
	Long: `Run the agenda HTTP API. Event writes notify the assigned coach and players;
emails are queued in the outbox and delivered in the background.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func newSender(cfg config.Email, log *zap.Logger) emailAdapter.Sender {
	if cfg.Provider == config.EmailResend {
		return emailAdapter.NewResendSender(cfg.APIKey, cfg.From, cfg.ReplyTo, log)
	}
	return emailAdapter.NewNoopSender(log)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	cfg, log := a.cfg, a.log

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.CSRFGenerated {
		log.Warn("csrf_key_generated", zap.String("hint", "set ACADEMY_CSRF_KEY so tokens survive restarts"))
	}

	roster, err := agenda.NewRosterView(ctx, a.kv, log)
	if err != nil {
		return errors.Wrap(err, "load roster")
	}
	defer roster.Close()

	notifications := notificationStore.NewSQLiteStore(a.timed)
	outboxEntries := outboxStore.NewSQLiteStore(a.timed)
	processor := orchestrators.NewOutboxProcessor(outboxEntries, map[string]orchestrators.ActionExecutor{
		outbox.ActionTypeEmail: orchestrators.EmailExecutor{Sender: newSender(cfg.Email, log)},
	}, log)

	events, err := agenda.NewEventStore(ctx, agenda.EventStoreDeps{
		KV: a.kv,
		Dispatcher: orchestrators.AssignmentDispatcher(orchestrators.NotifyAssignmentDeps{
			Roster:        roster,
			Notifications: notifications,
			Outbox:        outboxEntries,
			GenerateID:    uuid.NewString,
			Now:           time.Now,
			Log:           log,
		}),
		GenerateID: uuid.NewString,
		Log:        log,
	})
	if err != nil {
		return errors.Wrap(err, "load events")
	}
	defer events.Close()

	poller := agenda.NewPoller(log)
	if err := poller.Watch("events", events, cfg.SyncInterval); err != nil {
		return err
	}
	if err := poller.Watch("roster", roster, cfg.SyncInterval); err != nil {
		return err
	}
	err = poller.Every(cfg.OutboxInterval, "outbox", func(ctx context.Context) error {
		n, err := processor.ProcessPending(ctx)
		if n > 0 {
			log.Info("outbox_processed", zap.Int("attempted", n))
		}
		return err
	})
	if err != nil {
		return err
	}
	poller.Start()
	defer poller.Stop()

	toaster := agenda.NewToaster(cfg.ToastTTL)
	defer toaster.Close()

	handler, closeRouter := web.NewRouter(web.Deps{
		Events:             events,
		Roster:             roster,
		Notifications:      notifications,
		Outbox:             outboxEntries,
		OutboxAdmin:        processor,
		Toaster:            toaster,
		Sync:               poller,
		Collector:          a.collector,
		Log:                log,
		Location:           cfg.Location,
		Now:                time.Now,
		GenerateID:         uuid.NewString,
		CSRFKey:            cfg.CSRFKey,
		Secure:             cfg.IsProduction(),
		TrustedOrigins:     cfg.TrustedOrigins,
		RateLimitPerSecond: cfg.RateLimit,
		SlowRequest:        cfg.SlowRequest,
	})
	defer closeRouter()

	listen := cfg.Listen
	if serveListen != "" {
		listen = serveListen
	}
	srv := &http.Server{
		Addr:              listen,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server_starting", zap.String("addr", listen), zap.String("version", buildVersion), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "listen")
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("server_stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}
