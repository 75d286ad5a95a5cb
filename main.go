package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abdghn/youapp-be-test/internal/account"
	"github.com/abdghn/youapp-be-test/internal/api"
	"github.com/abdghn/youapp-be-test/internal/auth"
	"github.com/abdghn/youapp-be-test/internal/config"
	"github.com/abdghn/youapp-be-test/internal/dispatch"
	"github.com/abdghn/youapp-be-test/internal/logger"
	"github.com/abdghn/youapp-be-test/internal/queue"
	"github.com/abdghn/youapp-be-test/internal/store"
)

func main() {
	if err := run(); err != nil {
		logger.Error("fatal", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.SetLevel(cfg.LogLevel)
	logger.Info("starting application",
		logger.FieldKV("store", cfg.StoreDriver),
		logger.FieldKV("queue", cfg.QueueDriver))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close(context.Background())

	key, err := auth.LoadKey(cfg.SessionKeyFile)
	if err != nil {
		return err
	}
	if cfg.SessionKeyFile == "" {
		logger.Info("no SESSION_KEY_FILE set, using an ephemeral session key")
	}
	sessions := auth.NewSessions(key, cfg.SessionIssuer, cfg.SessionAudience)

	pub := openPublisher(cfg)
	defer pub.Close()
	// the broker may come up later; Publish reconnects on demand
	dialCtx, cancel := context.WithTimeout(ctx, cfg.QueueDialTimeout)
	if err := pub.Connect(dialCtx); err != nil {
		logger.Warn("queue not reachable at startup", err)
	}
	cancel()

	dispatcher := dispatch.New(st, pub, cfg.QueuePublishTimeout)
	srv := api.NewServer(
		account.NewService(st, cfg.BcryptCost),
		auth.NewVerifier(st, sessions),
		sessions,
		dispatcher,
		st,
		cfg.MessageMaxLength,
	)
	dispatcher.Observe(srv.Notify)

	httpSrv := &http.Server{
		Addr:              ":" + cfg.ApiPort,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", logger.FieldKV("port", cfg.ApiPort))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		return store.NewMemory(), nil
	case config.StoreMongo:
		m, err := store.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoConnectAttempts)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func openPublisher(cfg config.Config) queue.Publisher {
	if cfg.QueueDriver == config.QueueKafka {
		return queue.NewKafka(cfg.KafkaBroker, cfg.QueueName, cfg.QueueDialTimeout)
	}
	return queue.NewAMQP(cfg.RabbitMQURI, cfg.QueueName, queue.DialAMQP(cfg.QueueDialTimeout))
}
