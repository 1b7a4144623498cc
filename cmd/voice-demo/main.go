// main package for the voice-demo server
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/book-expert/voice-demo/internal/agent"
	"github.com/book-expert/voice-demo/internal/config"
	"github.com/book-expert/voice-demo/internal/core"
	"github.com/book-expert/voice-demo/internal/objectstore"
	"github.com/book-expert/voice-demo/internal/server"
	"github.com/book-expert/voice-demo/internal/tts"
	"github.com/book-expert/voice-demo/internal/worker"
)

const (
	bootstrapLogFile = "voice-demo-bootstrap.log"
	finalLogFile     = "voice-demo.log"
	natsClientName   = "voice-demo"
)

const (
	errFmtBootstrapLogger = "failed to create bootstrap logger: %w"
	errFmtLoadConfig      = "failed to load configuration: %w"
	errFmtFinalLogger     = "failed to create final logger: %w"
	errFmtConnectNATS     = "failed to connect to NATS at %s: %w"
	errFmtJetStream       = "failed to get JetStream context: %w"
	errFmtCreateWorker    = "failed to create speech worker: %w"
	errMsgNoProviders     = "no TTS providers could be initialized"
)

var errNoProviders = errors.New(errMsgNoProviders)

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf(errFmtBootstrapLogger, err)
	}

	return log, nil
}

func run(ctx context.Context) error {
	bootstrapLog, err := setupLogger(os.TempDir(), bootstrapLogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	bootstrapLog.Info("Bootstrap logger created.")

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf(errFmtLoadConfig, err)
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	finalLog, err := logger.New(cfg.Paths.BaseLogsDir, finalLogFile)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf(errFmtFinalLogger, err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	return serve(ctx, cfg, finalLog)
}

func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	var natsConnection *nats.Conn

	if cfg.UsesNATS() {
		conn, err := nats.Connect(cfg.NATS.URL, nats.Name(natsClientName))
		if err != nil {
			return fmt.Errorf(errFmtConnectNATS, cfg.NATS.URL, err)
		}
		defer conn.Close()

		natsConnection = conn
	}

	store, err := openStore(cfg, natsConnection)
	if err != nil {
		return err
	}

	manager := tts.NewManager(ctx, cfg.TTS, log)
	defer func() {
		closeErr := manager.Close()
		if closeErr != nil {
			log.Warn("Failed to close TTS providers: %v", closeErr)
		}
	}()

	if len(manager.Available()) == 0 {
		log.Error(errMsgNoProviders)

		return errNoProviders
	}

	responder := agent.NewResponder(cfg.Agent, cfg.TTS.OpenAI, log)
	opts := server.OptionsFromConfig(cfg)
	opts.DefaultProvider = manager.Available()[0]

	httpServer := server.New(manager, responder, store, opts, log)

	var speechWorker *worker.NatsWorker

	if cfg.NATS.Enabled {
		speechWorker, err = worker.NewNatsWorker(
			natsConnection, cfg.NATS.SpeechSubject, store, manager, opts.DefaultProvider, log,
		)
		if err != nil {
			return fmt.Errorf(errFmtCreateWorker, err)
		}
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return httpServer.Run(groupCtx) })

	if speechWorker != nil {
		log.Info("Listening for speech requests on subject: %s", cfg.NATS.SpeechSubject)
		group.Go(func() error { return speechWorker.Run(groupCtx) })
	}

	log.System("Voice demo initialized with providers %v on %s", manager.Available(), opts.Addr)

	return group.Wait()
}

// openStore returns the object store selected by storage.backend.
func openStore(cfg *config.Config, natsConnection *nats.Conn) (core.ObjectStore, error) {
	if cfg.Storage.Backend != config.StorageNATS {
		fileStore, err := objectstore.NewFileObjectStore(cfg.Storage.AudioDir)
		if err != nil {
			return nil, err
		}

		return fileStore, nil
	}

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return nil, fmt.Errorf(errFmtJetStream, err)
	}

	natsStore, err := objectstore.NewNatsObjectStore(jetstreamContext, cfg.NATS.AudioObjectStoreBucket)
	if err != nil {
		return nil, err
	}

	return natsStore, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := run(ctx)

	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
