package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"presupuesto/internal/amqp"
	"presupuesto/internal/cli"
	"presupuesto/internal/loader"
	"presupuesto/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	ctx := context.Background()
	st := cli.OpenStore(ctx, logger, cfg)
	defer st.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	l := loader.New(st, logger)

	runCtx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	fields := log.NewFields().WithOperation(log.OpStartup)
	fields["queue"] = cfg.AMQPQueue
	fields["backend"] = cfg.DataBackend
	logger.Info("Starting presupuesto-worker", fields.ToSlice()...)

	handler := func(msg *amqp.LoadJobMessage) error {
		src, err := sourceFor(runCtx, msg)
		if err != nil {
			return err
		}
		return l.Load(runCtx, loader.Job{
			EntityName:  msg.EntityName,
			EntityLevel: msg.EntityLevel,
			Language:    msg.Language,
			Year:        msg.Year,
			Source:      src,
		})
	}

	if err := amqpClient.ConsumeLoadJobs(runCtx, handler); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Load-job consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(runCtx, done)
	logger.Info("Worker stopped gracefully")
}

func sourceFor(ctx context.Context, msg *amqp.LoadJobMessage) (loader.Source, error) {
	switch msg.Source {
	case amqp.SourceCSV:
		return loader.NewCSVSource(msg.Path), nil
	case amqp.SourceSheet:
		return loader.NewSheetSource(ctx, msg.SheetID, msg.SheetRange)
	default:
		return nil, fmt.Errorf("unknown load-job source %q", msg.Source)
	}
}
