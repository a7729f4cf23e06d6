// presupuesto-load manages budget data from the command line: load a
// year of payments directly, publish a load job for the worker, or
// remove loaded budgets.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"presupuesto/internal/amqp"
	"presupuesto/internal/cli"
	"presupuesto/internal/config"
	"presupuesto/internal/loader"
	"presupuesto/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentLoader)
	cfg := cli.LoadAndValidateConfig(logger)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "load":
		err = runLoad(logger, cfg, os.Args[2:])
	case "publish":
		err = runPublish(logger, cfg, os.Args[2:])
	case "remove":
		err = runRemove(logger, cfg, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("Command failed", log.FieldError, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: presupuesto-load <command> [flags]

commands:
  load     load a year of payments into the store
  publish  publish a load job to the worker queue
  remove   remove loaded budgets ("2008-2011,2013" style year lists)`)
}

// entityFlags adds the flags every command shares.
func entityFlags(fs *flag.FlagSet, cfg *config.Config) (name, level, language *string) {
	name = fs.String("entity", "", "entity name")
	level = fs.String("level", "municipality", "entity level")
	language = fs.String("language", cfg.Language, "data language")
	return
}

func runLoad(logger *log.Logger, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	name, level, language := entityFlags(fs, cfg)
	year := fs.Int("year", 0, "budget year")
	file := fs.String("file", "", "CSV file with payment rows")
	sheet := fs.String("sheet", "", "Google spreadsheet id")
	sheetRange := fs.String("range", "", "spreadsheet range (default A:Z)")
	_ = fs.Parse(args)

	if *name == "" || *year == 0 {
		return fmt.Errorf("-entity and -year are required")
	}

	ctx := context.Background()
	src, err := pickSource(ctx, *file, *sheet, *sheetRange)
	if err != nil {
		return err
	}

	st := cli.OpenStore(ctx, logger, cfg)
	defer st.Close()

	return loader.New(st, logger).Load(ctx, loader.Job{
		EntityName:  *name,
		EntityLevel: *level,
		Language:    *language,
		Year:        *year,
		Source:      src,
	})
}

func runPublish(logger *log.Logger, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("publish", flag.ExitOnError)
	name, level, language := entityFlags(fs, cfg)
	year := fs.Int("year", 0, "budget year")
	file := fs.String("file", "", "CSV file reachable from the worker")
	sheet := fs.String("sheet", "", "Google spreadsheet id")
	sheetRange := fs.String("range", "", "spreadsheet range (default A:Z)")
	_ = fs.Parse(args)

	if cfg.AMQPURL == "" {
		return fmt.Errorf("AMQP_URL is required to publish load jobs")
	}

	msg := amqp.NewLoadJobMessage(*name, *level, *language, *year, amqp.SourceCSV)
	msg.Path = *file
	if *sheet != "" {
		msg.Source = amqp.SourceSheet
		msg.SheetID = *sheet
		msg.SheetRange = *sheetRange
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return client.PublishLoadJob(ctx, msg)
}

func runRemove(logger *log.Logger, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	name, level, language := entityFlags(fs, cfg)
	yearList := fs.String("years", "", `years to remove, e.g. "2008-2011,2013"`)
	_ = fs.Parse(args)

	if *name == "" || *yearList == "" {
		return fmt.Errorf("-entity and -years are required")
	}
	years, err := loader.ParseYearList(*yearList)
	if err != nil {
		return err
	}

	ctx := context.Background()
	st := cli.OpenStore(ctx, logger, cfg)
	defer st.Close()

	return loader.New(st, logger).Remove(ctx, *name, *level, *language, years)
}

func pickSource(ctx context.Context, file, sheet, sheetRange string) (loader.Source, error) {
	switch {
	case file != "" && sheet != "":
		return nil, fmt.Errorf("-file and -sheet are mutually exclusive")
	case file != "":
		return loader.NewCSVSource(file), nil
	case sheet != "":
		return loader.NewSheetSource(ctx, sheet, sheetRange)
	default:
		return nil, fmt.Errorf("one of -file or -sheet is required")
	}
}
