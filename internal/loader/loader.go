// Package loader ingests payment data into the store: a year of payments
// for an entity, read from a CSV file or a published Google spreadsheet,
// replacing any previously loaded budget for that year.
package loader

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"presupuesto/internal/log"
	"presupuesto/internal/store"
)

// batchSize bounds one insert round-trip.
const batchSize = 500

// Source streams payment rows. Implementations close nothing; the
// pipeline owns the channel.
type Source interface {
	Stream(ctx context.Context, out chan<- store.PaymentRow) error
}

// Job is one load: which entity/year, and where the rows come from.
type Job struct {
	EntityName  string
	EntityLevel string
	Language    string
	Year        int
	Source      Source
}

// Loader runs load jobs against the store's write side.
type Loader struct {
	store  store.Loader
	logger *log.Logger
}

func New(st store.Loader, logger *log.Logger) *Loader {
	return &Loader{store: st, logger: logger.WithComponent(log.ComponentLoader)}
}

// Load replaces the entity's budget for the job's year with the rows the
// source produces. Parsing and inserting run concurrently; the first
// failure cancels both sides and no partial progress is retried here.
func (l *Loader) Load(ctx context.Context, job Job) error {
	entityID, err := l.store.EnsureEntity(ctx, job.EntityName, job.EntityLevel, job.Language)
	if err != nil {
		return fmt.Errorf("ensure entity: %w", err)
	}
	if err := l.store.DeleteBudget(ctx, entityID, job.Year); err != nil {
		return fmt.Errorf("remove previous budget: %w", err)
	}
	budgetID, err := l.store.EnsureBudget(ctx, entityID, job.Year)
	if err != nil {
		return fmt.Errorf("ensure budget: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	rows := make(chan store.PaymentRow, batchSize)

	g.Go(func() error {
		defer close(rows)
		return job.Source.Stream(ctx, rows)
	})

	var total int
	g.Go(func() error {
		batch := make([]store.PaymentRow, 0, batchSize)
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			if err := l.store.InsertPayments(ctx, budgetID, batch); err != nil {
				return fmt.Errorf("insert payments: %w", err)
			}
			total += len(batch)
			batch = batch[:0]
			return nil
		}
		for row := range rows {
			batch = append(batch, row)
			if len(batch) == batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		return flush()
	})

	if err := g.Wait(); err != nil {
		return err
	}

	fields := log.NewFields().WithOperation(log.OpLoad).WithEntity(entityID, job.Year)
	fields[log.FieldRecords] = total
	l.logger.InfoContext(ctx, "budget loaded", fields.ToSlice()...)
	return nil
}

// Remove deletes the entity's budgets for the given years. Years without
// a loaded budget are skipped silently, matching Load's replace step.
func (l *Loader) Remove(ctx context.Context, entityName, entityLevel, language string, years []int) error {
	entityID, err := l.store.EnsureEntity(ctx, entityName, entityLevel, language)
	if err != nil {
		return fmt.Errorf("ensure entity: %w", err)
	}
	for _, year := range years {
		if err := l.store.DeleteBudget(ctx, entityID, year); err != nil {
			return fmt.Errorf("remove budget %d: %w", year, err)
		}
		fields := log.NewFields().WithOperation(log.OpRemove).WithEntity(entityID, year)
		l.logger.InfoContext(ctx, "budget removed", fields.ToSlice()...)
	}
	return nil
}
