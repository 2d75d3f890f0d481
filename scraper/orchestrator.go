package scraper

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/taguhoiya/mansion-watch-scraper-sub000/services"
	"github.com/taguhoiya/mansion-watch-scraper-sub000/storage"
	"github.com/taguhoiya/mansion-watch-scraper-sub000/workers"
)

// Notifier delivers outbound messages about scrape outcomes.
type Notifier interface {
	NotifyPriceChange(ctx context.Context, lineUserID, propertyName, url, previousPrice, currentPrice string) error
	NotifyFailure(ctx context.Context, lineUserID, url, reason string) error
}

// Orchestrator runs one scrape end to end: fetch, persist, ingest images,
// notify. Each run is traced in the local job store.
type Orchestrator struct {
	spider   *Spider
	pipeline *services.Pipeline
	images   *workers.ImagePipeline
	traces   *storage.SQLiteStore
	notifier Notifier
	timeout  time.Duration
}

func NewOrchestrator(spider *Spider, pipeline *services.Pipeline, images *workers.ImagePipeline, traces *storage.SQLiteStore, timeout time.Duration) *Orchestrator {
	return &Orchestrator{
		spider:   spider,
		pipeline: pipeline,
		images:   images,
		traces:   traces,
		timeout:  timeout,
	}
}

// SetNotifier wires the outbound notifier. Without one, notifications are
// skipped.
func (o *Orchestrator) SetNotifier(n Notifier) {
	o.notifier = n
}

// RunJob scrapes one URL for one subscriber. Fetch and persistence errors
// fail the job; image and notification problems are absorbed so the
// persisted data stands.
func (o *Orchestrator) RunJob(ctx context.Context, pageURL, lineUserID string) error {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	jobID, err := o.traces.StartJob(pageURL, lineUserID)
	if err != nil {
		log.Printf("Warning: failed to record job start: %v", err)
	}

	unit, err := o.spider.Run(ctx, pageURL, lineUserID)
	if err != nil {
		o.failJob(ctx, jobID, pageURL, lineUserID, err)
		return err
	}

	result, err := o.pipeline.Process(ctx, unit)
	if err != nil {
		o.failJob(ctx, jobID, pageURL, lineUserID, err)
		return err
	}

	if o.images != nil && len(unit.Property.ImageURLs) > 0 {
		if _, err := o.images.Ingest(ctx, result.PropertyID, unit.Property.ImageURLs); err != nil {
			log.Printf("Warning: image ingestion for %s: %v", pageURL, err)
		}
	}

	if result.PriceChanged && o.notifier != nil && lineUserID != "" {
		err := o.notifier.NotifyPriceChange(ctx, lineUserID, unit.Property.Name, pageURL, result.PreviousPrice, result.CurrentPrice)
		if err != nil {
			log.Printf("Warning: price change notification: %v", err)
		}
	}

	if jobID != 0 {
		if err := o.traces.CompleteJob(jobID); err != nil {
			log.Printf("Warning: failed to record job completion: %v", err)
		}
	}

	if result.IsNewProperty {
		log.Printf("Scraped new property %s (%s)", unit.Property.Name, pageURL)
	} else {
		log.Printf("Refreshed property %s (%s)", unit.Property.Name, pageURL)
	}
	return nil
}

func (o *Orchestrator) failJob(ctx context.Context, jobID int64, pageURL, lineUserID string, cause error) {
	log.Printf("Scrape failed for %s: %v", pageURL, cause)

	if jobID != 0 {
		if err := o.traces.FailJob(jobID, cause.Error()); err != nil {
			log.Printf("Warning: failed to record job failure: %v", err)
		}
	}

	var fetchErr *FetchError
	if o.notifier != nil && lineUserID != "" && errors.As(cause, &fetchErr) {
		if err := o.notifier.NotifyFailure(ctx, lineUserID, pageURL, fetchErr.Error()); err != nil {
			log.Printf("Warning: failure notification: %v", err)
		}
	}
}
