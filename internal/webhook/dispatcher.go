// Package webhook delivers lead.created notifications to per-website
// callback URLs. Delivery is fire-and-forget: a bounded worker pool drains
// a queue, failures are logged and never retried, and nothing here blocks
// the response already sent to the lead's creator.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"engage-ws/internal/domain"
	"engage-ws/internal/metrics"
	"engage-ws/internal/store"

	"go.uber.org/zap"
)

const eventLeadCreated = "lead.created"

// WebsiteStore resolves the callback URL configured for a website.
type WebsiteStore interface {
	GetWebsite(ctx context.Context, id string) (*domain.Website, error)
}

type Dispatcher struct {
	log    *zap.Logger
	store  WebsiteStore
	client *http.Client

	jobs chan domain.LeadCapture
	wg   sync.WaitGroup

	closeOnce sync.Once
}

// NewDispatcher starts the worker goroutines draining the delivery queue.
func NewDispatcher(websites WebsiteStore, workers int, timeout time.Duration, log *zap.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	d := &Dispatcher{
		log:    log,
		store:  websites,
		client: &http.Client{Timeout: timeout},
		jobs:   make(chan domain.LeadCapture, 256),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Enqueue schedules delivery for a newly created lead. Leads without a
// website reference are skipped; a full queue drops the notification rather
// than block the caller.
func (d *Dispatcher) Enqueue(lead domain.LeadCapture) {
	if lead.WebsiteID == "" {
		return
	}
	select {
	case d.jobs <- lead:
	default:
		metrics.WebhookDeliveriesTotal.WithLabelValues("dropped").Inc()
		d.log.Warn("webhook queue full, dropping notification", zap.String("leadId", lead.ID))
	}
}

// Close drains the queue and stops the workers.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.jobs)
	})
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for lead := range d.jobs {
		d.dispatch(lead)
	}
}

func (d *Dispatcher) dispatch(lead domain.LeadCapture) {
	ctx, cancel := context.WithTimeout(context.Background(), d.client.Timeout)
	defer cancel()

	site, err := d.store.GetWebsite(ctx, lead.WebsiteID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			d.log.Error("webhook website lookup failed",
				zap.String("leadId", lead.ID), zap.String("websiteId", lead.WebsiteID), zap.Error(err))
		}
		return
	}
	if site.WebhookURL == "" {
		return
	}

	if err := d.post(ctx, site.WebhookURL, lead); err != nil {
		metrics.WebhookDeliveriesTotal.WithLabelValues("error").Inc()
		d.log.Error("webhook delivery failed",
			zap.String("leadId", lead.ID), zap.String("url", site.WebhookURL), zap.Error(err))
		return
	}

	metrics.WebhookDeliveriesTotal.WithLabelValues("ok").Inc()
	d.log.Info("webhook delivered",
		zap.String("leadId", lead.ID), zap.String("url", site.WebhookURL))
}

func (d *Dispatcher) post(ctx context.Context, url string, lead domain.LeadCapture) error {
	body, err := json.Marshal(domain.WebhookPayload{Event: eventLeadCreated, Lead: &lead})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
