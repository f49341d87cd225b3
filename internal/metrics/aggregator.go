// Package metrics computes the engagement snapshot shown on company
// dashboards and exports process counters for Prometheus scraping.
package metrics

import (
	"context"
	"math"

	"engage-ws/internal/domain"

	"go.uber.org/zap"
)

// Store is the slice of the document store the aggregator reads.
type Store interface {
	CountOnlineVisitors(ctx context.Context, companyID string) (int64, error)
	CountLeads(ctx context.Context) (int64, error)
	AverageSessionDuration(ctx context.Context, companyID string) (float64, error)
}

type Aggregator struct {
	store Store
	log   *zap.Logger
}

func NewAggregator(store Store, log *zap.Logger) *Aggregator {
	return &Aggregator{store: store, log: log}
}

// Compute builds the snapshot for one company. Store failures degrade to a
// zeroed snapshot rather than failing the caller's event.
//
// TotalLeads counts leads across all companies; the dashboards consume the
// global number.
func (a *Aggregator) Compute(ctx context.Context, companyID string) domain.Metrics {
	var m domain.Metrics

	active, err := a.store.CountOnlineVisitors(ctx, companyID)
	if err != nil {
		a.log.Error("failed to count online visitors", zap.String("companyId", companyID), zap.Error(err))
		return domain.Metrics{}
	}
	m.ActiveVisitors = active

	leads, err := a.store.CountLeads(ctx)
	if err != nil {
		a.log.Error("failed to count leads", zap.Error(err))
		return domain.Metrics{}
	}
	m.TotalLeads = leads

	avg, err := a.store.AverageSessionDuration(ctx, companyID)
	if err != nil {
		a.log.Error("failed to average session durations", zap.String("companyId", companyID), zap.Error(err))
		return domain.Metrics{}
	}
	m.AvgSessionDurationSeconds = int64(math.Round(avg))

	return m
}
