package retrieval

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/foundryd/internal/retrieval"

// indexMetrics records build and query telemetry for the index.
type indexMetrics struct {
	builds        metric.Int64Counter
	buildDuration metric.Float64Histogram
	chunksIndexed metric.Int64Counter
	queries       metric.Int64Counter
	queryDuration metric.Float64Histogram
	errors        metric.Int64Counter
}

func newIndexMetrics(logger *zap.Logger) *indexMetrics {
	meter := otel.Meter(instrumentationName)
	m := &indexMetrics{}

	var err error
	m.builds, err = meter.Int64Counter(
		"foundryd.retrieval.builds",
		metric.WithDescription("Number of index builds"),
		metric.WithUnit("{build}"),
	)
	if err != nil {
		logger.Warn("failed to create builds counter", zap.Error(err))
	}

	m.buildDuration, err = meter.Float64Histogram(
		"foundryd.retrieval.build.duration",
		metric.WithDescription("Index build duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		logger.Warn("failed to create build duration histogram", zap.Error(err))
	}

	m.chunksIndexed, err = meter.Int64Counter(
		"foundryd.retrieval.chunks.indexed",
		metric.WithDescription("Number of chunks indexed"),
		metric.WithUnit("{chunk}"),
	)
	if err != nil {
		logger.Warn("failed to create chunks counter", zap.Error(err))
	}

	m.queries, err = meter.Int64Counter(
		"foundryd.retrieval.queries",
		metric.WithDescription("Number of retrieval queries"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		logger.Warn("failed to create queries counter", zap.Error(err))
	}

	m.queryDuration, err = meter.Float64Histogram(
		"foundryd.retrieval.query.duration",
		metric.WithDescription("Retrieval query duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		logger.Warn("failed to create query duration histogram", zap.Error(err))
	}

	m.errors, err = meter.Int64Counter(
		"foundryd.retrieval.errors",
		metric.WithDescription("Number of retrieval errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		logger.Warn("failed to create errors counter", zap.Error(err))
	}

	return m
}

func (m *indexMetrics) recordBuild(ctx context.Context, docs, chunks int, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.Int("documents", docs),
	)
	if m.builds != nil {
		m.builds.Add(ctx, 1, attrs)
	}
	if m.buildDuration != nil {
		m.buildDuration.Record(ctx, elapsed.Seconds(), attrs)
	}
	if m.chunksIndexed != nil {
		m.chunksIndexed.Add(ctx, int64(chunks))
	}
}

func (m *indexMetrics) recordQuery(ctx context.Context, results int, elapsed time.Duration, err error) {
	if err != nil {
		if m.errors != nil {
			m.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", "query")))
		}
		return
	}
	attrs := metric.WithAttributes(attribute.Int("results", results))
	if m.queries != nil {
		m.queries.Add(ctx, 1, attrs)
	}
	if m.queryDuration != nil {
		m.queryDuration.Record(ctx, elapsed.Seconds(), attrs)
	}
}
