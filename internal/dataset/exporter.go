package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/stravadash/internal/activity"
	"github.com/2beens/stravadash/internal/splits"
	"github.com/2beens/stravadash/internal/storage"
	"github.com/2beens/stravadash/internal/telemetry/metrics"
	"github.com/2beens/stravadash/internal/telemetry/tracing"
)

var _ splits.Writer = (*Exporter)(nil)

// Exporter serializes datasets and writes them to one container of a blob
// store. Every write is a full overwrite of its key.
type Exporter struct {
	store          storage.BlobStore
	container      string
	metricsManager *metrics.Manager
}

func NewExporter(store storage.BlobStore, container string, metricsManager *metrics.Manager) *Exporter {
	return &Exporter{
		store:          store,
		container:      container,
		metricsManager: metricsManager,
	}
}

func (e *Exporter) put(ctx context.Context, key string, data []byte, contentType string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "exporter.put")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.String("blob.container", e.container),
		attribute.String("blob.key", key),
	)

	err = e.store.Put(ctx, e.container, key, data, contentType)
	if e.metricsManager != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		e.metricsManager.CounterBlobWrites.WithLabelValues(result).Inc()
	}
	if err != nil {
		return err
	}

	log.Debugf("exporter: wrote %s (%d bytes)", key, len(data))
	return nil
}

// ExportActivities writes records as CSV with the activity column set.
func (e *Exporter) ExportActivities(ctx context.Context, key string, records []activity.Record) error {
	data, err := encodeRecords(activityColumns, records)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return e.put(ctx, key, data, contentTypeCSV)
}

// ExportPBEfforts writes records as CSV with the extra official time column.
func (e *Exporter) ExportPBEfforts(ctx context.Context, key string, records []activity.Record) error {
	data, err := encodeRecords(pbEffortColumns, records)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return e.put(ctx, key, data, contentTypeCSV)
}

func (e *Exporter) ExportJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return e.put(ctx, key, data, contentTypeJSON)
}

func (e *Exporter) ExportMetadata(ctx context.Context, updatedAt time.Time) error {
	return e.ExportJSON(ctx, MetadataKey, NewMetadata(updatedAt))
}

func (e *Exporter) WriteSplits(ctx context.Context, activityID int64, records []splits.Record) error {
	if records == nil {
		records = []splits.Record{}
	}
	return e.ExportJSON(ctx, SplitsKey(activityID), records)
}

func (e *Exporter) WriteStream(ctx context.Context, activityID int64, series splits.Series) error {
	return e.ExportJSON(ctx, StreamKey(activityID), series)
}
