package dataset

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/2beens/stravadash/internal/activity"
	"github.com/2beens/stravadash/internal/splits"
	"github.com/2beens/stravadash/internal/storage"
)

// Reader loads persisted datasets. It does not cache parsed data; callers
// that want caching put a storage.CachedStore underneath.
type Reader struct {
	store     storage.BlobStore
	container string
}

func NewReader(store storage.BlobStore, container string) *Reader {
	return &Reader{
		store:     store,
		container: container,
	}
}

// ReadDataset parses the activity CSV stored under key.
func (r *Reader) ReadDataset(ctx context.Context, key string) ([]activity.Record, error) {
	data, err := r.store.Get(ctx, r.container, key)
	if err != nil {
		return nil, err
	}
	records, err := decodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return records, nil
}

func (r *Reader) ReadActivities(ctx context.Context) ([]activity.Record, error) {
	return r.ReadDataset(ctx, ActivitiesKey)
}

func (r *Reader) ReadPBEfforts(ctx context.Context) ([]activity.Record, error) {
	return r.ReadDataset(ctx, PBEffortsKey)
}

func (r *Reader) ReadCoastalPath(ctx context.Context) ([]activity.Record, error) {
	return r.ReadDataset(ctx, CoastalPathKey)
}

func (r *Reader) ReadMetadata(ctx context.Context) (*Metadata, error) {
	var m Metadata
	if err := r.readJSON(ctx, MetadataKey, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Reader) ReadSplits(ctx context.Context, activityID int64) ([]splits.Record, error) {
	var records []splits.Record
	if err := r.readJSON(ctx, SplitsKey(activityID), &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *Reader) ReadStream(ctx context.Context, activityID int64) (*splits.Series, error) {
	var series splits.Series
	if err := r.readJSON(ctx, StreamKey(activityID), &series); err != nil {
		return nil, err
	}
	return &series, nil
}

func (r *Reader) readJSON(ctx context.Context, key string, v any) error {
	data, err := r.store.Get(ctx, r.container, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: decode %s: %s", ErrMalformedDataset, key, err)
	}
	return nil
}
