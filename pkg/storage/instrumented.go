package storage

import (
	"context"
	"io"
	"time"

	"github.com/platinummonkey/buildpro/pkg/observability"
)

// instrumentedStore counts every blob operation by outcome
type instrumentedStore struct {
	BlobStore
	metrics *observability.Metrics
}

// WithMetrics wraps store so each call increments
// buildpro_blob_operations_total{operation,backend,status}
func WithMetrics(store BlobStore, metrics *observability.Metrics) BlobStore {
	if metrics == nil {
		return store
	}
	return &instrumentedStore{BlobStore: store, metrics: metrics}
}

func (s *instrumentedStore) observe(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.BlobOperationsTotal.WithLabelValues(op, s.Provider(), status).Inc()
}

func (s *instrumentedStore) Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error) {
	n, err := s.BlobStore.Put(ctx, key, r, contentType)
	s.observe("put", err)
	if err == nil {
		s.metrics.DocumentBytesUploaded.Add(float64(n))
	}
	return n, err
}

func (s *instrumentedStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.BlobStore.Get(ctx, key)
	s.observe("get", err)
	return data, err
}

func (s *instrumentedStore) Delete(ctx context.Context, key string) error {
	err := s.BlobStore.Delete(ctx, key)
	s.observe("delete", err)
	return err
}

func (s *instrumentedStore) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	url, err := s.BlobStore.PresignedURL(ctx, key, ttl)
	s.observe("presign", err)
	return url, err
}
