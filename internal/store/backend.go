// Package store defines the capability interface dataset fetches go
// through, plus a local-filesystem implementation and a minimal
// object-store-like remote implementation. The dataset cache is the only
// caller; no other component talks to a backend directly.
package store

import (
	"context"

	"github.com/bijux/atlas-engine/internal/artifact"
	"github.com/bijux/atlas-engine/internal/ids"
)

// CatalogFetch is the result of a conditional catalog fetch: either the
// catalog is unchanged since the caller's ETag, or an updated catalog plus
// its new ETag is returned.
type CatalogFetch struct {
	NotModified bool
	ETag        string
	Catalog     *ids.Catalog
}

// DatasetStoreBackend is the fetch surface the cache builds datasets from.
// Every method is a whole-file fetch; backends that stream large payloads
// internally (e.g. range-resumed HTTP) still return the full byte slice.
type DatasetStoreBackend interface {
	FetchCatalog(ctx context.Context, ifNoneMatch string) (CatalogFetch, error)
	FetchManifest(ctx context.Context, dataset ids.DatasetId) (*artifact.ArtifactManifest, error)
	FetchSqliteBytes(ctx context.Context, dataset ids.DatasetId, fileName string) ([]byte, error)
	FetchFastaBytes(ctx context.Context, dataset ids.DatasetId) ([]byte, error)
	FetchFaiBytes(ctx context.Context, dataset ids.DatasetId) ([]byte, error)
	FetchReleaseGeneIndexBytes(ctx context.Context, dataset ids.DatasetId) ([]byte, error)
}

// RetryPolicy bounds the remote backend's retry behavior: linear backoff,
// base_backoff_ms x attempt.
type RetryPolicy struct {
	MaxAttempts   int
	BaseBackoffMs int
}

// DefaultRetryPolicy matches the teacher's retry calibration.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 4, BaseBackoffMs: 120}
}
