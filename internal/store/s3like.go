package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bijux/atlas-engine/internal/artifact"
	"github.com/bijux/atlas-engine/internal/canonical"
	"github.com/bijux/atlas-engine/internal/errs"
	"github.com/bijux/atlas-engine/internal/ids"
)

// S3LikeBackend fetches a published dataset tree from an object-store-like
// HTTP endpoint: plain GETs under a base URL, an optional separate
// presigned base URL for the large payload objects, bearer-token auth, and
// linear-backoff retry on failure.
type S3LikeBackend struct {
	baseURL          string
	presignedBaseURL string
	authBearer       string
	retry            RetryPolicy
	client           *http.Client
}

// NewS3LikeBackend returns a backend against baseURL. presignedBaseURL and
// authBearer are optional (pass "" to omit); retry governs the linear
// backoff applied between attempts.
func NewS3LikeBackend(baseURL, presignedBaseURL, authBearer string, retry RetryPolicy) *S3LikeBackend {
	return &S3LikeBackend{
		baseURL:          strings.TrimRight(baseURL, "/"),
		presignedBaseURL: strings.TrimRight(presignedBaseURL, "/"),
		authBearer:       authBearer,
		retry:            retry,
		client:           &http.Client{Timeout: 15 * time.Second},
	}
}

func (b *S3LikeBackend) objectURL(dataset ids.DatasetId, dir, file string) string {
	base := b.baseURL
	if b.presignedBaseURL != "" {
		base = b.presignedBaseURL
	}
	return fmt.Sprintf("%s/%s/%s/%s/%s/%s", base, dataset.Release, dataset.Species, dataset.Assembly, dir, file)
}

func (b *S3LikeBackend) newRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if b.authBearer != "" {
		req.Header.Set("Authorization", "Bearer "+b.authBearer)
	}
	return req, nil
}

// getWithRetry issues GET url, retrying up to retry.MaxAttempts times with
// linear backoff (base_backoff_ms x attempt) on non-2xx status or transport
// error.
func (b *S3LikeBackend) getWithRetry(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= b.retry.MaxAttempts; attempt++ {
		req, err := b.newRequest(ctx, url)
		if err != nil {
			return nil, err
		}
		resp, err := b.client.Do(req)
		if err != nil {
			lastErr = err
		} else {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				if readErr != nil {
					return nil, fmt.Errorf("read body from %s: %w", url, readErr)
				}
				return body, nil
			}
			lastErr = fmt.Errorf("download failed status=%d url=%s", resp.StatusCode, url)
		}
		if attempt < b.retry.MaxAttempts {
			b.sleep(attempt)
		}
	}
	return nil, lastErr
}

// getCatalogWithRetry is getWithRetry specialized for the catalog's
// conditional-fetch semantics: a 304 short-circuits to NotModified, and the
// ETag header (falling back to a content hash) is returned alongside the
// body.
func (b *S3LikeBackend) getCatalogWithRetry(ctx context.Context, url, ifNoneMatch string) (CatalogFetch, error) {
	var lastErr error
	for attempt := 1; attempt <= b.retry.MaxAttempts; attempt++ {
		req, err := b.newRequest(ctx, url)
		if err != nil {
			return CatalogFetch{}, err
		}
		if ifNoneMatch != "" {
			req.Header.Set("If-None-Match", ifNoneMatch)
		}
		resp, err := b.client.Do(req)
		if err != nil {
			lastErr = err
		} else if resp.StatusCode == http.StatusNotModified {
			resp.Body.Close()
			return CatalogFetch{NotModified: true, ETag: ifNoneMatch}, nil
		} else if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			body, readErr := io.ReadAll(resp.Body)
			etag := resp.Header.Get("ETag")
			resp.Body.Close()
			if readErr != nil {
				return CatalogFetch{}, fmt.Errorf("read catalog body: %w", readErr)
			}
			var catalog ids.Catalog
			if err := json.Unmarshal(body, &catalog); err != nil {
				return CatalogFetch{}, errs.E(errs.KindCorrupted, "parse catalog.json", err)
			}
			if etag == "" {
				etag = canonical.SHA256Hex(body)
			}
			return CatalogFetch{ETag: etag, Catalog: &catalog}, nil
		} else {
			resp.Body.Close()
			lastErr = fmt.Errorf("download failed status=%d url=%s", resp.StatusCode, url)
		}
		if attempt < b.retry.MaxAttempts {
			b.sleep(attempt)
		}
	}
	return CatalogFetch{}, lastErr
}

// getResumeWithRetry fetches url with HTTP Range resume: each retry
// requests bytes starting after what has already been buffered, so a
// dropped connection loses only the unacknowledged tail.
func (b *S3LikeBackend) getResumeWithRetry(ctx context.Context, url string) ([]byte, error) {
	var buf []byte
	var lastErr error
	for attempt := 1; attempt <= b.retry.MaxAttempts; attempt++ {
		req, err := b.newRequest(ctx, url)
		if err != nil {
			return nil, err
		}
		if len(buf) > 0 {
			req.Header.Set("Range", fmt.Sprintf("bytes=%d-", len(buf)))
		}
		resp, err := b.client.Do(req)
		if err != nil {
			lastErr = err
			if attempt < b.retry.MaxAttempts {
				b.sleep(attempt)
			}
			continue
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
			resp.Body.Close()
			lastErr = fmt.Errorf("resumable download failed status=%d url=%s", resp.StatusCode, url)
			if attempt < b.retry.MaxAttempts {
				b.sleep(attempt)
			}
			continue
		}
		contentRange := resp.Header.Get("Content-Range")
		part, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("read body from %s: %w", url, readErr)
		}
		if len(part) == 0 {
			return buf, nil
		}
		buf = append(buf, part...)
		if total, ok := parseRangeTotal(contentRange); ok && len(buf) >= total {
			return buf, nil
		}
		if resp.StatusCode == http.StatusPartialContent && attempt < b.retry.MaxAttempts {
			b.sleep(attempt)
			continue
		}
		return buf, nil
	}
	return nil, lastErr
}

func parseRangeTotal(contentRange string) (int, bool) {
	idx := strings.LastIndex(contentRange, "/")
	if idx < 0 || idx == len(contentRange)-1 {
		return 0, false
	}
	total, err := strconv.Atoi(contentRange[idx+1:])
	if err != nil {
		return 0, false
	}
	return total, true
}

func (b *S3LikeBackend) sleep(attempt int) {
	time.Sleep(time.Duration(b.retry.BaseBackoffMs*attempt) * time.Millisecond)
}

// FetchCatalog issues a conditional GET against base_url/catalog.json.
func (b *S3LikeBackend) FetchCatalog(ctx context.Context, ifNoneMatch string) (CatalogFetch, error) {
	url := b.baseURL + "/catalog.json"
	return b.getCatalogWithRetry(ctx, url, ifNoneMatch)
}

// FetchManifest fetches and parses manifest.json for dataset.
func (b *S3LikeBackend) FetchManifest(ctx context.Context, dataset ids.DatasetId) (*artifact.ArtifactManifest, error) {
	const op = errs.Op("store.S3LikeBackend.FetchManifest")
	url := b.objectURL(dataset, "derived", "manifest.json")
	body, err := b.getWithRetry(ctx, url)
	if err != nil {
		return nil, errs.E(op, errs.KindUnavailable, fmt.Sprintf("fetch %s", url), err)
	}
	var manifest artifact.ArtifactManifest
	if err := json.Unmarshal(body, &manifest); err != nil {
		return nil, errs.E(op, errs.KindCorrupted, "parse manifest.json", err)
	}
	return &manifest, nil
}

// FetchSqliteBytes fetches one table store object by name, with range resume.
func (b *S3LikeBackend) FetchSqliteBytes(ctx context.Context, dataset ids.DatasetId, fileName string) ([]byte, error) {
	const op = errs.Op("store.S3LikeBackend.FetchSqliteBytes")
	url := b.objectURL(dataset, "derived", fileName)
	body, err := b.getResumeWithRetry(ctx, url)
	if err != nil {
		return nil, errs.E(op, errs.KindUnavailable, fmt.Sprintf("fetch %s", url), err)
	}
	return body, nil
}

// FetchFastaBytes fetches the sequence object, with range resume.
func (b *S3LikeBackend) FetchFastaBytes(ctx context.Context, dataset ids.DatasetId) ([]byte, error) {
	const op = errs.Op("store.S3LikeBackend.FetchFastaBytes")
	url := b.objectURL(dataset, "inputs", "genome.fa.bgz")
	body, err := b.getResumeWithRetry(ctx, url)
	if err != nil {
		return nil, errs.E(op, errs.KindUnavailable, fmt.Sprintf("fetch %s", url), err)
	}
	return body, nil
}

// FetchFaiBytes fetches the length-index object.
func (b *S3LikeBackend) FetchFaiBytes(ctx context.Context, dataset ids.DatasetId) ([]byte, error) {
	const op = errs.Op("store.S3LikeBackend.FetchFaiBytes")
	url := b.objectURL(dataset, "inputs", "genome.fa.bgz.fai")
	body, err := b.getWithRetry(ctx, url)
	if err != nil {
		return nil, errs.E(op, errs.KindUnavailable, fmt.Sprintf("fetch %s", url), err)
	}
	return body, nil
}

// FetchReleaseGeneIndexBytes fetches release_gene_index.json.
func (b *S3LikeBackend) FetchReleaseGeneIndexBytes(ctx context.Context, dataset ids.DatasetId) ([]byte, error) {
	const op = errs.Op("store.S3LikeBackend.FetchReleaseGeneIndexBytes")
	url := b.objectURL(dataset, "derived", "release_gene_index.json")
	body, err := b.getWithRetry(ctx, url)
	if err != nil {
		return nil, errs.E(op, errs.KindUnavailable, fmt.Sprintf("fetch %s", url), err)
	}
	return body, nil
}
