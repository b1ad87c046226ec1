package query

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/bijux/atlas-engine/internal/errs"
)

// canonicalRequest is the subset of a GeneQueryRequest that participates in
// the normalization hash: everything except Cursor. Field order here is
// fixed so the JSON encoding (and therefore the hash) is independent of how
// the caller populated the Go struct.
type canonicalRequest struct {
	GeneId        string `json:"gene_id,omitempty"`
	Name          string `json:"name,omitempty"`
	NamePrefix    string `json:"name_prefix,omitempty"`
	Biotype       string `json:"biotype,omitempty"`
	RegionSeqid   string `json:"region_seqid,omitempty"`
	RegionStart   uint64 `json:"region_start,omitempty"`
	RegionEnd     uint64 `json:"region_end,omitempty"`
	GeneIdFlag    bool   `json:"gene_id_field"`
	NameFlag      bool   `json:"name_field"`
	CoordsFlag    bool   `json:"coords_field"`
	BiotypeFlag   bool   `json:"biotype_field"`
	TxCountFlag   bool   `json:"transcript_count_field"`
	SeqLenFlag    bool   `json:"sequence_length_field"`
	Limit         int    `json:"limit"`
	DatasetKey    string `json:"dataset_key,omitempty"`
	AllowFullScan bool   `json:"allow_full_scan"`
}

func toCanonical(req GeneQueryRequest) canonicalRequest {
	c := canonicalRequest{
		GeneId:        req.Filter.GeneId,
		Name:          req.Filter.Name,
		NamePrefix:    req.Filter.NamePrefix,
		Biotype:       req.Filter.Biotype,
		Limit:         req.Limit,
		DatasetKey:    req.DatasetKey,
		AllowFullScan: req.AllowFullScan,
		GeneIdFlag:    req.Fields.GeneId,
		NameFlag:      req.Fields.Name,
		CoordsFlag:    req.Fields.Coords,
		BiotypeFlag:   req.Fields.Biotype,
		TxCountFlag:   req.Fields.TranscriptCount,
		SeqLenFlag:    req.Fields.SequenceLength,
	}
	if req.Filter.Region != nil {
		c.RegionSeqid = req.Filter.Region.Seqid
		c.RegionStart = req.Filter.Region.Start
		c.RegionEnd = req.Filter.Region.End
	}
	return c
}

// normalizationHash is a stable digest of the canonicalized request with
// the cursor removed: identical requests (regardless of Go struct field
// population order, which doesn't affect JSON output anyway) produce
// identical hashes, and the hash never changes across pages of the same
// query (spec.md §8.5).
func normalizationHash(req GeneQueryRequest) (string, error) {
	c := toCanonical(req)
	raw, err := json.Marshal(c)
	if err != nil {
		return "", errs.E(errs.Op("query.normalizationHash"), errs.KindInternal, "marshal canonical request", err)
	}
	sum := sha256.Sum256(raw)
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}

// canonicalTranscriptRequest is canonicalRequest's transcript-query analog:
// the subset of a TranscriptQueryRequest that participates in the
// normalization hash, everything except Cursor.
type canonicalTranscriptRequest struct {
	TranscriptId   string `json:"transcript_id,omitempty"`
	ParentGeneId   string `json:"parent_gene_id,omitempty"`
	Biotype        string `json:"biotype,omitempty"`
	TranscriptType string `json:"transcript_type,omitempty"`
	RegionSeqid    string `json:"region_seqid,omitempty"`
	RegionStart    uint64 `json:"region_start,omitempty"`
	RegionEnd      uint64 `json:"region_end,omitempty"`
	Limit          int    `json:"limit"`
}

func toCanonicalTranscript(req TranscriptQueryRequest) canonicalTranscriptRequest {
	c := canonicalTranscriptRequest{
		TranscriptId:   req.Filter.TranscriptId,
		ParentGeneId:   req.Filter.ParentGeneId,
		Biotype:        req.Filter.Biotype,
		TranscriptType: req.Filter.TranscriptType,
		Limit:          req.Limit,
	}
	if req.Filter.Region != nil {
		c.RegionSeqid = req.Filter.Region.Seqid
		c.RegionStart = req.Filter.Region.Start
		c.RegionEnd = req.Filter.Region.End
	}
	return c
}

// transcriptNormalizationHash is normalizationHash's transcript-query
// analog, giving QueryTranscripts the identical cursor discipline spec.md
// §4.7 requires of both query paths: the hash binds a signed cursor to the
// exact request that issued it, independent of cursor value.
func transcriptNormalizationHash(req TranscriptQueryRequest) (string, error) {
	c := toCanonicalTranscript(req)
	raw, err := json.Marshal(c)
	if err != nil {
		return "", errs.E(errs.Op("query.transcriptNormalizationHash"), errs.KindInternal, "marshal canonical transcript request", err)
	}
	sum := sha256.Sum256(raw)
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}

// encodeCursor builds the opaque cursor token: base64 over
// HMAC_SHA256(secret, normalizationHash || rowKey) || rowKey, joined by a
// literal '.' so decodeCursor can split deterministically (both segments
// are base64url-encoded, and that alphabet never contains '.', even when
// the seqid inside rowKey does).
func encodeCursor(secret []byte, normHash, rowKey string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(normHash))
	mac.Write([]byte(rowKey))
	sig := mac.Sum(nil)
	payload := base64.RawURLEncoding.EncodeToString(sig) + "." + base64.RawURLEncoding.EncodeToString([]byte(rowKey))
	return payload
}

// decodedCursor is the parsed, signature-verified contents of an opaque
// cursor.
type decodedCursor struct {
	RowKey string
}

// decodeCursor parses and verifies token against the current request's
// normalization hash. A malformed payload, an unparseable component, or a
// signature that doesn't match the expected (secret, normHash, rowKey)
// triple all produce a Cursor error, per spec.md §6.
func decodeCursor(secret []byte, normHash, token string) (*decodedCursor, error) {
	const op = errs.Op("query.decodeCursor")
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return nil, errs.E(op, errs.KindCursor, "malformed cursor: expected two dot-separated segments")
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, errs.E(op, errs.KindCursor, "malformed cursor signature encoding", err)
	}
	rowKeyBytes, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, errs.E(op, errs.KindCursor, "malformed cursor row key encoding", err)
	}
	rowKey := string(rowKeyBytes)

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(normHash))
	mac.Write([]byte(rowKey))
	expected := mac.Sum(nil)
	if !hmac.Equal(sig, expected) {
		return nil, errs.E(op, errs.KindCursor, "cursor signature mismatch")
	}
	return &decodedCursor{RowKey: rowKey}, nil
}

// geneRowKey builds the sort key string for a gene row in canonical
// (seqid, start, end, gene_id) order, matching the artifact's stored sort.
func geneRowKey(seqid string, start, end uint64, geneID string) string {
	return fmt.Sprintf("%s|%020d|%020d|%s", seqid, start, end, geneID)
}

// transcriptRowKey builds the sort key string for a transcript row in
// canonical (seqid, start, transcript_id) order.
func transcriptRowKey(seqid string, start uint64, transcriptID string) string {
	return fmt.Sprintf("%s|%020d|%s", seqid, start, transcriptID)
}

// sortGeneRowKeys is a helper for tests and fan-out merge verifying the
// lexicographic ordering of geneRowKey matches (seqid, start, end, gene_id)
// ascending; zero-padded numeric components make string comparison and
// numeric comparison agree.
func sortGeneRowKeys(keys []string) {
	sort.Strings(keys)
}
