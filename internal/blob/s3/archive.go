package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

// OutcomeArchive implements domain.OutcomeArchive on top of a blob store.
// Each outcome is one JSON object keyed by the month its event started:
//
//	outcomes/2026/03/2011_0_national_all.json
//
// Batches are additionally written as JSONL bundles for bulk analysis.
type OutcomeArchive struct {
	writer   domain.BlobWriter
	reader   domain.BlobReader
	schedule domain.Schedule
}

// NewOutcomeArchive creates an archive over the given blob writer and reader.
func NewOutcomeArchive(writer domain.BlobWriter, reader domain.BlobReader, schedule domain.Schedule) *OutcomeArchive {
	return &OutcomeArchive{writer: writer, reader: reader, schedule: schedule}
}

// OutcomePath returns the object key of an archived outcome.
func (a *OutcomeArchive) OutcomePath(id domain.EventID) string {
	start := a.schedule.Start(id)
	return fmt.Sprintf("outcomes/%s/%s.json", start.Format("2006/01"), id.String())
}

// BundlePath returns the object key of a JSONL bundle written at t.
func BundlePath(t time.Time) string {
	return fmt.Sprintf("bundles/%s/%s.jsonl", t.UTC().Format("2006/01"), t.UTC().Format("20060102T150405"))
}

// Put uploads one outcome. Uploading the same outcome again overwrites it
// with identical bytes.
func (a *OutcomeArchive) Put(ctx context.Context, o domain.Outcome) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("s3blob: marshal outcome %s: %w", o.EventID, err)
	}
	return a.writer.Put(ctx, a.OutcomePath(o.EventID), bytes.NewReader(data), "application/json")
}

// Get downloads an archived outcome. A missing object reports
// domain.ErrNotFound.
func (a *OutcomeArchive) Get(ctx context.Context, id domain.EventID) (domain.Outcome, error) {
	body, err := a.reader.Get(ctx, a.OutcomePath(id))
	if err != nil {
		return domain.Outcome{}, err
	}
	defer body.Close()

	var o domain.Outcome
	if err := json.NewDecoder(body).Decode(&o); err != nil {
		return domain.Outcome{}, fmt.Errorf("s3blob: decode outcome %s: %w", id, err)
	}
	if o.EventID != id {
		return domain.Outcome{}, fmt.Errorf("s3blob: archived outcome %s holds %s", id, o.EventID)
	}
	return o, nil
}

// Exists reports whether the outcome has been archived.
func (a *OutcomeArchive) Exists(ctx context.Context, id domain.EventID) (bool, error) {
	return a.reader.Exists(ctx, a.OutcomePath(id))
}

// PutBundle writes outcomes as one JSONL object and returns its key. Large
// bundles go through the multipart uploader.
func (a *OutcomeArchive) PutBundle(ctx context.Context, outcomes []domain.Outcome, at time.Time) (string, error) {
	if len(outcomes) == 0 {
		return "", nil
	}
	data, err := marshalJSONL(outcomes)
	if err != nil {
		return "", fmt.Errorf("s3blob: bundle: %w", err)
	}

	path := BundlePath(at)
	if int64(len(data)) >= minPartSize {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(data), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(data), "application/x-ndjson")
	}
	if err != nil {
		return "", err
	}
	return path, nil
}

// marshalJSONL encodes one compact JSON document per line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
