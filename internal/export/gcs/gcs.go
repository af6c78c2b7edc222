// Package gcs writes bill reports as CSV objects to a Cloud Storage bucket.
package gcs

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"smartbill/internal/report"
)

const uploadTimeout = 2 * time.Minute

// objectWriter opens a writer for one object. The storage bucket handle
// satisfies it through bucketObjects.
type objectWriter interface {
	NewWriter(ctx context.Context, name string) io.WriteCloser
}

type bucketObjects struct {
	bkt *storage.BucketHandle
}

func (b bucketObjects) NewWriter(ctx context.Context, name string) io.WriteCloser {
	w := b.bkt.Object(name).NewWriter(ctx)
	w.ContentType = "text/csv"
	return w
}

type Writer struct {
	client  *storage.Client
	objects objectWriter
	bucket  string
	prefix  string
}

// New uses Application Default Credentials unless opts override them.
func New(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (*Writer, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("missing GCS_BUCKET")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &Writer{
		client:  client,
		objects: bucketObjects{bkt: client.Bucket(bucket)},
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
	}, nil
}

// ObjectName returns "<prefix>/<billID>-<jobID>.csv".
func (w *Writer) ObjectName(billID, jobID string) string {
	name := fmt.Sprintf("%s-%s.csv", billID, jobID)
	if w.prefix == "" {
		return name
	}
	return path.Join(w.prefix, name)
}

// WriteReport uploads the report rows as CSV and returns the gs:// URI.
func (w *Writer) WriteReport(ctx context.Context, jobID string, r report.BillReport) (string, error) {
	data, err := encodeCSV(r.Rows())
	if err != nil {
		return "", fmt.Errorf("encode report %s: %w", r.BillID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	name := w.ObjectName(r.BillID, jobID)
	ow := w.objects.NewWriter(ctx, name)
	if _, err := io.Copy(ow, bytes.NewReader(data)); err != nil {
		_ = ow.Close()
		return "", fmt.Errorf("copy report to GCS writer: %w", err)
	}
	// Close finalizes the upload.
	if err := ow.Close(); err != nil {
		return "", fmt.Errorf("finalize upload: %w", err)
	}

	uri := fmt.Sprintf("gs://%s/%s", w.bucket, name)
	slog.InfoContext(ctx, "Report uploaded", "job_id", jobID, "bill_id", r.BillID, "uri", uri, "bytes", len(data))
	return uri, nil
}

func (w *Writer) Close() error {
	if w.client != nil {
		return w.client.Close()
	}
	return nil
}

// encodeCSV writes rows with a variable field count; the title and insight
// rows have one column, the field table two.
func encodeCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
