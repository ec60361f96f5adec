// Package export writes account snapshots as newline-delimited JSON and ships
// them to Google Cloud Storage.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"

	"github.com/oksasatya/go-ddd-accounts/internal/domain/entity"
	"github.com/oksasatya/go-ddd-accounts/pkg/helpers"
)

const ContentType = "application/x-ndjson"

// WriteNDJSON writes one account per line. Password hashes are never written.
func WriteNDJSON(w io.Writer, accounts []*entity.Account) (int, error) {
	enc := json.NewEncoder(w)
	for i, a := range accounts {
		if err := enc.Encode(a); err != nil {
			return i, err
		}
	}
	return len(accounts), nil
}

type uploadFunc func(ctx context.Context, objectPath, contentType string, r io.Reader) (string, error)

type GCSExporter struct {
	Bucket string
	Prefix string
	Clock  func() time.Time
	upload uploadFunc
}

func NewGCSExporter(client *storage.Client, bucket string) *GCSExporter {
	e := &GCSExporter{Bucket: bucket, Prefix: "exports", Clock: time.Now}
	if client != nil {
		e.upload = func(ctx context.Context, objectPath, contentType string, r io.Reader) (string, error) {
			return helpers.UploadObject(ctx, client, bucket, objectPath, contentType, r)
		}
	}
	return e
}

// ObjectPath names the snapshot taken at t.
func (e *GCSExporter) ObjectPath(t time.Time) string {
	return fmt.Sprintf("%s/accounts-%s.ndjson", e.Prefix, t.UTC().Format("20060102T150405Z"))
}

// Export uploads the accounts and returns the object URL and row count.
func (e *GCSExporter) Export(ctx context.Context, accounts []*entity.Account) (string, int, error) {
	if e.upload == nil || e.Bucket == "" {
		return "", 0, errors.New("gcs not configured")
	}
	var buf bytes.Buffer
	n, err := WriteNDJSON(&buf, accounts)
	if err != nil {
		return "", 0, err
	}
	url, err := e.upload(ctx, e.ObjectPath(e.Clock()), ContentType, &buf)
	if err != nil {
		return "", 0, err
	}
	return url, n, nil
}
