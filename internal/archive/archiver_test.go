package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
)

type fakeStorage struct {
	existing  map[string]bool
	existsErr error
	uploadErr error

	uploads []uploadCall
}

type uploadCall struct {
	key         string
	body        []byte
	size        int64
	contentType string
}

func (f *fakeStorage) EnsureBucket(ctx context.Context) error { return nil }

func (f *fakeStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	body, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.uploads = append(f.uploads, uploadCall{key: key, body: body, size: size, contentType: contentType})
	return f.uploadErr
}

func (f *fakeStorage) Exists(ctx context.Context, key string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.existing[key], nil
}

func (f *fakeStorage) GetURL(key string) string { return "https://archive.example.com/" + key }

func TestArchiveResultKeyLayout(t *testing.T) {
	storage := &fakeStorage{}
	archiver := NewArchiver(storage)

	result := map[string]any{
		"domain":        "example.com",
		"deploymentUrl": "https://example-com.domaintobiz.app",
	}
	archiver.ArchiveResult(context.Background(), "job-123", result)

	if len(storage.uploads) != 1 {
		t.Fatalf("uploads = %d, want 1", len(storage.uploads))
	}
	up := storage.uploads[0]
	if up.key != "jobs/job-123/result.json" {
		t.Errorf("key = %q, want %q", up.key, "jobs/job-123/result.json")
	}
	if up.contentType != "application/json" {
		t.Errorf("contentType = %q, want application/json", up.contentType)
	}
	if up.size != int64(len(up.body)) {
		t.Errorf("size = %d, body length = %d", up.size, len(up.body))
	}

	var decoded map[string]any
	if err := json.Unmarshal(up.body, &decoded); err != nil {
		t.Fatalf("uploaded payload is not JSON: %v", err)
	}
	if decoded["domain"] != "example.com" {
		t.Errorf("decoded domain = %v, want example.com", decoded["domain"])
	}
}

func TestArchiveResultSkipsExistingKey(t *testing.T) {
	storage := &fakeStorage{existing: map[string]bool{"jobs/job-123/result.json": true}}
	archiver := NewArchiver(storage)

	archiver.ArchiveResult(context.Background(), "job-123", map[string]any{"domain": "example.com"})

	if len(storage.uploads) != 0 {
		t.Errorf("uploads = %d, want 0 for an already-archived result", len(storage.uploads))
	}
}

func TestArchiveResultUploadsWhenExistsCheckFails(t *testing.T) {
	storage := &fakeStorage{existsErr: errors.New("head timed out")}
	archiver := NewArchiver(storage)

	archiver.ArchiveResult(context.Background(), "job-123", map[string]any{"domain": "example.com"})

	if len(storage.uploads) != 1 {
		t.Errorf("uploads = %d, want 1 when the existence check errors", len(storage.uploads))
	}
}

func TestArchiveResultAbsorbsUploadFailure(t *testing.T) {
	storage := &fakeStorage{uploadErr: errors.New("bucket gone")}
	archiver := NewArchiver(storage)

	// Must not panic or surface the error; archiving is best-effort.
	archiver.ArchiveResult(context.Background(), "job-123", map[string]any{"domain": "example.com"})

	if len(storage.uploads) != 1 {
		t.Errorf("uploads = %d, want 1 attempt", len(storage.uploads))
	}
}
