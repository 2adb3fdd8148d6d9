package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/domaintobiz/siteworker/internal/logger"
)

// Archiver snapshots completed job results to object storage. Archiving is
// best-effort by design: the store row remains the source of truth, the
// archive is a cheap durable copy for audits and replays.
type Archiver struct {
	storage ObjectStorage
}

// NewArchiver creates an archiver over the given storage.
func NewArchiver(storage ObjectStorage) *Archiver {
	return &Archiver{storage: storage}
}

// ArchiveResult uploads the aggregated result of a completed job as JSON
// under jobs/<id>/result.json. The write is idempotent: a key that already
// exists (a job re-run after a crash mid-completion) is left untouched.
// Failures are logged, never returned.
func (a *Archiver) ArchiveResult(ctx context.Context, jobID string, result map[string]any) {
	key := fmt.Sprintf("jobs/%s/result.json", jobID)

	exists, err := a.storage.Exists(ctx, key)
	if err != nil {
		logger.CtxWarn(ctx, "Failed to check archive for %s, uploading anyway: %v", key, err)
	} else if exists {
		logger.CtxInfo(ctx, "Result already archived at %s, skipping", key)
		return
	}

	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		logger.CtxWarn(ctx, "Failed to encode result for archiving: %v", err)
		return
	}

	if err := a.storage.Upload(ctx, key, bytes.NewReader(payload), int64(len(payload)), "application/json"); err != nil {
		logger.CtxWarn(ctx, "Failed to archive job result: %v", err)
		return
	}
	logger.CtxInfo(ctx, "Archived job result %s (%s)", key, a.storage.GetURL(key))
}
