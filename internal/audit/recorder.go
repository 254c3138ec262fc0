package audit

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"gigline/internal/domain"
	"gigline/internal/repo"
)

// Recorder persists executed assistant intents. Recording is best-effort:
// a failed insert is logged and never fails the parent operation.
type Recorder struct {
	Repo repo.Repo
	Now  func() time.Time
}

func New(r repo.Repo) Recorder {
	return Recorder{Repo: r, Now: time.Now}
}

func (rec Recorder) now() time.Time {
	if rec.Now != nil {
		return rec.Now()
	}
	return time.Now()
}

// Record writes one audit entry. payload and result are marshaled to JSON;
// values that cannot marshal are stored as "{}".
func (rec Recorder) Record(ctx context.Context, userID, summary, resource string, payload, result any) {
	entry := domain.AuditEntry{
		UserID:      userID,
		Summary:     summary,
		Resource:    resource,
		PayloadJSON: marshalOrEmpty(payload),
		ResultJSON:  marshalOrEmpty(result),
		CreatedAt:   rec.now().UTC().Format(time.RFC3339),
	}
	if err := rec.Repo.InsertAudit(ctx, entry); err != nil {
		log.Printf("audit: record failed: %v", err)
	}
}

func marshalOrEmpty(v any) string {
	if v == nil {
		return "{}"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
