package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/salonbook/internal/notifications"
	"github.com/wolfman30/salonbook/pkg/logging"
)

type LogSource interface {
	ListCreatedBetween(ctx context.Context, from, to time.Time) ([]notifications.LogEntry, error)
}

// ExportResult summarizes one exported day.
type ExportResult struct {
	Day     string `json:"day"`
	S3Key   string `json:"s3Key"`
	Records int    `json:"records"`
}

// Exporter copies a business day of notification logs to S3.
type Exporter struct {
	source   LogSource
	store    *Store
	location *time.Location
	logger   *logging.Logger
	now      func() time.Time
}

func NewExporter(source LogSource, store *Store, loc *time.Location, logger *logging.Logger) *Exporter {
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Exporter{source: source, store: store, location: loc, logger: logger, now: time.Now}
}

// ExportPreviousDay exports yesterday in the business time zone.
func (e *Exporter) ExportPreviousDay(ctx context.Context) (*ExportResult, error) {
	return e.ExportDay(ctx, e.now().In(e.location).AddDate(0, 0, -1))
}

// ExportDay writes every log row created on day's calendar date.
func (e *Exporter) ExportDay(ctx context.Context, day time.Time) (*ExportResult, error) {
	local := day.In(e.location)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, e.location)
	end := start.AddDate(0, 0, 1)
	result := &ExportResult{Day: start.Format("2006-01-02")}

	if !e.store.Enabled() {
		e.logger.Debug("archive bucket not configured, skipping export", "day", result.Day)
		return result, nil
	}

	entries, err := e.source.ListCreatedBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("archive: export %s: %w", result.Day, err)
	}

	records := make([]LogRecord, 0, len(entries))
	var sent, failed int
	for _, entry := range entries {
		records = append(records, toRecord(entry))
		switch entry.Status {
		case string(notifications.StatusSent):
			sent++
		case string(notifications.StatusFailed):
			failed++
		}
	}

	key, err := e.store.PutDay(ctx, start, records)
	if err != nil {
		return nil, err
	}
	result.S3Key = key
	result.Records = len(records)

	manifest := ManifestEntry{
		Day:        result.Day,
		S3Key:      key,
		Records:    len(records),
		Sent:       sent,
		Failed:     failed,
		ExportedAt: e.now().UTC().Format(time.RFC3339),
	}
	if err := e.store.AppendManifest(ctx, start, manifest); err != nil {
		// The day file is already uploaded.
		e.logger.Warn("failed to append manifest", "error", err, "day", result.Day)
	}
	return result, nil
}

func toRecord(entry notifications.LogEntry) LogRecord {
	r := LogRecord{
		ID:               entry.ID.String(),
		UserID:           entry.UserID,
		NotificationType: entry.NotificationType,
		Channel:          entry.Channel,
		PhoneHash:        HashPhone(entry.PhoneNumber),
		Message:          ScrubPII(entry.MessageContent),
		Status:           entry.Status,
		Error:            entry.ErrorMessage,
		SentAt:           entry.SentAt,
		CreatedAt:        entry.CreatedAt.UTC(),
	}
	if entry.AppointmentID != nil {
		r.AppointmentID = entry.AppointmentID.String()
	}
	return r
}
