package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/wolfman30/salonbook/cmd/mainconfig"
	"github.com/wolfman30/salonbook/internal/app/bootstrap"
	"github.com/wolfman30/salonbook/internal/archive"
	appconfig "github.com/wolfman30/salonbook/internal/config"
	"github.com/wolfman30/salonbook/pkg/logging"
)

type dayExporter interface {
	ExportPreviousDay(ctx context.Context) (*archive.ExportResult, error)
	ExportDay(ctx context.Context, day time.Time) (*archive.ExportResult, error)
}

// backfillDetail lets an operator replay one day: {"day":"2026-03-14"}.
type backfillDetail struct {
	Day string `json:"day"`
}

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	ctx := context.Background()

	if cfg.ArchiveBucket == "" {
		logger.Error("archive lambda requires ARCHIVE_BUCKET")
		os.Exit(1)
	}

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	svc, err := bootstrap.BuildServices(cfg, bootstrap.Infra{Pool: pool, AWS: &awsCfg}, nil, logger)
	if err != nil {
		logger.Error("failed to wire services", "error", err)
		os.Exit(1)
	}

	lambda.Start(handler(svc.Archive, cfg.Location(), logger))
}

func handler(exporter dayExporter, loc *time.Location, logger *logging.Logger) func(context.Context, events.CloudWatchEvent) (*archive.ExportResult, error) {
	return func(ctx context.Context, evt events.CloudWatchEvent) (*archive.ExportResult, error) {
		day, err := requestedDay(evt, loc)
		if err != nil {
			return nil, err
		}

		var result *archive.ExportResult
		if day.IsZero() {
			result, err = exporter.ExportPreviousDay(ctx)
		} else {
			result, err = exporter.ExportDay(ctx, day)
		}
		if err != nil {
			logger.Error("notification log export failed", "error", err, "event_id", evt.ID)
			return nil, err
		}
		logger.Info("notification log export finished", "day", result.Day, "records", result.Records, "key", result.S3Key)
		return result, nil
	}
}

// requestedDay returns the zero time for the scheduled run.
func requestedDay(evt events.CloudWatchEvent, loc *time.Location) (time.Time, error) {
	if len(evt.Detail) == 0 {
		return time.Time{}, nil
	}
	var detail backfillDetail
	if err := json.Unmarshal(evt.Detail, &detail); err != nil {
		return time.Time{}, fmt.Errorf("archive: decode event detail: %w", err)
	}
	if strings.TrimSpace(detail.Day) == "" {
		return time.Time{}, nil
	}
	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(detail.Day), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("archive: invalid day %q: %w", detail.Day, err)
	}
	return day, nil
}
