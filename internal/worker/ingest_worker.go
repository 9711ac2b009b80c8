package worker

import (
	"context"
	"fmt"
	"log/slog"

	"vahan/internal/amqp"
	"vahan/internal/services"
)

// IngestWorker drives the ingest service from AMQP messages and periodic
// data-directory rescans.
type IngestWorker struct {
	service *services.IngestService
}

func NewIngestWorker(service *services.IngestService) *IngestWorker {
	return &IngestWorker{service: service}
}

// HandleIngestMessage processes a single ingest request from AMQP.
func (w *IngestWorker) HandleIngestMessage(ctx context.Context, msg *amqp.DatasetIngestMessage) error {
	return w.service.HandleIngestMessage(ctx, msg)
}

// StartupRefresh rebuilds the dataset on worker start. It recovers from
// files dropped into the data directory while the worker was down, or
// ingest messages lost in transit.
func (w *IngestWorker) StartupRefresh(ctx context.Context) error {
	slog.InfoContext(ctx, "Performing startup refresh")

	res, err := w.service.Refresh(ctx, false)
	if err != nil {
		return fmt.Errorf("startup refresh: %w", err)
	}
	if res == nil {
		slog.InfoContext(ctx, "Dataset already up to date on startup")
		return nil
	}

	slog.InfoContext(ctx, "Startup refresh completed",
		"changed_files", res.Files,
		"records", res.Records)
	return nil
}

// Rescan checks the data directory for new or changed files. It is the
// backup mechanism for lost ingest messages and is safe to call often:
// an unchanged directory is a no-op.
func (w *IngestWorker) Rescan(ctx context.Context) error {
	_, err := w.service.Refresh(ctx, false)
	return err
}
