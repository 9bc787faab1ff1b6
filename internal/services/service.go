package services

import (
	"context"
	"time"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/config"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/events"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/metrics"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/repository"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/storage"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/utils"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/worker"
)

// Deps is what every service shares.
type Deps struct {
	Store   *repository.Store
	Storage storage.Storage
	Events  events.Publisher
	Queue   *worker.Queue
	Metrics *metrics.Metrics
	Config  *config.Config
	Logger  *utils.Logger
}

// Services bundles the services used by the HTTP layer.
type Services struct {
	Settings   SettingsService
	Projects   ProjectService
	Indicators IndicatorService
	Records    RecordService
	Files      FileService
	OCR        OCRService
	Analysis   AnalysisService
	Chat       ChatService
	Trends     TrendService
	System     SystemService
}

func New(d *Deps) *Services {
	return &Services{
		Settings:   NewSettingsService(d),
		Projects:   NewProjectService(d),
		Indicators: NewIndicatorService(d),
		Records:    NewRecordService(d),
		Files:      NewFileService(d),
		OCR:        NewOCRService(d),
		Analysis:   NewAnalysisService(d),
		Chat:       NewChatService(d),
		Trends:     NewTrendService(d),
		System:     NewSystemService(d),
	}
}

func (d *Deps) publish(ctx context.Context, name string, payload any) {
	if d.Events != nil {
		d.Events.Publish(ctx, events.New(name, payload))
	}
}

// background detaches ctx from cancellation for writes that must land even
// when the job is being cancelled.
func background(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// sleep waits for d or until ctx ends, reporting whether the full wait
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// removeObjects deletes stored files after their rows are gone; failures
// only leave orphans behind, so they are logged.
func (d *Deps) removeObjects(ctx context.Context, paths []string) {
	for _, p := range paths {
		if err := d.Storage.Delete(ctx, p); err != nil {
			d.Logger.Warn("Failed to delete stored file", "path", p, "error", err)
		}
	}
}
