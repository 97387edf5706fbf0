package handler

import (
	"context"

	"github.com/formlink/formlink/internal/config"
	"github.com/formlink/formlink/internal/logger"
	"github.com/formlink/formlink/internal/model"
)

// SubmissionProcessor handles one form submission. Implemented by service.ResultsLinkService.
type SubmissionProcessor interface {
	Process(ctx context.Context, sub *model.Submission) (*model.Delivery, error)
}

// DeliveryReader looks up recorded deliveries. Implemented by repository.DeliveryRepository.
type DeliveryReader interface {
	GetByID(ctx context.Context, id string) (*model.Delivery, error)
	ListRecent(ctx context.Context, limit int) ([]model.Delivery, error)
}

// HealthChecker is a dependency probed by /health and /ready.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler holds all HTTP handlers
type Handler struct {
	log        *logger.Logger
	cfg        *config.Config
	resultsSvc SubmissionProcessor
	deliveries DeliveryReader
	checks     map[string]HealthChecker
}

// New creates a new Handler instance. deliveries may be nil when deliveries
// are not recorded; checks maps a dependency name to its probe.
func New(log *logger.Logger, cfg *config.Config, resultsSvc SubmissionProcessor, deliveries DeliveryReader, checks map[string]HealthChecker) *Handler {
	return &Handler{
		log:        log,
		cfg:        cfg,
		resultsSvc: resultsSvc,
		deliveries: deliveries,
		checks:     checks,
	}
}
