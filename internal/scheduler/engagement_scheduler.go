package scheduler

import (
	"github.com/robfig/cron/v3"
	"github.com/verdemarket/engage-backend/internal/app/service"
	"github.com/verdemarket/engage-backend/pkg/logger"
)

// EngagementScheduler runs the periodic maintenance jobs: expired QR sweep,
// trending recomputation and segment re-evaluation.
type EngagementScheduler struct {
	cron                *cron.Cron
	tagService          service.TagService
	qrService           service.QRService
	customerService     service.CustomerService
	orchestratorService service.OrchestratorService
}

func NewEngagementScheduler(
	tagService service.TagService,
	qrService service.QRService,
	customerService service.CustomerService,
	orchestratorService service.OrchestratorService,
) *EngagementScheduler {
	return &EngagementScheduler{
		cron:                cron.New(),
		tagService:          tagService,
		qrService:           qrService,
		customerService:     customerService,
		orchestratorService: orchestratorService,
	}
}

func (s *EngagementScheduler) Start() error {
	// sweep expired QR codes every 10 minutes
	if _, err := s.cron.AddFunc("*/10 * * * *", func() {
		if err := s.qrService.SweepExpired(); err != nil {
			logger.Error("Expired QR sweep failed", err)
		}
	}); err != nil {
		return err
	}

	// refresh tag trending scores and product rankings hourly
	if _, err := s.cron.AddFunc("0 * * * *", func() {
		if err := s.tagService.RecomputeTrending(); err != nil {
			logger.Error("Trending recomputation failed", err)
		}
		if err := s.orchestratorService.RecomputeProductScores(); err != nil {
			logger.Error("Product score recomputation failed", err)
		}
	}); err != nil {
		return err
	}

	// re-evaluate segment membership nightly at 03:00
	if _, err := s.cron.AddFunc("0 3 * * *", func() {
		logger.Info("Starting scheduled segment evaluation", nil)
		if err := s.customerService.EvaluateSegments(); err != nil {
			logger.Error("Segment evaluation failed", err)
			return
		}
		logger.Info("Scheduled segment evaluation finished", nil)
	}); err != nil {
		return err
	}

	s.cron.Start()
	logger.Info("Engagement scheduler started", nil)
	return nil
}

func (s *EngagementScheduler) Stop() {
	logger.Info("Stopping engagement scheduler...", nil)
	s.cron.Stop()
	logger.Info("Engagement scheduler stopped", nil)
}
