package service

import (
	"time"

	"github.com/verdemarket/engage-backend/internal/app/model"
	"github.com/verdemarket/engage-backend/internal/app/repository"
	"github.com/verdemarket/engage-backend/pkg/logger"
)

// Snapshot is the full engine state as one portable document.
type Snapshot struct {
	Version        string                     `json:"version"`
	ExportedAt     time.Time                  `json:"exported_at"`
	Tags           []model.Tag                `json:"tags"`
	TaggedEntities []model.EntityTag          `json:"tagged_entities"`
	QRRecords      []model.QRCode             `json:"qr_records"`
	Customers      []model.Customer           `json:"customers"`
	Segments       []model.CustomerSegment    `json:"segments"`
	Journeys       []model.CustomerJourney    `json:"journeys"`
	Touchpoints    []model.Touchpoint         `json:"touchpoints"`
	Interactions   []model.ProductInteraction `json:"interactions"`
	DataThreads    []model.ThreadEvent        `json:"data_threads"`
}

type ExportService interface {
	Export() (*Snapshot, error)
	Import(snapshot *Snapshot) error
}

type exportService struct {
	tagRepo      repository.TagRepository
	qrRepo       repository.QRRepository
	customerRepo repository.CustomerRepository
	segmentRepo  repository.SegmentRepository
	journeyRepo  repository.JourneyRepository
	threadRepo   repository.ThreadRepository
}

func NewExportService(
	tagRepo repository.TagRepository,
	qrRepo repository.QRRepository,
	customerRepo repository.CustomerRepository,
	segmentRepo repository.SegmentRepository,
	journeyRepo repository.JourneyRepository,
	threadRepo repository.ThreadRepository,
) ExportService {
	return &exportService{
		tagRepo:      tagRepo,
		qrRepo:       qrRepo,
		customerRepo: customerRepo,
		segmentRepo:  segmentRepo,
		journeyRepo:  journeyRepo,
		threadRepo:   threadRepo,
	}
}

func (s *exportService) Export() (*Snapshot, error) {
	snapshot := &Snapshot{
		Version:    "1",
		ExportedAt: time.Now(),
	}

	var err error
	if snapshot.Tags, err = s.tagRepo.FindAll(); err != nil {
		return nil, err
	}
	if snapshot.TaggedEntities, err = s.tagRepo.FindAllLinks(); err != nil {
		return nil, err
	}
	if snapshot.QRRecords, err = s.qrRepo.FindAll(); err != nil {
		return nil, err
	}
	if snapshot.Customers, err = s.customerRepo.FindAll(); err != nil {
		return nil, err
	}
	if snapshot.Segments, err = s.segmentRepo.FindAll(); err != nil {
		return nil, err
	}
	if snapshot.Journeys, err = s.journeyRepo.FindAllJourneys(); err != nil {
		return nil, err
	}
	if snapshot.Touchpoints, err = s.journeyRepo.FindAllTouchpoints(); err != nil {
		return nil, err
	}
	if snapshot.Interactions, err = s.customerRepo.FindAllInteractions(); err != nil {
		return nil, err
	}
	if snapshot.DataThreads, err = s.threadRepo.FindAll(); err != nil {
		return nil, err
	}

	logger.Info("State snapshot exported", map[string]interface{}{
		"tags":      len(snapshot.Tags),
		"customers": len(snapshot.Customers),
		"qr_codes":  len(snapshot.QRRecords),
	})
	return snapshot, nil
}

// Import restores a snapshot. Keyed records are saved in place, so importing
// over existing data overwrites matching ids; entity links re-link
// idempotently. Log rows (touchpoints, interactions, thread events) are
// appended and meant for restores into an empty store.
func (s *exportService) Import(snapshot *Snapshot) error {
	for i := range snapshot.Tags {
		if err := s.tagRepo.Save(&snapshot.Tags[i]); err != nil {
			return err
		}
	}
	for _, link := range snapshot.TaggedEntities {
		if _, err := s.tagRepo.LinkEntity(link.EntityID, link.EntityType, link.TagID, link.TaggedBy); err != nil {
			return err
		}
	}
	for i := range snapshot.QRRecords {
		record := snapshot.QRRecords[i]
		if _, err := s.qrRepo.FindByID(record.ID); err == nil {
			continue
		}
		if err := s.qrRepo.Create(&record); err != nil {
			return err
		}
	}
	for i := range snapshot.Customers {
		if err := s.customerRepo.Save(&snapshot.Customers[i]); err != nil {
			return err
		}
	}
	for i := range snapshot.Segments {
		if err := s.segmentRepo.Save(&snapshot.Segments[i]); err != nil {
			return err
		}
	}
	for i := range snapshot.Journeys {
		if err := s.journeyRepo.SaveJourney(&snapshot.Journeys[i]); err != nil {
			return err
		}
	}
	for i := range snapshot.Touchpoints {
		touchpoint := snapshot.Touchpoints[i]
		touchpoint.ID = 0
		if err := s.journeyRepo.AppendTouchpoint(&touchpoint); err != nil {
			return err
		}
	}
	for i := range snapshot.Interactions {
		interaction := snapshot.Interactions[i]
		interaction.ID = 0
		if err := s.customerRepo.CreateInteraction(&interaction); err != nil {
			return err
		}
	}
	for i := range snapshot.DataThreads {
		event := snapshot.DataThreads[i]
		event.ID = 0
		if err := s.threadRepo.Append(&event); err != nil {
			return err
		}
	}

	logger.Info("State snapshot imported", map[string]interface{}{
		"tags":      len(snapshot.Tags),
		"customers": len(snapshot.Customers),
	})
	return nil
}
