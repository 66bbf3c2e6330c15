package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/verdemarket/engage-backend/internal/app/model"
	"github.com/verdemarket/engage-backend/internal/app/repository"
	"github.com/verdemarket/engage-backend/pkg/logger"
	"github.com/verdemarket/engage-backend/pkg/util"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

var (
	ErrCustomerNotFound      = errors.New("customer not found")
	ErrSegmentNotFound       = errors.New("segment not found")
	ErrSegmentAlreadyExists  = errors.New("segment already exists")
	ErrConsentAlreadyRevoked = errors.New("consent already revoked")
)

const segmentActor = "segmentation"

type CreateCustomerInput struct {
	Name        string
	Email       string
	Phone       string
	Membership  model.MembershipClass
	Preferences model.JSONMap
}

type UpdateCustomerInput struct {
	Name            *string
	Email           *string
	Phone           *string
	Membership      *model.MembershipClass
	Preferences     model.JSONMap
	NPS             *int
	FavoriteVendors model.StringSlice
}

type TrackInteractionInput struct {
	CustomerID string
	ProductID  string
	Type       model.InteractionType
	SessionID  string
	Quantity   int
	Amount     float64
}

type TrackTouchpointInput struct {
	CustomerID string
	Channel    model.TouchpointChannel
	Action     string
	Outcome    model.TouchpointOutcome
	Payload    model.JSONMap
}

type CreateSegmentInput struct {
	Name        string
	Description string
	Criteria    model.SegmentCriteria
	Campaigns   model.StringSlice
}

// AnalyticsSummary is the cross-customer engagement snapshot served by the
// analytics endpoint and the spreadsheet export.
type AnalyticsSummary struct {
	Period              string                         `json:"period"`
	WindowStart         *time.Time                     `json:"window_start,omitempty"`
	TotalCustomers      int                            `json:"total_customers"`
	MembershipBreakdown map[model.MembershipClass]int  `json:"membership_breakdown"`
	TierBreakdown       map[model.LoyaltyTier]int      `json:"tier_breakdown"`
	ChurnBreakdown      map[model.ChurnRisk]int        `json:"churn_breakdown"`
	StageBreakdown      map[model.JourneyStage]int     `json:"stage_breakdown"`
	AvgEngagementScore  float64                        `json:"avg_engagement_score"`
	AvgLifetimeValue    float64                        `json:"avg_lifetime_value"`
	TotalInteractions   int                            `json:"total_interactions"`
	TotalTouchpoints    int                            `json:"total_touchpoints"`
	SegmentSizes        map[string]int64               `json:"segment_sizes"`
	GeneratedAt         time.Time                      `json:"generated_at"`
}

type CustomerService interface {
	CreateCustomer(input CreateCustomerInput) (*model.Customer, error)
	GetCustomer(id string) (*model.Customer, error)
	ListCustomers() ([]model.Customer, error)
	UpdateCustomer(id string, input UpdateCustomerInput) (*model.Customer, error)

	TrackInteraction(input TrackInteractionInput) (*model.ProductInteraction, error)
	TrackTouchpoint(input TrackTouchpointInput) (*model.CustomerJourney, error)
	GetJourney(customerID string) (*model.CustomerJourney, error)
	RecordPurchase(customerID string, amount float64, at time.Time) (*model.Customer, error)

	CreateSegment(input CreateSegmentInput) (*model.CustomerSegment, error)
	ListSegments() ([]model.CustomerSegment, error)
	GetSegment(id string) (*model.CustomerSegment, error)
	GetSegmentMembers(id string) ([]model.Customer, error)
	EvaluateSegments() error

	IssueDigitalID(ctx context.Context, customerID string) (*model.Customer, error)
	RevokeConsent(customerID string) (*model.Customer, error)

	GetAnalytics(period string, start *time.Time) (*AnalyticsSummary, error)
	ExportAnalyticsXLSX() ([]byte, error)
}

type customerService struct {
	customerRepo repository.CustomerRepository
	segmentRepo  repository.SegmentRepository
	journeyRepo  repository.JourneyRepository
	tagRepo      repository.TagRepository
	tagService   TagService
	qrService    QRService
	scoring      model.ScoringConfig
}

func NewCustomerService(
	customerRepo repository.CustomerRepository,
	segmentRepo repository.SegmentRepository,
	journeyRepo repository.JourneyRepository,
	tagRepo repository.TagRepository,
	tagService TagService,
	qrService QRService,
	scoring model.ScoringConfig,
) CustomerService {
	return &customerService{
		customerRepo: customerRepo,
		segmentRepo:  segmentRepo,
		journeyRepo:  journeyRepo,
		tagRepo:      tagRepo,
		tagService:   tagService,
		qrService:    qrService,
		scoring:      scoring,
	}
}

func (s *customerService) CreateCustomer(input CreateCustomerInput) (*model.Customer, error) {
	now := time.Now()
	customer := &model.Customer{
		ID:           "cust_" + uuid.New().String(),
		Name:         input.Name,
		Email:        input.Email,
		Phone:        input.Phone,
		Membership:   input.Membership,
		JoinedAt:     now,
		LastActive:   now,
		Preferences:  input.Preferences,
		LoyaltyTier:  model.TierBronze,
		ChurnRisk:    model.ChurnHigh,
		ConsentGiven: true,
	}
	if customer.Membership == "" {
		customer.Membership = model.MembershipRegistered
	}
	if customer.Preferences == nil {
		customer.Preferences = model.JSONMap{}
	}

	if err := s.customerRepo.Create(customer); err != nil {
		return nil, err
	}

	if err := s.evaluateCustomerSegments(customer); err != nil {
		logger.Warn("Segment evaluation failed for new customer", map[string]interface{}{
			"customer_id": customer.ID,
			"error":       err.Error(),
		})
	}

	logger.Info("Customer created", map[string]interface{}{
		"customer_id": customer.ID,
		"membership":  customer.Membership,
	})
	return customer, nil
}

func (s *customerService) GetCustomer(id string) (*model.Customer, error) {
	customer, err := s.customerRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return customer, nil
}

func (s *customerService) ListCustomers() ([]model.Customer, error) {
	return s.customerRepo.FindAll()
}

// UpdateCustomer applies the provided profile fields and re-evaluates
// segment membership, since criteria can reference any profile field.
func (s *customerService) UpdateCustomer(id string, input UpdateCustomerInput) (*model.Customer, error) {
	customer, err := s.GetCustomer(id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		customer.Name = *input.Name
	}
	if input.Email != nil {
		customer.Email = *input.Email
	}
	if input.Phone != nil {
		customer.Phone = *input.Phone
	}
	if input.Membership != nil {
		customer.Membership = *input.Membership
	}
	if input.Preferences != nil {
		customer.Preferences = input.Preferences
	}
	if input.NPS != nil {
		customer.NPS = *input.NPS
	}
	if input.FavoriteVendors != nil {
		customer.FavoriteVendors = input.FavoriteVendors
	}
	customer.LastActive = time.Now()

	if err := s.customerRepo.Save(customer); err != nil {
		return nil, err
	}

	if err := s.evaluateCustomerSegments(customer); err != nil {
		logger.Warn("Segment re-evaluation failed", map[string]interface{}{
			"customer_id": customer.ID,
			"error":       err.Error(),
		})
	}
	return customer, nil
}

// TrackInteraction appends one entry to the interaction log. The customer id
// is explicit; the session id is audit metadata only. Customers who revoked
// consent are not tracked.
func (s *customerService) TrackInteraction(input TrackInteractionInput) (*model.ProductInteraction, error) {
	customer, err := s.GetCustomer(input.CustomerID)
	if err != nil {
		return nil, err
	}
	if !customer.ConsentGiven {
		logger.Info("Interaction dropped for revoked consent", map[string]interface{}{
			"customer_id": customer.ID,
		})
		return nil, nil
	}

	interaction := &model.ProductInteraction{
		CustomerID: input.CustomerID,
		ProductID:  input.ProductID,
		Type:       input.Type,
		SessionID:  input.SessionID,
		Quantity:   input.Quantity,
		Amount:     input.Amount,
	}
	if interaction.Quantity <= 0 {
		interaction.Quantity = 1
	}

	if err := s.customerRepo.CreateInteraction(interaction); err != nil {
		return nil, err
	}
	if err := s.customerRepo.Touch(customer.ID, time.Now()); err != nil {
		return nil, err
	}
	return interaction, nil
}

// TrackTouchpoint appends a journey touchpoint and recomputes the derived
// journey state: engagement score over the recent window, stage and the
// predicted next action.
func (s *customerService) TrackTouchpoint(input TrackTouchpointInput) (*model.CustomerJourney, error) {
	customer, err := s.GetCustomer(input.CustomerID)
	if err != nil {
		return nil, err
	}
	if !customer.ConsentGiven {
		return s.journeyRepo.GetOrCreate(customer.ID)
	}

	touchpoint := &model.Touchpoint{
		CustomerID: input.CustomerID,
		Channel:    input.Channel,
		Action:     input.Action,
		Outcome:    input.Outcome,
		Payload:    input.Payload,
	}
	if touchpoint.Outcome == "" {
		touchpoint.Outcome = model.OutcomeNeutral
	}

	if err := s.journeyRepo.AppendTouchpoint(touchpoint); err != nil {
		return nil, err
	}
	if err := s.customerRepo.Touch(customer.ID, time.Now()); err != nil {
		return nil, err
	}

	return s.refreshJourney(customer)
}

func (s *customerService) GetJourney(customerID string) (*model.CustomerJourney, error) {
	if _, err := s.GetCustomer(customerID); err != nil {
		return nil, err
	}
	return s.journeyRepo.GetOrCreate(customerID)
}

// refreshJourney recomputes the journey row from the touchpoint log and the
// customer's order history.
func (s *customerService) refreshJourney(customer *model.Customer) (*model.CustomerJourney, error) {
	journey, err := s.journeyRepo.GetOrCreate(customer.ID)
	if err != nil {
		return nil, err
	}

	window := time.Now().AddDate(0, 0, -s.scoring.EngagementWindowDays)
	recent, err := s.journeyRepo.FindTouchpoints(customer.ID, window)
	if err != nil {
		return nil, err
	}
	all, err := s.journeyRepo.FindTouchpoints(customer.ID, time.Time{})
	if err != nil {
		return nil, err
	}

	score := 0
	for _, tp := range recent {
		score += s.scoring.EngagementWeights[tp.Channel]
		switch tp.Outcome {
		case model.OutcomePositive:
			score += s.scoring.PositiveOutcomeBonus
		case model.OutcomeNegative:
			score += s.scoring.NegativeOutcomeDelta
		}
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	journey.EngagementScore = score
	journey.TouchpointCount = len(all)
	journey.CurrentStage = s.deriveStage(customer)
	journey.PredictedNextAction = s.predictNextAction(customer.ID)

	if err := s.journeyRepo.SaveJourney(journey); err != nil {
		return nil, err
	}
	return journey, nil
}

// deriveStage maps order history onto the journey stage. A journey starts in
// awareness when created; any recorded touchpoint means the customer is at
// least considering.
func (s *customerService) deriveStage(customer *model.Customer) model.JourneyStage {
	switch {
	case customer.TotalOrders == 0:
		return model.StageConsideration
	case customer.TotalOrders == 1:
		return model.StagePurchase
	case customer.TotalOrders >= s.scoring.AdvocacyMinOrders && customer.NPS >= s.scoring.AdvocacyMinNPS:
		return model.StageAdvocacy
	default:
		return model.StageRetention
	}
}

func (s *customerService) predictNextAction(customerID string) string {
	last, err := s.journeyRepo.LastTouchpoint(customerID)
	if err != nil {
		return "welcome_message"
	}
	switch last.Channel {
	case model.ChannelPurchase:
		return "request_review"
	case model.ChannelQR:
		return "complete_purchase"
	case model.ChannelSupport:
		return "follow_up"
	case model.ChannelStore:
		return "loyalty_reminder"
	case model.ChannelEmail:
		return "website_visit"
	default:
		return "cart_nudge"
	}
}

// RecordPurchase folds a completed purchase into the customer's aggregates
// and refreshes every derived metric in the same pass.
func (s *customerService) RecordPurchase(customerID string, amount float64, at time.Time) (*model.Customer, error) {
	customer, err := s.GetCustomer(customerID)
	if err != nil {
		return nil, err
	}
	if !customer.ConsentGiven {
		return customer, nil
	}

	customer.TotalOrders++
	customer.TotalSpent += amount
	customer.AvgOrderValue = customer.TotalSpent / float64(customer.TotalOrders)
	customer.LoyaltyPoints += int(amount)
	customer.LastOrderAt = &at
	customer.LastActive = at

	s.refreshMetrics(customer, at)

	if err := s.customerRepo.Save(customer); err != nil {
		return nil, err
	}

	if err := s.evaluateCustomerSegments(customer); err != nil {
		logger.Warn("Segment re-evaluation failed after purchase", map[string]interface{}{
			"customer_id": customer.ID,
			"error":       err.Error(),
		})
	}
	return customer, nil
}

// refreshMetrics recomputes lifetime value, churn risk and loyalty tier.
func (s *customerService) refreshMetrics(customer *model.Customer, now time.Time) {
	months := now.Sub(customer.JoinedAt).Hours() / (24 * 30)
	if months < 1 {
		months = 1
	}
	ordersPerMonth := float64(customer.TotalOrders) / months
	customer.LifetimeValue = customer.AvgOrderValue * ordersPerMonth * float64(s.scoring.CLVHorizonMonths)

	if customer.LastOrderAt == nil {
		customer.ChurnRisk = model.ChurnHigh
	} else {
		days := int(now.Sub(*customer.LastOrderAt).Hours() / 24)
		switch {
		case days < s.scoring.ChurnLowMaxDays:
			customer.ChurnRisk = model.ChurnLow
		case days < s.scoring.ChurnMediumMaxDays:
			customer.ChurnRisk = model.ChurnMedium
		default:
			customer.ChurnRisk = model.ChurnHigh
		}
	}

	tierScore := customer.TotalSpent*s.scoring.TierSpentWeight +
		float64(customer.TotalOrders)*s.scoring.TierOrderWeight +
		float64(customer.LoyaltyPoints)
	switch {
	case tierScore >= s.scoring.TierPlatinumMin:
		customer.LoyaltyTier = model.TierPlatinum
	case tierScore >= s.scoring.TierGoldMinScore:
		customer.LoyaltyTier = model.TierGold
	case tierScore >= s.scoring.TierSilverMinScore:
		customer.LoyaltyTier = model.TierSilver
	default:
		customer.LoyaltyTier = model.TierBronze
	}
}

// CreateSegment registers a cohort. Membership is materialized as a customer
// tag, so the segment gets a backing tag on creation and every existing
// customer is evaluated immediately.
func (s *customerService) CreateSegment(input CreateSegmentInput) (*model.CustomerSegment, error) {
	if _, err := s.segmentRepo.FindByName(input.Name); err == nil {
		return nil, ErrSegmentAlreadyExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	tag, err := s.tagService.CreateTag(CreateTagInput{
		Name:     "Segment: " + input.Name,
		Category: model.TagCategoryCustomer,
		Type:     model.TagTypeAnalytics,
	})
	if err != nil {
		if !errors.Is(err, ErrTagAlreadyExists) {
			return nil, err
		}
		tag, err = s.tagService.GetTag(util.TagIDFromSlug(util.Slugify("Segment: " + input.Name)))
		if err != nil {
			return nil, err
		}
	}

	segment := &model.CustomerSegment{
		ID:          "seg_" + uuid.New().String(),
		Name:        input.Name,
		Description: input.Description,
		Criteria:    input.Criteria,
		TagID:       tag.ID,
		Campaigns:   input.Campaigns,
	}
	if err := s.segmentRepo.Create(segment); err != nil {
		return nil, err
	}

	if err := s.evaluateSegment(segment); err != nil {
		return nil, err
	}

	created, err := s.segmentRepo.FindByID(segment.ID)
	if err != nil {
		return nil, err
	}
	logger.Info("Segment created", map[string]interface{}{
		"segment_id":   created.ID,
		"member_count": created.MemberCount,
	})
	return created, nil
}

func (s *customerService) ListSegments() ([]model.CustomerSegment, error) {
	return s.segmentRepo.FindAll()
}

func (s *customerService) GetSegment(id string) (*model.CustomerSegment, error) {
	segment, err := s.segmentRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSegmentNotFound
		}
		return nil, err
	}
	return segment, nil
}

func (s *customerService) GetSegmentMembers(id string) ([]model.Customer, error) {
	segment, err := s.GetSegment(id)
	if err != nil {
		return nil, err
	}

	links, err := s.tagRepo.FindLinksByTag(segment.TagID)
	if err != nil {
		return nil, err
	}

	members := make([]model.Customer, 0, len(links))
	for _, link := range links {
		if link.EntityType != "customer" {
			continue
		}
		customer, err := s.customerRepo.FindByID(link.EntityID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		members = append(members, *customer)
	}
	return members, nil
}

// EvaluateSegments re-runs every segment over every customer. Run from the
// scheduler; single-customer changes are evaluated inline on write paths.
func (s *customerService) EvaluateSegments() error {
	segments, err := s.segmentRepo.FindAll()
	if err != nil {
		return err
	}
	for i := range segments {
		if err := s.evaluateSegment(&segments[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *customerService) evaluateSegment(segment *model.CustomerSegment) error {
	customers, err := s.customerRepo.FindAll()
	if err != nil {
		return err
	}
	for i := range customers {
		if err := s.applySegmentMembership(segment, &customers[i]); err != nil {
			return err
		}
	}
	count, err := s.tagRepo.CountLinks(segment.TagID)
	if err != nil {
		return err
	}
	return s.segmentRepo.UpdateMemberCount(segment.ID, count)
}

func (s *customerService) evaluateCustomerSegments(customer *model.Customer) error {
	segments, err := s.segmentRepo.FindAll()
	if err != nil {
		return err
	}
	for i := range segments {
		segment := &segments[i]
		if err := s.applySegmentMembership(segment, customer); err != nil {
			return err
		}
		count, err := s.tagRepo.CountLinks(segment.TagID)
		if err != nil {
			return err
		}
		if err := s.segmentRepo.UpdateMemberCount(segment.ID, count); err != nil {
			return err
		}
	}
	return nil
}

func (s *customerService) applySegmentMembership(segment *model.CustomerSegment, customer *model.Customer) error {
	qualifies := customerMatchesCriteria(customer, segment.Criteria)
	if qualifies {
		_, err := s.tagService.TagEntity(customer.ID, "customer", []string{segment.TagID}, segmentActor)
		return err
	}
	_, err := s.tagService.UntagEntity(customer.ID, "customer", []string{segment.TagID})
	return err
}

// customerMatchesCriteria evaluates the conjunction of criteria against the
// customer's JSON projection, so dotted paths address the same field names
// the API exposes.
func customerMatchesCriteria(customer *model.Customer, criteria model.SegmentCriteria) bool {
	if len(criteria) == 0 {
		return false
	}
	record := customerRecord(customer)
	for _, criterion := range criteria {
		if !criterionMatches(criterion, record) {
			return false
		}
	}
	return true
}

func customerRecord(customer *model.Customer) map[string]interface{} {
	data, err := json.Marshal(customer)
	if err != nil {
		return map[string]interface{}{}
	}
	var record map[string]interface{}
	if err := json.Unmarshal(data, &record); err != nil {
		return map[string]interface{}{}
	}
	return record
}

func criterionMatches(criterion model.SegmentCriterion, record map[string]interface{}) bool {
	value, ok := lookupField(record, criterion.Field)
	if !ok {
		return false
	}

	switch criterion.Operator {
	case model.CriteriaEquals:
		return fmt.Sprintf("%v", value) == fmt.Sprintf("%v", criterion.Value)
	case model.CriteriaContains:
		return containsValue(value, criterion.Value)
	case model.CriteriaGreater:
		a, aok := toFloat(value)
		b, bok := toFloat(criterion.Value)
		return aok && bok && a > b
	case model.CriteriaLess:
		a, aok := toFloat(value)
		b, bok := toFloat(criterion.Value)
		return aok && bok && a < b
	case model.CriteriaBetween:
		bounds, ok := criterion.Value.([]interface{})
		if !ok || len(bounds) != 2 {
			return false
		}
		v, vok := toFloat(value)
		lo, look := toFloat(bounds[0])
		hi, hiok := toFloat(bounds[1])
		return vok && look && hiok && v >= lo && v <= hi
	case model.CriteriaIn:
		options, ok := criterion.Value.([]interface{})
		if !ok {
			return false
		}
		target := fmt.Sprintf("%v", value)
		for _, option := range options {
			if fmt.Sprintf("%v", option) == target {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// IssueDigitalID issues (or re-issues) the customer's digital membership
// card: a card number plus a membership QR code bound to the customer.
func (s *customerService) IssueDigitalID(ctx context.Context, customerID string) (*model.Customer, error) {
	customer, err := s.GetCustomer(customerID)
	if err != nil {
		return nil, err
	}

	code, err := s.qrService.GenerateQRCode(ctx, GenerateQRInput{
		Type: model.QRTypeMembership,
		Payload: model.JSONMap{
			"customer_id": customer.ID,
			"membership":  string(customer.Membership),
		},
	})
	if err != nil {
		return nil, err
	}

	customer.DigitalID = model.JSONMap{
		"card_number": util.GenerateCardNumber(),
		"qr_code_id":  code.ID,
		"short_code":  code.ShortCode,
		"issued_at":   time.Now().Format(time.RFC3339),
	}
	if err := s.customerRepo.Save(customer); err != nil {
		return nil, err
	}

	logger.Info("Digital ID issued", map[string]interface{}{
		"customer_id": customer.ID,
		"qr_id":       code.ID,
	})
	return customer, nil
}

// RevokeConsent marks the profile as revoked. The record stays for order
// history integrity but tracking calls become no-ops from this point on.
func (s *customerService) RevokeConsent(customerID string) (*model.Customer, error) {
	customer, err := s.GetCustomer(customerID)
	if err != nil {
		return nil, err
	}
	if !customer.ConsentGiven {
		return nil, ErrConsentAlreadyRevoked
	}

	now := time.Now()
	customer.ConsentGiven = false
	customer.ConsentRevoked = &now
	if err := s.customerRepo.Save(customer); err != nil {
		return nil, err
	}

	logger.Info("Customer consent revoked", map[string]interface{}{
		"customer_id": customer.ID,
	})
	return customer, nil
}

// analyticsWindow maps a report period onto a concrete time range. An
// unknown or empty period means the report is unbounded.
func analyticsWindow(period string, start *time.Time) (time.Time, time.Time, bool) {
	var span time.Duration
	switch period {
	case "day":
		span = 24 * time.Hour
	case "week":
		span = 7 * 24 * time.Hour
	case "month":
		span = 30 * 24 * time.Hour
	default:
		return time.Time{}, time.Time{}, false
	}
	if start != nil {
		return *start, start.Add(span), true
	}
	now := time.Now()
	return now.Add(-span), now, true
}

func (s *customerService) GetAnalytics(period string, start *time.Time) (*AnalyticsSummary, error) {
	customers, err := s.customerRepo.FindAll()
	if err != nil {
		return nil, err
	}
	journeys, err := s.journeyRepo.FindAllJourneys()
	if err != nil {
		return nil, err
	}
	interactions, err := s.customerRepo.FindAllInteractions()
	if err != nil {
		return nil, err
	}
	touchpoints, err := s.journeyRepo.FindAllTouchpoints()
	if err != nil {
		return nil, err
	}
	segments, err := s.segmentRepo.FindAll()
	if err != nil {
		return nil, err
	}

	from, to, bounded := analyticsWindow(period, start)
	if !bounded {
		period = "all"
	}
	interactionCount := len(interactions)
	touchpointCount := len(touchpoints)
	if bounded {
		interactionCount = 0
		for _, in := range interactions {
			if !in.CreatedAt.Before(from) && in.CreatedAt.Before(to) {
				interactionCount++
			}
		}
		touchpointCount = 0
		for _, tp := range touchpoints {
			if !tp.CreatedAt.Before(from) && tp.CreatedAt.Before(to) {
				touchpointCount++
			}
		}
	}

	summary := &AnalyticsSummary{
		Period:              period,
		TotalCustomers:      len(customers),
		MembershipBreakdown: map[model.MembershipClass]int{},
		TierBreakdown:       map[model.LoyaltyTier]int{},
		ChurnBreakdown:      map[model.ChurnRisk]int{},
		StageBreakdown:      map[model.JourneyStage]int{},
		TotalInteractions:   interactionCount,
		TotalTouchpoints:    touchpointCount,
		SegmentSizes:        map[string]int64{},
		GeneratedAt:         time.Now(),
	}
	if bounded {
		summary.WindowStart = &from
	}

	var totalCLV float64
	for _, c := range customers {
		summary.MembershipBreakdown[c.Membership]++
		summary.TierBreakdown[c.LoyaltyTier]++
		summary.ChurnBreakdown[c.ChurnRisk]++
		totalCLV += c.LifetimeValue
	}
	if len(customers) > 0 {
		summary.AvgLifetimeValue = totalCLV / float64(len(customers))
	}

	var totalEngagement int
	for _, j := range journeys {
		summary.StageBreakdown[j.CurrentStage]++
		totalEngagement += j.EngagementScore
	}
	if len(journeys) > 0 {
		summary.AvgEngagementScore = float64(totalEngagement) / float64(len(journeys))
	}

	for _, seg := range segments {
		summary.SegmentSizes[seg.Name] = seg.MemberCount
	}
	return summary, nil
}

// ExportAnalyticsXLSX renders the analytics snapshot as a two-sheet
// spreadsheet: the summary plus a per-customer metric listing.
func (s *customerService) ExportAnalyticsXLSX() ([]byte, error) {
	summary, err := s.GetAnalytics("", nil)
	if err != nil {
		return nil, err
	}
	customers, err := s.customerRepo.FindAll()
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Summary"
	f.SetSheetName("Sheet1", sheet)
	rows := [][]interface{}{
		{"Metric", "Value"},
		{"Total customers", summary.TotalCustomers},
		{"Total interactions", summary.TotalInteractions},
		{"Total touchpoints", summary.TotalTouchpoints},
		{"Average engagement score", summary.AvgEngagementScore},
		{"Average lifetime value", summary.AvgLifetimeValue},
		{"Generated at", summary.GeneratedAt.Format(time.RFC3339)},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, err
		}
	}

	detail := "Customers"
	if _, err := f.NewSheet(detail); err != nil {
		return nil, err
	}
	header := []interface{}{
		"ID", "Name", "Membership", "Tier", "Churn risk",
		"Total orders", "Total spent", "Avg order value", "Lifetime value", "Loyalty points",
	}
	if err := f.SetSheetRow(detail, "A1", &header); err != nil {
		return nil, err
	}
	for i, c := range customers {
		row := []interface{}{
			c.ID, c.Name, string(c.Membership), string(c.LoyaltyTier), string(c.ChurnRisk),
			c.TotalOrders, c.TotalSpent, c.AvgOrderValue, c.LifetimeValue, c.LoyaltyPoints,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(detail, cell, &row); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
