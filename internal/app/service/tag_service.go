package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/verdemarket/engage-backend/internal/app/model"
	"github.com/verdemarket/engage-backend/internal/app/repository"
	"github.com/verdemarket/engage-backend/pkg/logger"
	"github.com/verdemarket/engage-backend/pkg/redis"
	"github.com/verdemarket/engage-backend/pkg/util"
	"gorm.io/gorm"
)

var (
	ErrTagNotFound      = errors.New("tag not found")
	ErrTagAlreadyExists = errors.New("tag already exists")
)

const trendingCacheKey = "tags:trending"

type CreateTagInput struct {
	Name      string
	Category  model.TagCategory
	Type      model.TagType
	Color     string
	Icon      string
	Priority  int
	AutoRules model.TagRules
}

type TagService interface {
	CreateTag(input CreateTagInput) (*model.Tag, error)
	GetTag(id string) (*model.Tag, error)
	ListTags(category model.TagCategory) ([]model.Tag, error)
	TagEntity(entityID, entityType string, tagIDs []string, actor string) (*model.TaggedEntity, error)
	UntagEntity(entityID, entityType string, tagIDs []string) (*model.TaggedEntity, error)
	GetEntityTags(entityID, entityType string) ([]model.Tag, error)
	GetTaggedEntity(entityID, entityType string) (*model.TaggedEntity, error)
	SuggestTags(entityType model.TagCategory, context map[string]interface{}) ([]model.Tag, error)
	GetTrendingTags(category model.TagCategory, limit int) ([]model.Tag, error)
	FindRelatedTags(tagID string, limit int) ([]model.Tag, error)
	RecomputeTrending() error
}

type tagService struct {
	tagRepo repository.TagRepository
}

func NewTagService(tagRepo repository.TagRepository) TagService {
	return &tagService{tagRepo: tagRepo}
}

// CreateTag registers a tag. Slugs must be unique; the id is derived from
// the slug so the same name always resolves to the same tag.
func (s *tagService) CreateTag(input CreateTagInput) (*model.Tag, error) {
	slug := util.Slugify(input.Name)
	if slug == "" {
		return nil, fmt.Errorf("tag name %q produces an empty slug", input.Name)
	}

	if _, err := s.tagRepo.FindBySlug(slug); err == nil {
		logger.Warn("Duplicate tag slug rejected", map[string]interface{}{
			"slug": slug,
		})
		return nil, ErrTagAlreadyExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	tag := &model.Tag{
		ID:        util.TagIDFromSlug(slug),
		Slug:      slug,
		Name:      input.Name,
		Category:  input.Category,
		Type:      input.Type,
		Color:     input.Color,
		Icon:      input.Icon,
		Priority:  input.Priority,
		AutoRules: input.AutoRules,
	}
	if tag.Type == "" {
		tag.Type = model.TagTypeAttribute
	}

	if err := s.tagRepo.Create(tag); err != nil {
		return nil, err
	}

	logger.Info("Tag created", map[string]interface{}{
		"tag_id":   tag.ID,
		"category": tag.Category,
	})
	return tag, nil
}

func (s *tagService) GetTag(id string) (*model.Tag, error) {
	tag, err := s.tagRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTagNotFound
		}
		return nil, err
	}
	return tag, nil
}

func (s *tagService) ListTags(category model.TagCategory) ([]model.Tag, error) {
	return s.tagRepo.FindByCategory(category)
}

// TagEntity unions the given tags into the entity's tag set. Counts move by
// exactly one per newly created link; re-tagging with an already-linked tag
// is a no-op, so counts cannot inflate.
func (s *tagService) TagEntity(entityID, entityType string, tagIDs []string, actor string) (*model.TaggedEntity, error) {
	for _, tagID := range tagIDs {
		if _, err := s.tagRepo.FindByID(tagID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				logger.Warn("Skipping unknown tag on tag call", map[string]interface{}{
					"tag_id":    tagID,
					"entity_id": entityID,
				})
				continue
			}
			return nil, err
		}

		linked, err := s.tagRepo.LinkEntity(entityID, entityType, tagID, actor)
		if err != nil {
			return nil, err
		}
		if linked {
			if err := s.tagRepo.IncrementCount(tagID, 1); err != nil {
				return nil, err
			}
		}
	}

	return s.GetTaggedEntity(entityID, entityType)
}

// UntagEntity removes tags from the set, decrementing counts with a floor
// at zero. Removing a tag that was never linked changes nothing.
func (s *tagService) UntagEntity(entityID, entityType string, tagIDs []string) (*model.TaggedEntity, error) {
	for _, tagID := range tagIDs {
		unlinked, err := s.tagRepo.UnlinkEntity(entityID, entityType, tagID)
		if err != nil {
			return nil, err
		}
		if unlinked {
			if err := s.tagRepo.IncrementCount(tagID, -1); err != nil {
				return nil, err
			}
		}
	}

	return s.GetTaggedEntity(entityID, entityType)
}

func (s *tagService) GetEntityTags(entityID, entityType string) ([]model.Tag, error) {
	ids, err := s.tagRepo.FindEntityTagIDs(entityID, entityType)
	if err != nil {
		return nil, err
	}
	return s.tagRepo.FindByIDs(ids)
}

// GetTaggedEntity aggregates the link rows into the entity view. An entity
// with no links yields an empty tag set, not an error.
func (s *tagService) GetTaggedEntity(entityID, entityType string) (*model.TaggedEntity, error) {
	links, err := s.tagRepo.FindEntityLinks(entityID, entityType)
	if err != nil {
		return nil, err
	}

	entity := &model.TaggedEntity{
		EntityID:   entityID,
		EntityType: entityType,
		TagIDs:     make([]string, 0, len(links)),
	}
	for _, link := range links {
		entity.TagIDs = append(entity.TagIDs, link.TagID)
		if link.CreatedAt.After(entity.LastTagged) {
			entity.LastTagged = link.CreatedAt
			entity.TaggedBy = link.TaggedBy
		}
	}
	return entity, nil
}

// SuggestTags evaluates every tag's auto-apply rules against the context
// record. A tag matches when it has rules and all of them hold. Results are
// ordered by explicit priority, then usage count.
func (s *tagService) SuggestTags(entityType model.TagCategory, context map[string]interface{}) ([]model.Tag, error) {
	tags, err := s.tagRepo.FindByCategory(entityType)
	if err != nil {
		return nil, err
	}

	matched := make([]model.Tag, 0)
	for _, tag := range tags {
		if len(tag.AutoRules) == 0 {
			continue
		}
		if rulesMatch(tag.AutoRules, context) {
			matched = append(matched, tag)
		}
	}

	// priority first, usage count as tiebreaker
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Priority != matched[j].Priority {
			return matched[i].Priority > matched[j].Priority
		}
		return matched[i].Count > matched[j].Count
	})
	return matched, nil
}

func rulesMatch(rules model.TagRules, context map[string]interface{}) bool {
	for _, rule := range rules {
		if !ruleMatches(rule, context) {
			return false
		}
	}
	return true
}

// ruleMatches evaluates one rule. Unknown operators and missing fields are
// non-matching, never errors.
func ruleMatches(rule model.TagRule, context map[string]interface{}) bool {
	value, ok := lookupField(context, rule.Field)
	if !ok {
		return false
	}

	switch rule.Operator {
	case model.RuleOpEquals:
		return fmt.Sprintf("%v", value) == fmt.Sprintf("%v", rule.Value)
	case model.RuleOpContains:
		return containsValue(value, rule.Value)
	case model.RuleOpGreater:
		a, aok := toFloat(value)
		b, bok := toFloat(rule.Value)
		return aok && bok && a > b
	case model.RuleOpLess:
		a, aok := toFloat(value)
		b, bok := toFloat(rule.Value)
		return aok && bok && a < b
	case model.RuleOpRegex:
		pattern, ok := rule.Value.(string)
		if !ok {
			return false
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(fmt.Sprintf("%v", value))
	default:
		return false
	}
}

// lookupField resolves a possibly dotted field path against nested maps,
// e.g. "preferences.language".
func lookupField(context map[string]interface{}, field string) (interface{}, bool) {
	parts := strings.Split(field, ".")
	var current interface{} = context
	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func containsValue(haystack, needle interface{}) bool {
	target := fmt.Sprintf("%v", needle)
	switch h := haystack.(type) {
	case string:
		return strings.Contains(h, target)
	case []string:
		for _, item := range h {
			if item == target {
				return true
			}
		}
	case []interface{}:
		for _, item := range h {
			if fmt.Sprintf("%v", item) == target {
				return true
			}
		}
	}
	return false
}

// GetTrendingTags is a read-only ranking query. A fresh store with no
// analytics yields an empty list.
func (s *tagService) GetTrendingTags(category model.TagCategory, limit int) ([]model.Tag, error) {
	if limit <= 0 {
		limit = 10
	}

	if category == "" {
		var cached []model.Tag
		if hit, err := redis.GetJSON(context.Background(), trendingCacheKey, &cached); err == nil && hit {
			if len(cached) > limit {
				cached = cached[:limit]
			}
			return cached, nil
		}
	}

	return s.tagRepo.FindTrending(category, limit)
}

// FindRelatedTags returns tags that co-occur with the given tag across
// tagged entities. An unknown tag yields an empty list, not an error.
func (s *tagService) FindRelatedTags(tagID string, limit int) ([]model.Tag, error) {
	if limit <= 0 {
		limit = 5
	}
	if _, err := s.tagRepo.FindByID(tagID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []model.Tag{}, nil
		}
		return nil, err
	}
	return s.tagRepo.CoOccurring(tagID, limit)
}

// RecomputeTrending refreshes every tag's trending score from link recency
// and snapshots the top ranking into the cache. Run from the scheduler.
func (s *tagService) RecomputeTrending() error {
	since := time.Now().AddDate(0, 0, -7)
	counts, err := s.tagRepo.RecentLinkCounts(since)
	if err != nil {
		return err
	}

	recent := make(map[string]int64, len(counts))
	for _, c := range counts {
		recent[c.TagID] = c.Links
	}

	tags, err := s.tagRepo.FindAll()
	if err != nil {
		return err
	}

	for _, tag := range tags {
		score := 2*float64(recent[tag.ID]) + 0.1*float64(tag.Count)
		if score != tag.TrendingScore {
			if err := s.tagRepo.UpdateTrendingScore(tag.ID, score); err != nil {
				return err
			}
		}

		related, err := s.tagRepo.CoOccurring(tag.ID, 5)
		if err != nil {
			return err
		}
		ids := make(model.StringSlice, 0, len(related))
		for _, r := range related {
			ids = append(ids, r.ID)
		}
		if err := s.tagRepo.UpdateRelatedTags(tag.ID, ids); err != nil {
			return err
		}
	}

	top, err := s.tagRepo.FindTrending("", 50)
	if err != nil {
		return err
	}
	if err := redis.CacheJSON(context.Background(), trendingCacheKey, top, time.Hour); err != nil {
		logger.Warn("Failed to cache trending tags", map[string]interface{}{
			"error": err.Error(),
		})
	}

	logger.Info("Trending scores recomputed", map[string]interface{}{
		"tag_count": len(tags),
	})
	return nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case string:
		var f float64
		if _, err := fmt.Sscanf(n, "%f", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}
