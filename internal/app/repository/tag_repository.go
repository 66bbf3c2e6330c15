package repository

import (
	"time"

	"github.com/verdemarket/engage-backend/internal/app/model"
	"github.com/verdemarket/engage-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TagLinkCount pairs a tag with how many links it gained in a window.
type TagLinkCount struct {
	TagID string
	Links int64
}

type TagRepository interface {
	Create(tag *model.Tag) error
	Save(tag *model.Tag) error
	FindByID(id string) (*model.Tag, error)
	FindBySlug(slug string) (*model.Tag, error)
	FindByIDs(ids []string) ([]model.Tag, error)
	FindAll() ([]model.Tag, error)
	FindByCategory(category model.TagCategory) ([]model.Tag, error)
	FindTrending(category model.TagCategory, limit int) ([]model.Tag, error)
	CoOccurring(tagID string, limit int) ([]model.Tag, error)
	IncrementCount(id string, delta int64) error
	UpdateTrendingScore(id string, score float64) error
	UpdateRelatedTags(id string, related model.StringSlice) error

	LinkEntity(entityID, entityType, tagID, actor string) (bool, error)
	UnlinkEntity(entityID, entityType, tagID string) (bool, error)
	FindEntityTagIDs(entityID, entityType string) ([]string, error)
	FindEntityLinks(entityID, entityType string) ([]model.EntityTag, error)
	FindLinksByTag(tagID string) ([]model.EntityTag, error)
	FindAllLinks() ([]model.EntityTag, error)
	CountLinks(tagID string) (int64, error)
	RecentLinkCounts(since time.Time) ([]TagLinkCount, error)
}

type tagRepository struct {
	db *gorm.DB
}

func NewTagRepository(db *gorm.DB) TagRepository {
	return &tagRepository{db: db}
}

func (r *tagRepository) Create(tag *model.Tag) error {
	if err := r.db.Create(tag).Error; err != nil {
		logger.Error("Failed to create tag in database", err, map[string]interface{}{
			"tag_id": tag.ID,
			"slug":   tag.Slug,
		})
		return err
	}
	return nil
}

func (r *tagRepository) Save(tag *model.Tag) error {
	return r.db.Save(tag).Error
}

func (r *tagRepository) FindByID(id string) (*model.Tag, error) {
	var tag model.Tag
	if err := r.db.First(&tag, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

func (r *tagRepository) FindBySlug(slug string) (*model.Tag, error) {
	var tag model.Tag
	if err := r.db.First(&tag, "slug = ?", slug).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

func (r *tagRepository) FindByIDs(ids []string) ([]model.Tag, error) {
	if len(ids) == 0 {
		return []model.Tag{}, nil
	}
	var tags []model.Tag
	if err := r.db.Where("id IN ?", ids).Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

func (r *tagRepository) FindAll() ([]model.Tag, error) {
	var tags []model.Tag
	if err := r.db.Order("category ASC, name ASC").Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

func (r *tagRepository) FindByCategory(category model.TagCategory) ([]model.Tag, error) {
	var tags []model.Tag
	query := r.db.Order("name ASC")
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if err := query.Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

func (r *tagRepository) FindTrending(category model.TagCategory, limit int) ([]model.Tag, error) {
	var tags []model.Tag
	query := r.db.Order("trending_score DESC, count DESC, name ASC")
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

// CoOccurring ranks tags that share at least one linked entity with tagID.
func (r *tagRepository) CoOccurring(tagID string, limit int) ([]model.Tag, error) {
	if limit <= 0 {
		limit = 5
	}
	var tags []model.Tag
	err := r.db.Raw(`
		SELECT t.* FROM entity_tags a
		JOIN entity_tags b
		  ON b.entity_id = a.entity_id
		 AND b.entity_type = a.entity_type
		 AND b.tag_id <> a.tag_id
		JOIN tags t ON t.id = b.tag_id
		WHERE a.tag_id = ?
		GROUP BY t.id
		ORDER BY COUNT(*) DESC, t.count DESC
		LIMIT ?`, tagID, limit).Scan(&tags).Error
	if err != nil {
		logger.Error("Failed to query co-occurring tags", err, map[string]interface{}{
			"tag_id": tagID,
		})
		return nil, err
	}
	return tags, nil
}

// IncrementCount applies the delta in a single statement with a floor at
// zero, so concurrent tag/untag calls never produce a negative count.
func (r *tagRepository) IncrementCount(id string, delta int64) error {
	return r.db.Model(&model.Tag{}).Where("id = ?", id).
		Update("count", gorm.Expr(
			"CASE WHEN count + ? < 0 THEN 0 ELSE count + ? END", delta, delta,
		)).Error
}

func (r *tagRepository) UpdateTrendingScore(id string, score float64) error {
	return r.db.Model(&model.Tag{}).Where("id = ?", id).
		Update("trending_score", score).Error
}

func (r *tagRepository) UpdateRelatedTags(id string, related model.StringSlice) error {
	return r.db.Model(&model.Tag{}).Where("id = ?", id).
		Update("related_tags", related).Error
}

// LinkEntity inserts the link if absent. The ON CONFLICT DO NOTHING form
// makes re-tagging a no-op; the returned bool says whether a new link was
// actually created so the caller can adjust the tag count by exactly one.
func (r *tagRepository) LinkEntity(entityID, entityType, tagID, actor string) (bool, error) {
	link := model.EntityTag{
		EntityID:   entityID,
		EntityType: entityType,
		TagID:      tagID,
		TaggedBy:   actor,
		CreatedAt:  time.Now(),
	}
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&link)
	if result.Error != nil {
		logger.Error("Failed to link entity to tag", result.Error, map[string]interface{}{
			"entity_id":   entityID,
			"entity_type": entityType,
			"tag_id":      tagID,
		})
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *tagRepository) UnlinkEntity(entityID, entityType, tagID string) (bool, error) {
	result := r.db.Where(
		"entity_id = ? AND entity_type = ? AND tag_id = ?",
		entityID, entityType, tagID,
	).Delete(&model.EntityTag{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *tagRepository) FindEntityTagIDs(entityID, entityType string) ([]string, error) {
	var ids []string
	err := r.db.Model(&model.EntityTag{}).
		Where("entity_id = ? AND entity_type = ?", entityID, entityType).
		Order("created_at ASC").
		Pluck("tag_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *tagRepository) FindEntityLinks(entityID, entityType string) ([]model.EntityTag, error) {
	var links []model.EntityTag
	err := r.db.Where("entity_id = ? AND entity_type = ?", entityID, entityType).
		Order("created_at ASC").
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	return links, nil
}

func (r *tagRepository) FindLinksByTag(tagID string) ([]model.EntityTag, error) {
	var links []model.EntityTag
	if err := r.db.Where("tag_id = ?", tagID).Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

func (r *tagRepository) FindAllLinks() ([]model.EntityTag, error) {
	var links []model.EntityTag
	if err := r.db.Order("entity_type ASC, entity_id ASC, created_at ASC").Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

func (r *tagRepository) CountLinks(tagID string) (int64, error) {
	var count int64
	err := r.db.Model(&model.EntityTag{}).Where("tag_id = ?", tagID).Count(&count).Error
	return count, err
}

func (r *tagRepository) RecentLinkCounts(since time.Time) ([]TagLinkCount, error) {
	var counts []TagLinkCount
	err := r.db.Model(&model.EntityTag{}).
		Select("tag_id, COUNT(*) AS links").
		Where("created_at >= ?", since).
		Group("tag_id").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}
