package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

type TagCategory string

const (
	TagCategoryProduct   TagCategory = "product"
	TagCategoryVendor    TagCategory = "vendor"
	TagCategoryCustomer  TagCategory = "customer"
	TagCategoryOrder     TagCategory = "order"
	TagCategorySupport   TagCategory = "support"
	TagCategoryCommunity TagCategory = "community"
	TagCategorySystem    TagCategory = "system"
)

type TagType string

const (
	TagTypeAttribute TagType = "attribute"
	TagTypeStatus    TagType = "status"
	TagTypeCategory  TagType = "category"
	TagTypePriority  TagType = "priority"
	TagTypeAccess    TagType = "access"
	TagTypeBenefit   TagType = "benefit"
	TagTypeAlert     TagType = "alert"
	TagTypeAnalytics TagType = "analytics"
)

// RuleOperator is the comparison set understood by auto-apply rules.
// Anything else evaluates as non-matching.
type RuleOperator string

const (
	RuleOpEquals   RuleOperator = "equals"
	RuleOpContains RuleOperator = "contains"
	RuleOpGreater  RuleOperator = "greater"
	RuleOpLess     RuleOperator = "less"
	RuleOpRegex    RuleOperator = "regex"
)

// TagRule is one auto-apply condition evaluated against a context record.
type TagRule struct {
	Field    string       `json:"field"`
	Operator RuleOperator `json:"operator"`
	Value    interface{}  `json:"value"`
}

// TagRules is the serialized rule set column.
type TagRules []TagRule

func (r TagRules) Value() (driver.Value, error) {
	if r == nil {
		return "[]", nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (r *TagRules) Scan(value interface{}) error {
	if value == nil {
		*r = TagRules{}
		return nil
	}
	data, err := toBytes(value)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*r = TagRules{}
		return nil
	}
	return json.Unmarshal(data, r)
}

// Tag is a named classification attachable to any entity kind. Count tracks
// the number of distinct (entity, entityType) pairs currently linked.
type Tag struct {
	ID            string      `gorm:"primarykey;type:varchar(120)" json:"id"`
	Slug          string      `gorm:"type:varchar(100);uniqueIndex;not null" json:"slug"`
	Name          string      `gorm:"type:varchar(100);not null" json:"name"`
	Category      TagCategory `gorm:"type:varchar(20);index" json:"category"`
	Type          TagType     `gorm:"type:varchar(20)" json:"type"`
	Color         string      `gorm:"type:varchar(20)" json:"color"`
	Icon          string      `gorm:"type:varchar(50)" json:"icon"`
	Priority      int         `json:"priority"`
	AutoRules     TagRules    `gorm:"type:text" json:"auto_rules"`
	Count         int64       `json:"count"`
	TrendingScore float64     `json:"trending_score"`
	RelatedTags   StringSlice `gorm:"type:text" json:"related_tags"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

func (Tag) TableName() string {
	return "tags"
}

// EntityTag links one tag to one entity. Entities are identified by
// (entity_id, entity_type) so any kind of record can be tagged.
type EntityTag struct {
	EntityID   string    `gorm:"primaryKey;type:varchar(120);index:idx_entity" json:"entity_id"`
	EntityType string    `gorm:"primaryKey;type:varchar(30);index:idx_entity" json:"entity_type"`
	TagID      string    `gorm:"primaryKey;type:varchar(120);index" json:"tag_id"`
	TaggedBy   string    `gorm:"type:varchar(120)" json:"tagged_by"`
	CreatedAt  time.Time `json:"created_at"`
}

func (EntityTag) TableName() string {
	return "entity_tags"
}

// TaggedEntity is the aggregated view of an entity's tag set, exported in
// snapshots and returned by read queries.
type TaggedEntity struct {
	EntityID   string    `json:"entity_id"`
	EntityType string    `json:"entity_type"`
	TagIDs     []string  `json:"tag_ids"`
	LastTagged time.Time `json:"last_tagged"`
	TaggedBy   string    `json:"tagged_by"`
}
