package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// CriteriaOperator is the comparison set for segment criteria. Malformed
// operators evaluate as non-matching rather than erroring.
type CriteriaOperator string

const (
	CriteriaEquals   CriteriaOperator = "equals"
	CriteriaContains CriteriaOperator = "contains"
	CriteriaGreater  CriteriaOperator = "greater"
	CriteriaLess     CriteriaOperator = "less"
	CriteriaBetween  CriteriaOperator = "between"
	CriteriaIn       CriteriaOperator = "in"
)

// SegmentCriterion compares one dotted field path on the customer record
// against a value. A customer qualifies when every criterion holds.
type SegmentCriterion struct {
	Field    string           `json:"field"`
	Operator CriteriaOperator `json:"operator"`
	Value    interface{}      `json:"value"`
}

type SegmentCriteria []SegmentCriterion

func (c SegmentCriteria) Value() (driver.Value, error) {
	if c == nil {
		return "[]", nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (c *SegmentCriteria) Scan(value interface{}) error {
	if value == nil {
		*c = SegmentCriteria{}
		return nil
	}
	data, err := toBytes(value)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*c = SegmentCriteria{}
		return nil
	}
	return json.Unmarshal(data, c)
}

// CustomerSegment is a cohort defined by a conjunction of criteria.
// Membership is materialized as the segment's tag on the customer, so the
// member count is denormalized here and authoritative in entity_tags.
type CustomerSegment struct {
	ID          string          `gorm:"primarykey;type:varchar(40)" json:"id"`
	Name        string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	Description string          `gorm:"type:varchar(255)" json:"description"`
	Criteria    SegmentCriteria `gorm:"type:text" json:"criteria"`
	TagID       string          `gorm:"type:varchar(120);index" json:"tag_id"`
	MemberCount int64           `json:"member_count"`
	Campaigns   StringSlice     `gorm:"type:text" json:"campaigns"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (CustomerSegment) TableName() string {
	return "customer_segments"
}
