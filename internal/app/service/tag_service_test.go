package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verdemarket/engage-backend/internal/app/model"
	"github.com/verdemarket/engage-backend/internal/app/repository"
	"github.com/verdemarket/engage-backend/internal/db"
)

func setupTagServiceTest(t *testing.T) (TagService, repository.TagRepository) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	tagRepo := repository.NewTagRepository(testDB)
	return NewTagService(tagRepo), tagRepo
}

func TestTagService_CreateTag(t *testing.T) {
	tagService, _ := setupTagServiceTest(t)

	tag, err := tagService.CreateTag(CreateTagInput{
		Name:     "Premium Quality",
		Category: model.TagCategoryProduct,
		Type:     model.TagTypeAttribute,
		Color:    "#FFD700",
	})
	require.NoError(t, err)
	assert.Equal(t, "tag_premium-quality", tag.ID)
	assert.Equal(t, "premium-quality", tag.Slug)
	assert.Equal(t, int64(0), tag.Count)

	// same name, different casing resolves to the same slug
	_, err = tagService.CreateTag(CreateTagInput{
		Name:     "PREMIUM quality",
		Category: model.TagCategoryProduct,
	})
	assert.ErrorIs(t, err, ErrTagAlreadyExists)
}

func TestTagService_CreateTag_DefaultType(t *testing.T) {
	tagService, _ := setupTagServiceTest(t)

	tag, err := tagService.CreateTag(CreateTagInput{
		Name:     "Handmade",
		Category: model.TagCategoryProduct,
	})
	require.NoError(t, err)
	assert.Equal(t, model.TagTypeAttribute, tag.Type)
}

func TestTagService_TagEntity_CountsMoveByExactlyOne(t *testing.T) {
	tagService, _ := setupTagServiceTest(t)

	tag, err := tagService.CreateTag(CreateTagInput{
		Name:     "Organic",
		Category: model.TagCategoryProduct,
	})
	require.NoError(t, err)

	entity, err := tagService.TagEntity("prod_1", "product", []string{tag.ID}, "tester")
	require.NoError(t, err)
	assert.Equal(t, []string{tag.ID}, entity.TagIDs)

	got, err := tagService.GetTag(tag.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Count)

	// re-tagging the same entity is a no-op
	_, err = tagService.TagEntity("prod_1", "product", []string{tag.ID}, "tester")
	require.NoError(t, err)
	got, err = tagService.GetTag(tag.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Count)

	// a second entity moves the count again
	_, err = tagService.TagEntity("prod_2", "product", []string{tag.ID}, "tester")
	require.NoError(t, err)
	got, err = tagService.GetTag(tag.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Count)
}

func TestTagService_UntagEntity(t *testing.T) {
	tagService, _ := setupTagServiceTest(t)

	tag, err := tagService.CreateTag(CreateTagInput{
		Name:     "Seasonal",
		Category: model.TagCategoryProduct,
	})
	require.NoError(t, err)

	_, err = tagService.TagEntity("prod_1", "product", []string{tag.ID}, "tester")
	require.NoError(t, err)

	entity, err := tagService.UntagEntity("prod_1", "product", []string{tag.ID})
	require.NoError(t, err)
	assert.Empty(t, entity.TagIDs)

	got, err := tagService.GetTag(tag.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Count)

	// removing a tag that was never linked changes nothing
	_, err = tagService.UntagEntity("prod_1", "product", []string{tag.ID})
	require.NoError(t, err)
	got, err = tagService.GetTag(tag.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Count)
}

func TestTagService_TagEntity_SkipsUnknownTags(t *testing.T) {
	tagService, _ := setupTagServiceTest(t)

	tag, err := tagService.CreateTag(CreateTagInput{
		Name:     "Verified",
		Category: model.TagCategoryVendor,
	})
	require.NoError(t, err)

	entity, err := tagService.TagEntity("vendor_1", "vendor", []string{tag.ID, "tag_does-not-exist"}, "tester")
	require.NoError(t, err)
	assert.Equal(t, []string{tag.ID}, entity.TagIDs)
}

func TestTagService_SuggestTags(t *testing.T) {
	tagService, _ := setupTagServiceTest(t)

	_, err := tagService.CreateTag(CreateTagInput{
		Name:     "Premium",
		Category: model.TagCategoryProduct,
		Priority: 10,
		AutoRules: model.TagRules{
			{Field: "price", Operator: model.RuleOpGreater, Value: 100.0},
		},
	})
	require.NoError(t, err)

	_, err = tagService.CreateTag(CreateTagInput{
		Name:     "Craft",
		Category: model.TagCategoryProduct,
		Priority: 5,
		AutoRules: model.TagRules{
			{Field: "category", Operator: model.RuleOpEquals, Value: "handmade"},
		},
	})
	require.NoError(t, err)

	// no rules at all: never suggested
	_, err = tagService.CreateTag(CreateTagInput{
		Name:     "Plain",
		Category: model.TagCategoryProduct,
	})
	require.NoError(t, err)

	tests := []struct {
		name    string
		context map[string]interface{}
		want    []string
	}{
		{
			name:    "Both rule sets match, ordered by priority",
			context: map[string]interface{}{"price": 150.0, "category": "handmade"},
			want:    []string{"tag_premium", "tag_craft"},
		},
		{
			name:    "Only price rule matches",
			context: map[string]interface{}{"price": 150.0, "category": "factory"},
			want:    []string{"tag_premium"},
		},
		{
			name:    "Nothing matches",
			context: map[string]interface{}{"price": 10.0},
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tags, err := tagService.SuggestTags(model.TagCategoryProduct, tt.context)
			require.NoError(t, err)

			ids := make([]string, 0, len(tags))
			for _, tag := range tags {
				ids = append(ids, tag.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestTagService_SuggestTags_UnknownOperatorIsNonMatching(t *testing.T) {
	tagService, _ := setupTagServiceTest(t)

	_, err := tagService.CreateTag(CreateTagInput{
		Name:     "Broken Rule",
		Category: model.TagCategoryProduct,
		AutoRules: model.TagRules{
			{Field: "price", Operator: "approximately", Value: 50.0},
		},
	})
	require.NoError(t, err)

	tags, err := tagService.SuggestTags(model.TagCategoryProduct, map[string]interface{}{"price": 50.0})
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestTagService_SuggestTags_RegexAndContains(t *testing.T) {
	tagService, _ := setupTagServiceTest(t)

	_, err := tagService.CreateTag(CreateTagInput{
		Name:     "Green",
		Category: model.TagCategoryProduct,
		AutoRules: model.TagRules{
			{Field: "name", Operator: model.RuleOpRegex, Value: "(?i)eco|organic"},
		},
	})
	require.NoError(t, err)

	_, err = tagService.CreateTag(CreateTagInput{
		Name:     "Local",
		Category: model.TagCategoryProduct,
		AutoRules: model.TagRules{
			{Field: "labels", Operator: model.RuleOpContains, Value: "local"},
		},
	})
	require.NoError(t, err)

	tags, err := tagService.SuggestTags(model.TagCategoryProduct, map[string]interface{}{
		"name":   "Organic Honey",
		"labels": []interface{}{"local", "farm"},
	})
	require.NoError(t, err)
	assert.Len(t, tags, 2)
}

func TestTagService_FindRelatedTags(t *testing.T) {
	tagService, _ := setupTagServiceTest(t)

	organic, err := tagService.CreateTag(CreateTagInput{Name: "Organic", Category: model.TagCategoryProduct})
	require.NoError(t, err)
	local, err := tagService.CreateTag(CreateTagInput{Name: "Local", Category: model.TagCategoryProduct})
	require.NoError(t, err)
	premium, err := tagService.CreateTag(CreateTagInput{Name: "Premium", Category: model.TagCategoryProduct})
	require.NoError(t, err)

	// organic+local co-occur twice, organic+premium once
	_, err = tagService.TagEntity("prod_1", "product", []string{organic.ID, local.ID}, "tester")
	require.NoError(t, err)
	_, err = tagService.TagEntity("prod_2", "product", []string{organic.ID, local.ID, premium.ID}, "tester")
	require.NoError(t, err)

	related, err := tagService.FindRelatedTags(organic.ID, 5)
	require.NoError(t, err)
	require.Len(t, related, 2)
	assert.Equal(t, local.ID, related[0].ID)
	assert.Equal(t, premium.ID, related[1].ID)

	// unknown tag yields an empty list, not an error
	related, err = tagService.FindRelatedTags("tag_ghost", 5)
	require.NoError(t, err)
	assert.Empty(t, related)
}

func TestTagService_RecomputeTrending(t *testing.T) {
	tagService, tagRepo := setupTagServiceTest(t)

	hot, err := tagService.CreateTag(CreateTagInput{Name: "Hot", Category: model.TagCategoryProduct})
	require.NoError(t, err)
	cold, err := tagService.CreateTag(CreateTagInput{Name: "Cold", Category: model.TagCategoryProduct})
	require.NoError(t, err)

	for _, entity := range []string{"p1", "p2", "p3"} {
		_, err = tagService.TagEntity(entity, "product", []string{hot.ID}, "tester")
		require.NoError(t, err)
	}

	require.NoError(t, tagService.RecomputeTrending())

	hotTag, err := tagRepo.FindByID(hot.ID)
	require.NoError(t, err)
	coldTag, err := tagRepo.FindByID(cold.ID)
	require.NoError(t, err)
	assert.Greater(t, hotTag.TrendingScore, coldTag.TrendingScore)

	trending, err := tagService.GetTrendingTags("", 10)
	require.NoError(t, err)
	require.NotEmpty(t, trending)
	assert.Equal(t, hot.ID, trending[0].ID)
}
