package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verdemarket/engage-backend/internal/app/model"
	"github.com/verdemarket/engage-backend/internal/db"
)

func setupTagRepositoryTest(t *testing.T) TagRepository {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })
	return NewTagRepository(testDB)
}

func seedTag(t *testing.T, repo TagRepository, id, slug string) {
	t.Helper()
	require.NoError(t, repo.Create(&model.Tag{
		ID:       id,
		Slug:     slug,
		Name:     slug,
		Category: model.TagCategoryProduct,
		Type:     model.TagTypeAttribute,
	}))
}

func TestTagRepository_LinkEntity_ConflictIsNoOp(t *testing.T) {
	repo := setupTagRepositoryTest(t)
	seedTag(t, repo, "tag_a", "a")

	created, err := repo.LinkEntity("prod_1", "product", "tag_a", "tester")
	require.NoError(t, err)
	assert.True(t, created)

	// same link again reports no new row
	created, err = repo.LinkEntity("prod_1", "product", "tag_a", "tester")
	require.NoError(t, err)
	assert.False(t, created)

	count, err := repo.CountLinks("tag_a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// same entity id under a different type is a distinct link
	created, err = repo.LinkEntity("prod_1", "vendor", "tag_a", "tester")
	require.NoError(t, err)
	assert.True(t, created)
}

func TestTagRepository_UnlinkEntity(t *testing.T) {
	repo := setupTagRepositoryTest(t)
	seedTag(t, repo, "tag_a", "a")

	_, err := repo.LinkEntity("prod_1", "product", "tag_a", "tester")
	require.NoError(t, err)

	removed, err := repo.UnlinkEntity("prod_1", "product", "tag_a")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.UnlinkEntity("prod_1", "product", "tag_a")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestTagRepository_IncrementCount_FloorsAtZero(t *testing.T) {
	repo := setupTagRepositoryTest(t)
	seedTag(t, repo, "tag_a", "a")

	require.NoError(t, repo.IncrementCount("tag_a", 2))
	tag, err := repo.FindByID("tag_a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), tag.Count)

	// a delta past zero clamps instead of going negative
	require.NoError(t, repo.IncrementCount("tag_a", -5))
	tag, err = repo.FindByID("tag_a")
	require.NoError(t, err)
	assert.Equal(t, int64(0), tag.Count)
}

func TestTagRepository_RecentLinkCounts(t *testing.T) {
	repo := setupTagRepositoryTest(t)
	seedTag(t, repo, "tag_a", "a")
	seedTag(t, repo, "tag_b", "b")

	for _, entity := range []string{"p1", "p2", "p3"} {
		_, err := repo.LinkEntity(entity, "product", "tag_a", "tester")
		require.NoError(t, err)
	}
	_, err := repo.LinkEntity("p1", "product", "tag_b", "tester")
	require.NoError(t, err)

	counts, err := repo.RecentLinkCounts(time.Now().Add(-time.Hour))
	require.NoError(t, err)

	byTag := map[string]int64{}
	for _, c := range counts {
		byTag[c.TagID] = c.Links
	}
	assert.Equal(t, int64(3), byTag["tag_a"])
	assert.Equal(t, int64(1), byTag["tag_b"])

	// nothing linked after a future cutoff
	counts, err = repo.RecentLinkCounts(time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestTagRepository_CoOccurring(t *testing.T) {
	repo := setupTagRepositoryTest(t)
	seedTag(t, repo, "tag_a", "a")
	seedTag(t, repo, "tag_b", "b")
	seedTag(t, repo, "tag_c", "c")

	// b co-occurs with a twice, c once
	for _, entity := range []string{"p1", "p2"} {
		_, err := repo.LinkEntity(entity, "product", "tag_a", "tester")
		require.NoError(t, err)
		_, err = repo.LinkEntity(entity, "product", "tag_b", "tester")
		require.NoError(t, err)
	}
	_, err := repo.LinkEntity("p2", "product", "tag_c", "tester")
	require.NoError(t, err)

	tags, err := repo.CoOccurring("tag_a", 5)
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "tag_b", tags[0].ID)
	assert.Equal(t, "tag_c", tags[1].ID)
}
