package photo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orthoflow/practice-service/internal/apperr"
)

func TestLoadCategorySeed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "categories.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
categories:
  - slug: aligner-fit
    name: Aligner fit
    description: Aligner seated on the upper arch
    sort_order: 110
  - slug: retainer-check
    name: Retainer check
`), 0o600))

	reqs, err := LoadCategorySeed(path)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, "aligner-fit", reqs[0].Slug)
	assert.Equal(t, 110, reqs[0].SortOrder)
	require.NotNil(t, reqs[0].Description)
	assert.Equal(t, "Aligner seated on the upper arch", *reqs[0].Description)
	assert.Nil(t, reqs[1].Description)

	empty := filepath.Join(dir, "empty.yml")
	require.NoError(t, os.WriteFile(empty, []byte("categories: []\n"), 0o600))
	_, err = LoadCategorySeed(empty)
	assert.Error(t, err)

	_, err = LoadCategorySeed(filepath.Join(dir, "missing.yml"))
	assert.Error(t, err)
}

func TestSeedCategories(t *testing.T) {
	f := newFixture()
	f.repo.takenSlugs = map[string]bool{"retainer-check": true}

	res, err := f.svc.SeedCategories(context.Background(), []CreateCategoryRequest{
		{Slug: "aligner-fit", Name: "Aligner fit"},
		{Slug: "retainer-check", Name: "Retainer check"},
	})
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Created: 1, Skipped: 1}, res)

	res, err = f.svc.SeedCategories(context.Background(), []CreateCategoryRequest{
		{Slug: "ok", Name: "Fine"},
		{Slug: "Not A Slug", Name: "Broken"},
	})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
	assert.Equal(t, 1, res.Created)
}
