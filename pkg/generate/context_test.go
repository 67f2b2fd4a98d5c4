package generate

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedforge/seedforge/pkg/apperrors"
	"github.com/seedforge/seedforge/pkg/datafile"
	"github.com/seedforge/seedforge/pkg/models"
)

func writeAccounts(t *testing.T, n int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "account.json")
	records := make([]models.Record, 0, n)
	for i := 1; i <= n; i++ {
		records = append(records, models.Record{
			"id":       float64(i),
			"name":     "Account " + string(rune('A'+i-1)),
			"industry": "Technology",
		})
	}
	require.NoError(t, datafile.Save(path, records))
	return path
}

func TestLoadLinkedContextProjection(t *testing.T) {
	path := writeAccounts(t, 3)
	spec := &models.LinkedSpec{
		EntityType:    "account",
		ForeignKey:    "accountID",
		FilePath:      path,
		DisplayFields: []string{"name"},
	}

	ctx, err := LoadLinkedContext(spec, Sampling{Policy: SampleFirstN})
	require.NoError(t, err)
	require.Len(t, ctx, 3)
	assert.Equal(t, "1", ctx[0].ID)
	assert.Equal(t, "Account A", ctx[0].Display["name"])
	assert.NotContains(t, ctx[0].Display, "industry")
}

func TestLoadLinkedContextNilSpec(t *testing.T) {
	ctx, err := LoadLinkedContext(nil, Sampling{})
	require.NoError(t, err)
	assert.Nil(t, ctx)
}

func TestLoadLinkedContextRequiredMissing(t *testing.T) {
	spec := &models.LinkedSpec{
		EntityType: "account",
		ForeignKey: "accountID",
		FilePath:   filepath.Join(t.TempDir(), "nope.json"),
		Required:   true,
	}

	_, err := LoadLinkedContext(spec, Sampling{Policy: SampleFirstN})
	assert.ErrorIs(t, err, apperrors.ErrMissingContext)
}

func TestLoadLinkedContextOptionalMissing(t *testing.T) {
	spec := &models.LinkedSpec{
		EntityType: "account",
		ForeignKey: "accountID",
		FilePath:   filepath.Join(t.TempDir(), "nope.json"),
	}

	ctx, err := LoadLinkedContext(spec, Sampling{Policy: SampleFirstN})
	require.NoError(t, err)
	assert.Empty(t, ctx)
}

func TestLoadLinkedContextDefaultCap(t *testing.T) {
	path := writeAccounts(t, 15)
	spec := &models.LinkedSpec{EntityType: "account", ForeignKey: "accountID", FilePath: path}

	ctx, err := LoadLinkedContext(spec, Sampling{Policy: SampleFirstN})
	require.NoError(t, err)
	assert.Len(t, ctx, 10)
	assert.Equal(t, "1", ctx[0].ID)
	assert.Equal(t, "10", ctx[9].ID)
}

func TestLoadLinkedContextMaxItemsCeiling(t *testing.T) {
	path := writeAccounts(t, 25)
	spec := &models.LinkedSpec{
		EntityType: "account",
		ForeignKey: "accountID",
		FilePath:   path,
		MaxItems:   100,
	}

	ctx, err := LoadLinkedContext(spec, Sampling{Policy: SampleFirstN})
	require.NoError(t, err)
	assert.Len(t, ctx, 20)
}

func TestLoadLinkedContextRandomSamplingDeterministic(t *testing.T) {
	path := writeAccounts(t, 25)
	spec := &models.LinkedSpec{EntityType: "account", ForeignKey: "accountID", FilePath: path, MaxItems: 5}

	first, err := LoadLinkedContext(spec, Sampling{Policy: SampleRandom, Seed: 7})
	require.NoError(t, err)
	require.Len(t, first, 5)

	again, err := LoadLinkedContext(spec, Sampling{Policy: SampleRandom, Seed: 7})
	require.NoError(t, err)
	assert.Equal(t, first, again, "same seed must produce the same sample")
}

func TestLoadLinkedContextSkipsRecordsWithoutID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "account.json")
	require.NoError(t, datafile.Save(path, []models.Record{
		{"id": float64(1), "name": "Acme"},
		{"name": "No ID Corp"},
		{"id": "", "name": "Empty ID Corp"},
	}))
	spec := &models.LinkedSpec{EntityType: "account", ForeignKey: "accountID", FilePath: path, DisplayFields: []string{"name"}}

	ctx, err := LoadLinkedContext(spec, Sampling{Policy: SampleFirstN})
	require.NoError(t, err)
	require.Len(t, ctx, 1)
	assert.Equal(t, "1", ctx[0].ID)
}
