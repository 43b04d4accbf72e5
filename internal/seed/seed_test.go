package seed

import (
	"context"
	"testing"

	"github.com/ariefcatur/lexshelf-orders/internal/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	assert.Equal(t, "the-bharatiya-nyaya-samhita-2023-ala-bare-act",
		Slugify("The Bharatiya Nyaya Samhita, 2023 (ALA/Bare Act)"))
	assert.Equal(t, "law-of-contracts", Slugify("  Law of Contracts! "))
}

func TestProductsAreValidAndStable(t *testing.T) {
	first, second := Products(), Products()
	seen := map[string]bool{}
	for i, p := range first {
		assert.True(t, p.Price.Valid(), p.Slug)
		assert.GreaterOrEqual(t, p.Stock, 0)
		assert.False(t, seen[p.Slug], "duplicate slug %s", p.Slug)
		seen[p.Slug] = true
		assert.Equal(t, p.ID, second[i].ID)
	}
}

func TestLoadIsIdempotent(t *testing.T) {
	s := memstore.New()
	n, err := Load(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, len(Products()), n)

	_, err = Load(context.Background(), s)
	require.NoError(t, err)
	list, err := s.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, n)
}
