package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocation_Tier(t *testing.T) {
	tests := []struct {
		name string
		loc  Location
		want Tier
	}{
		{"country", Country("FRA"), TierCountry},
		{"non-ISO country", Country("XKX"), TierCountry},
		{"grand total", GrandTotal(), TierMeta},
		{"state", State("Washington"), TierState},
		{"county", County("Washington", "King", "53033"), TierCounty},
		{"state total", TotalFor(TierState), TierState},
		{"county total", TotalFor(TierCounty), TierCounty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.loc.Tier())
		})
	}
}

func TestLocation_IsTotal(t *testing.T) {
	assert.True(t, GrandTotal().IsTotal())
	assert.True(t, TotalFor(TierState).IsTotal())
	assert.True(t, TotalFor(TierCounty).IsTotal())
	assert.Equal(t, GrandTotal(), TotalFor(TierCountry))

	assert.False(t, Country("CHN").IsTotal())
	assert.False(t, State("Ohio").IsTotal())
	assert.False(t, County("Ohio", "Franklin", "39049").IsTotal())
}

func TestLocation_Equality(t *testing.T) {
	a := County("Ohio", "Franklin", "39049")
	b := County("Ohio", "Franklin", "39049")
	c := County("Ohio", "Franklin", "")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	m := map[Location]int{a: 1}
	m[b]++
	assert.Equal(t, 2, m[a])
	assert.Len(t, m, 1)
}

func TestLocation_Parent(t *testing.T) {
	county := County("Ohio", "Franklin", "39049")
	parent, ok := county.Parent()
	assert.True(t, ok)
	assert.Equal(t, State("Ohio"), parent)
	assert.Equal(t, county.State, parent.State)

	_, ok = State("Ohio").Parent()
	assert.False(t, ok)
}

func TestTier_Names(t *testing.T) {
	assert.Equal(t, "countries", TierCountry.Plural())
	assert.Equal(t, "states", TierState.Plural())
	assert.Equal(t, "counties", TierCounty.Plural())
	assert.Equal(t, TierCountry, TierMeta.Group())
	assert.Equal(t, TierState, TierState.Group())
}
