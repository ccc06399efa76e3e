package phase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var testOrder = map[Key]int{
	KeyOnboarding: 10,
	KeyIdeation:   20,
	KeyDesign:     30,
	KeyReview:     40,
	KeyProduction: 50,
	KeyPayment:    60,
	KeySignoff:    70,
	KeyLaunch:     80,
}

func TestBuildSet_OrdersByCatalogOrder(t *testing.T) {
	// Selected keys arrive unordered; the set must follow sort_order.
	set := BuildSet(
		[]Key{KeyPayment, KeyDesign, KeyIdeation, KeyReview},
		KeyOnboarding, KeyLaunch, testOrder,
	)

	assert.Equal(t, Set{KeyOnboarding, KeyIdeation, KeyDesign, KeyReview, KeyPayment, KeyLaunch}, set)
}

func TestBuildSet_Deduplicates(t *testing.T) {
	set := BuildSet(
		[]Key{KeyDesign, KeyDesign, KeyOnboarding, KeyReview, KeyReview},
		KeyOnboarding, KeyLaunch, testOrder,
	)

	assert.Equal(t, Set{KeyOnboarding, KeyDesign, KeyReview, KeyLaunch}, set)
}

func TestBuildSet_EmptySelectionStillHasEndpoints(t *testing.T) {
	set := BuildSet(nil, KeyOnboarding, KeyLaunch, testOrder)

	assert.Equal(t, Set{KeyOnboarding, KeyLaunch}, set)
}

func TestSet_Next(t *testing.T) {
	set := Set{KeyOnboarding, KeyDesign, KeyLaunch}

	tests := []struct {
		name    string
		current Key
		want    Key
		wantOK  bool
	}{
		{"first phase", KeyOnboarding, KeyDesign, true},
		{"middle phase", KeyDesign, KeyLaunch, true},
		{"last phase has no next", KeyLaunch, "", false},
		{"non-member has no next", KeyPayment, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := set.Next(tt.current)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSet_FirstLastContains(t *testing.T) {
	set := Set{KeyOnboarding, KeyReview, KeyLaunch}

	first, ok := set.First()
	assert.True(t, ok)
	assert.Equal(t, KeyOnboarding, first)

	last, ok := set.Last()
	assert.True(t, ok)
	assert.Equal(t, KeyLaunch, last)

	assert.True(t, set.Contains(KeyReview))
	assert.False(t, set.Contains(KeyPayment))

	var empty Set
	_, ok = empty.First()
	assert.False(t, ok)
	_, ok = empty.Last()
	assert.False(t, ok)
}
