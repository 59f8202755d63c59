package weather

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeasonOf(t *testing.T) {
	cases := map[time.Month]Season{
		time.January:  Winter,
		time.April:    Spring,
		time.July:     Summer,
		time.October:  Fall,
		time.December: Winter,
	}
	for month, want := range cases {
		d := time.Date(2026, month, 15, 12, 0, 0, 0, time.UTC)
		assert.Equal(t, want, SeasonOf(d), month.String())
	}
}

func TestSalesMultiplier(t *testing.T) {
	assert.Greater(t, SalesMultiplier(Sunny), SalesMultiplier(Cloudy))
	assert.Greater(t, SalesMultiplier(Cloudy), SalesMultiplier(Rainy))
	assert.Greater(t, SalesMultiplier(Rainy), SalesMultiplier(Snowy))
	assert.Equal(t, 1.0, SalesMultiplier(Cloudy))
}

// Same seed, same dates: identical weather, regardless of query order.
func TestGeneratorDeterministic(t *testing.T) {
	base := time.Date(2026, time.March, 1, 6, 0, 0, 0, time.UTC)

	sequential := NewGenerator(42)
	var forward []Tag
	for i := 0; i < 90; i++ {
		forward = append(forward, sequential.TagFor(base.AddDate(0, 0, i)))
	}

	// Query the far end first so the cache is populated backwards.
	reversed := NewGenerator(42)
	reversed.TagFor(base.AddDate(0, 0, 89))
	for i := 89; i >= 0; i-- {
		assert.Equal(t, forward[i], reversed.TagFor(base.AddDate(0, 0, i)), "day %d", i)
	}
}

func TestGeneratorSeedSensitive(t *testing.T) {
	base := time.Date(2026, time.March, 1, 6, 0, 0, 0, time.UTC)
	a := NewGenerator(1)
	b := NewGenerator(2)

	differs := false
	for i := 0; i < 90; i++ {
		d := base.AddDate(0, 0, i)
		if a.TagFor(d) != b.TagFor(d) {
			differs = true
			break
		}
	}
	assert.True(t, differs, "different seeds should diverge within 90 days")
}

func TestTagStableWithinDay(t *testing.T) {
	g := NewGenerator(7)
	morning := time.Date(2026, time.June, 10, 6, 0, 0, 0, time.UTC)
	night := morning.Add(17 * time.Hour)
	require.Equal(t, g.TagFor(morning), g.TagFor(night))
}

func TestTagIsValid(t *testing.T) {
	valid := map[Tag]bool{Sunny: true, Cloudy: true, Rainy: true, Snowy: true}
	g := NewGenerator(99)
	base := time.Date(2026, time.January, 1, 6, 0, 0, 0, time.UTC)
	for i := 0; i < 365; i++ {
		tag := g.TagFor(base.AddDate(0, 0, i))
		require.True(t, valid[tag], "day %d produced %q", i, tag)
	}
}
