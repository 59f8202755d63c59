// Package weather generates a deterministic daily weather tag and season
// for the simulation. Output is a pure function of the run seed and date,
// so replays of a seeded run see identical weather.
package weather

import (
	"time"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// Tag is a daily weather condition consumed by the economic model.
type Tag string

const (
	Sunny  Tag = "sunny"
	Cloudy Tag = "cloudy"
	Rainy  Tag = "rainy"
	Snowy  Tag = "snowy"
)

// Season names derived from the calendar month.
type Season string

const (
	Winter Season = "winter"
	Spring Season = "spring"
	Summer Season = "summer"
	Fall   Season = "fall"
)

// SeasonOf maps a date to its season.
func SeasonOf(t time.Time) Season {
	switch t.Month() {
	case time.December, time.January, time.February:
		return Winter
	case time.March, time.April, time.May:
		return Spring
	case time.June, time.July, time.August:
		return Summer
	default:
		return Fall
	}
}

// SalesMultiplier returns the overall foot-traffic multiplier for a tag.
func SalesMultiplier(tag Tag) float64 {
	switch tag {
	case Sunny:
		return 1.10
	case Rainy:
		return 0.85
	case Snowy:
		return 0.75
	default:
		return 1.00
	}
}

// Seasonal base probabilities, in order sunny/cloudy/rainy/snowy.
var seasonalBase = map[Season][4]float64{
	Winter: {0.2, 0.4, 0.2, 0.2},
	Spring: {0.4, 0.3, 0.3, 0.0},
	Summer: {0.6, 0.2, 0.2, 0.0},
	Fall:   {0.3, 0.4, 0.3, 0.0},
}

var tagOrder = [4]Tag{Sunny, Cloudy, Rainy, Snowy}

// Yesterday's weather tends to continue.
const persistenceBonus = 0.3

// Generator produces daily weather tags from a seed.
type Generator struct {
	noise opensimplex.Noise
	cache map[int]Tag
	epoch time.Time
}

// NewGenerator creates a generator for one run. The same seed always
// produces the same weather sequence.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		noise: opensimplex.New(seed),
		cache: make(map[int]Tag),
		epoch: time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

// TagFor returns the weather tag for the calendar day containing t.
func (g *Generator) TagFor(t time.Time) Tag {
	return g.tagForDay(g.dayIndex(t))
}

func (g *Generator) dayIndex(t time.Time) int {
	return int(t.Sub(g.epoch).Hours() / 24)
}

func (g *Generator) tagForDay(day int) Tag {
	if tag, ok := g.cache[day]; ok {
		return tag
	}

	probs := seasonalBase[SeasonOf(g.epoch.AddDate(0, 0, day))]

	// Persistence: the previous day's tag carries a bonus. The chain
	// grounds out at the epoch, which defaults to sunny.
	prev := Sunny
	if day > 0 {
		prev = g.tagForDay(day - 1)
	}
	var adjusted [4]float64
	total := 0.0
	for i, p := range probs {
		adjusted[i] = p * (1.0 - persistenceBonus)
		if tagOrder[i] == prev {
			adjusted[i] += persistenceBonus
		}
		total += adjusted[i]
	}

	// Smooth noise in [0,1) selects within the cumulative distribution —
	// deterministic for a given seed and day.
	u := (g.noise.Eval2(float64(day)*0.173, 0.5) + 1.0) / 2.0
	if u >= 1.0 {
		u = 0.999999
	}

	tag := tagOrder[len(tagOrder)-1]
	cum := 0.0
	for i, p := range adjusted {
		cum += p / total
		if u < cum {
			tag = tagOrder[i]
			break
		}
	}

	g.cache[day] = tag
	return tag
}
