package domain

import "time"

// Season of the year, used by seasonal ranking.
type Season string

const (
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonAutumn Season = "autumn"
	SeasonWinter Season = "winter"
)

// SeasonOf maps a calendar month onto a season: Mar-May spring, Jun-Aug
// summer, Sep-Nov autumn, Dec-Feb winter.
func SeasonOf(t time.Time) Season {
	switch t.Month() {
	case time.March, time.April, time.May:
		return SeasonSpring
	case time.June, time.July, time.August:
		return SeasonSummer
	case time.September, time.October, time.November:
		return SeasonAutumn
	default:
		return SeasonWinter
	}
}

// SearchContext carries per-call signals for ranking. It is built for one
// search and dropped afterwards.
type SearchContext struct {
	SessionID     string
	UserID        string
	UserLocation  string
	SearchHistory []string
	Clicks        []Click
	Season        Season
	Trending      map[string]int
	Now           time.Time
}

// ScoreBreakdown holds the six sub-scores of a ranked result.
type ScoreBreakdown struct {
	Base         float64 `json:"base"`
	Personalized float64 `json:"personalized"`
	Trending     float64 `json:"trending"`
	Location     float64 `json:"location"`
	Seasonal     float64 `json:"seasonal"`
	Popularity   float64 `json:"popularity"`
}

// ProductScore is the score of one candidate.
type ProductScore struct {
	ProductID string         `json:"product_id"`
	Scores    ScoreBreakdown `json:"scores"`
	Final     float64        `json:"final"`
}
