package scoring

import (
	"math"

	"github.com/andresvelez/shortreel-backend/pkg/db/models"
)

// Band awards Points when the observed value reaches Threshold. Bands are
// evaluated highest-threshold first and the first match wins.
type Band struct {
	Threshold int
	Points    float64
}

// Policy holds the importance weighting. It is injected rather than read from
// ambient config so scoring stays a pure function of (story, policy).
type Policy struct {
	UpvoteWeight  float64
	CommentWeight float64
	AwardWeight   float64
	LengthWeight  float64

	UpvoteBands  []Band
	CommentBands []Band
	AwardBands   []Band

	OptimalLengthMin int
	OptimalLengthMax int
}

// DefaultPolicy returns the production weighting: upvotes dominate, then
// comments, awards, and a small bonus for scripts in the narratable range.
func DefaultPolicy() Policy {
	return Policy{
		UpvoteWeight:  0.4,
		CommentWeight: 0.3,
		AwardWeight:   0.2,
		LengthWeight:  0.1,
		UpvoteBands: []Band{
			{Threshold: 1000, Points: 100},
			{Threshold: 500, Points: 80},
			{Threshold: 200, Points: 60},
			{Threshold: 100, Points: 40},
			{Threshold: 50, Points: 20},
		},
		CommentBands: []Band{
			{Threshold: 100, Points: 100},
			{Threshold: 50, Points: 80},
			{Threshold: 20, Points: 60},
			{Threshold: 10, Points: 40},
			{Threshold: 5, Points: 20},
		},
		AwardBands: []Band{
			{Threshold: 5, Points: 100},
			{Threshold: 3, Points: 80},
			{Threshold: 2, Points: 60},
			{Threshold: 1, Points: 40},
		},
		OptimalLengthMin: 1000,
		OptimalLengthMax: 5000,
	}
}

// Score computes the importance score for a story on a 0-100 scale. The same
// story and policy always produce the same score.
func (p Policy) Score(story models.Story) int {
	total := bandPoints(p.UpvoteBands, story.Score)*p.UpvoteWeight +
		bandPoints(p.CommentBands, story.CommentCount)*p.CommentWeight +
		bandPoints(p.AwardBands, story.Awards)*p.AwardWeight +
		p.lengthPoints(len(story.Body))*p.LengthWeight

	clamped := math.Min(math.Max(total, 0), 100)
	return int(math.Round(clamped))
}

func bandPoints(bands []Band, value int) float64 {
	best := Band{Threshold: math.MinInt32}
	for _, band := range bands {
		if value >= band.Threshold && band.Threshold > best.Threshold {
			best = band
		}
	}
	if best.Threshold == math.MinInt32 {
		return 0
	}
	return best.Points
}

// lengthPoints peaks inside the optimal narration range, ramps up linearly
// below it, and decays above it without going negative.
func (p Policy) lengthPoints(length int) float64 {
	if p.OptimalLengthMin <= 0 || p.OptimalLengthMax <= 0 {
		return 0
	}
	switch {
	case length >= p.OptimalLengthMin && length <= p.OptimalLengthMax:
		return 100
	case length < p.OptimalLengthMin:
		return float64(length) / float64(p.OptimalLengthMin) * 100
	default:
		over := float64(length-p.OptimalLengthMax) / float64(p.OptimalLengthMax)
		return math.Max(0, 100-over*50)
	}
}
