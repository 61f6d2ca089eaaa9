// Package fitness implements the per-agent fitness score from
// spec.md §4.6: a weighted sum of five components derived from
// telemetry events, decayed by recency. Pure functions, no I/O.
package fitness

import (
	"math"
	"time"

	"github.com/masc-dev/masc/internal/telemetry"
)

const (
	weightCompletion     = 0.35
	weightReliability    = 0.25
	weightSpeed          = 0.15
	weightHandoffSuccess = 0.15
	weightCollaboration  = 0.10

	targetDurationSeconds = 60.0
	neutralScore          = 0.5

	// DefaultWindow and DefaultHalfLife are spec.md §4.6's defaults.
	DefaultWindow   = 7 * 24 * time.Hour
	DefaultHalfLife = 7 * 24 * time.Hour
)

// Stats is the decayed, aggregated per-agent statistics that feed
// Score. Aggregate produces it from a raw telemetry event stream.
type Stats struct {
	WeightedCompleted float64
	WeightedTotal     float64
	WeightedErrors    float64
	WeightedOps       float64
	AvgDurationMs     float64
	HandoffsSuccess   float64
	HandoffsTotal     float64
	Collaborators     int
}

// Aggregate walks events for agentID within window of now, applying
// exponential decay with the given half-life to each event's
// contribution, and returns the resulting Stats.
func Aggregate(events []telemetry.Event, agentID string, now time.Time, window, halfLife time.Duration) Stats {
	if window <= 0 {
		window = DefaultWindow
	}
	if halfLife <= 0 {
		halfLife = DefaultHalfLife
	}

	var s Stats
	var totalDurationWeighted, durationWeightSum float64
	collaborators := make(map[string]struct{})
	cutoff := now.Add(-window)

	for _, e := range events {
		if e.AgentID != agentID && !involvesAgent(e, agentID) {
			continue
		}
		if e.Timestamp.Before(cutoff) || e.Timestamp.After(now) {
			continue
		}
		age := now.Sub(e.Timestamp)
		w := decayWeight(age, halfLife)

		switch e.Kind {
		case telemetry.KindTaskCompleted:
			if e.AgentID != agentID {
				continue
			}
			s.WeightedTotal += w
			s.WeightedCompleted += w
			if d, ok := numField(e.Fields, "duration_ms"); ok {
				totalDurationWeighted += d * w
				durationWeightSum += w
			}
			if collabs, ok := e.Fields["collaborators"].([]any); ok {
				for _, c := range collabs {
					if name, ok := c.(string); ok {
						collaborators[name] = struct{}{}
					}
				}
			}
		case telemetry.KindError:
			if e.AgentID != agentID {
				continue
			}
			s.WeightedOps += w
			s.WeightedErrors += w
		case telemetry.KindToolCalled:
			if e.AgentID != agentID {
				continue
			}
			s.WeightedOps += w
			if success, ok := e.Fields["success"].(bool); ok && !success {
				s.WeightedErrors += w
			}
		case telemetry.KindHandoffTriggered:
			if e.AgentID != agentID {
				continue
			}
			s.HandoffsTotal += w
			if success, ok := e.Fields["success"].(bool); ok && success {
				s.HandoffsSuccess += w
			}
		}
	}

	if durationWeightSum > 0 {
		s.AvgDurationMs = totalDurationWeighted / durationWeightSum
	}
	s.Collaborators = len(collaborators)
	return s
}

func involvesAgent(e telemetry.Event, agentID string) bool {
	if collabs, ok := e.Fields["collaborators"].([]any); ok {
		for _, c := range collabs {
			if name, ok := c.(string); ok && name == agentID {
				return true
			}
		}
	}
	return false
}

func numField(fields map[string]any, key string) (float64, bool) {
	v, ok := fields[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func decayWeight(age time.Duration, halfLife time.Duration) float64 {
	if halfLife <= 0 {
		return 1
	}
	halfLives := age.Seconds() / halfLife.Seconds()
	return math.Pow(0.5, halfLives)
}

// Score computes the weighted fitness score for Stats, clamped to
// [0,1]. An agent with no recorded task activity gets the neutral
// score of 0.5, per spec.md §4.6.
func Score(s Stats) float64 {
	if s.WeightedTotal <= 0 && s.WeightedOps <= 0 {
		return neutralScore
	}

	completion := guard(ratio(s.WeightedCompleted, s.WeightedTotal), neutralScore)
	reliability := guard(1-ratio(s.WeightedErrors, s.WeightedOps), neutralScore)
	speed := neutralScore
	if s.AvgDurationMs > 0 {
		speed = guard(math.Min(1, (targetDurationSeconds*1000)/s.AvgDurationMs), neutralScore)
	}
	handoffSuccess := guard(ratio(s.HandoffsSuccess, s.HandoffsTotal), neutralScore)
	collaboration := guard(math.Min(1, float64(s.Collaborators)/5.0), neutralScore)

	score := weightCompletion*completion +
		weightReliability*reliability +
		weightSpeed*speed +
		weightHandoffSuccess*handoffSuccess +
		weightCollaboration*collaboration

	return guard(clamp01(score), neutralScore)
}

// ratio returns num/den, or 0 if den is non-positive. guard passes
// that 0 through unchanged, since it only replaces NaN/Inf.
func ratio(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return num / den
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// guard returns fallback if v is NaN or Inf, per spec.md §4.6's
// "all inputs are guarded against NaN/Inf".
func guard(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
