package poll

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"time"
)

// Activity is the liveliness of the entities a query watches. Higher values
// poll faster.
type Activity int

const (
	Idle Activity = iota
	Active
	Transitional
)

func (a Activity) String() string {
	switch a {
	case Transitional:
		return "transitional"
	case Active:
		return "active"
	default:
		return "idle"
	}
}

// Combine returns the liveliest of levels.
func Combine(levels ...Activity) Activity {
	out := Idle
	for _, level := range levels {
		if level > out {
			out = level
		}
	}
	return out
}

// ScaleStep multiplies the base interval once at least MinEntities are watched.
type ScaleStep struct {
	MinEntities int
	Factor      float64
}

// Policy holds the tuning constants of the scheduler.
type Policy struct {
	Transitional   time.Duration
	Active         time.Duration
	Idle           time.Duration
	Cap            time.Duration
	Jitter         time.Duration
	ColdStart      time.Duration
	MaxErrorStreak int
	Scale          []ScaleStep

	// Rand returns a value in [0, n). Nil uses math/rand/v2.
	Rand func(n int64) int64
}

// DefaultPolicy returns the stock tuning.
func DefaultPolicy() Policy {
	return Policy{
		Transitional:   time.Second,
		Active:         3 * time.Second,
		Idle:           10 * time.Second,
		Cap:            60 * time.Second,
		Jitter:         500 * time.Millisecond,
		ColdStart:      time.Second,
		MaxErrorStreak: 5,
		Scale: []ScaleStep{
			{MinEntities: 20, Factor: 1.5},
			{MinEntities: 50, Factor: 2},
			{MinEntities: 100, Factor: 3},
		},
	}
}

// Validate reports inconsistent tuning.
func (p Policy) Validate() error {
	var problems []string
	for name, d := range map[string]time.Duration{
		"transitional": p.Transitional,
		"active":       p.Active,
		"idle":         p.Idle,
		"cap":          p.Cap,
		"cold_start":   p.ColdStart,
	} {
		if d <= 0 {
			problems = append(problems, fmt.Sprintf("%s interval must be positive", name))
		}
	}
	if p.Jitter < 0 {
		problems = append(problems, "jitter must not be negative")
	}
	if p.MaxErrorStreak < 0 {
		problems = append(problems, "max_error_streak must not be negative")
	}
	if p.Cap < max(p.Transitional, p.Active, p.Idle) {
		problems = append(problems, "cap must be at least every base interval")
	}
	for _, step := range p.Scale {
		if step.MinEntities <= 0 {
			problems = append(problems, "scale min_entities must be positive")
		}
		if step.Factor < 1 {
			problems = append(problems, fmt.Sprintf("scale factor %.2f is below 1", step.Factor))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return errors.New("invalid poll policy: " + strings.Join(problems, "; "))
}

// Observed is what the scheduler knows about one live query.
type Observed struct {
	Authenticated bool
	Visible       bool
	// HasData is true once any successful result has been seen.
	HasData bool
	// Activity and Entities describe the latest successful result.
	Activity    Activity
	Entities    int
	ErrorStreak int
}

// NextInterval returns how long to wait before the next poll. ok is false
// when polling is disabled (signed out or not visible).
func (p Policy) NextInterval(o Observed) (interval time.Duration, ok bool) {
	if !o.Authenticated || !o.Visible {
		return 0, false
	}
	if !o.HasData && o.ErrorStreak == 1 {
		return p.ColdStart + p.jitter(), true
	}
	base := p.Base(o.Activity, o.Entities)
	return p.Backoff(base, o.ErrorStreak) + p.jitter(), true
}

// Base returns the interval for activity scaled by the entity count, never
// above Cap.
func (p Policy) Base(activity Activity, entities int) time.Duration {
	var base time.Duration
	switch activity {
	case Transitional:
		base = p.Transitional
	case Active:
		base = p.Active
	default:
		base = p.Idle
	}
	if factor := p.factor(entities); factor > 1 {
		base = time.Duration(float64(base) * factor)
	}
	if p.Cap > 0 && base > p.Cap {
		base = p.Cap
	}
	return base
}

// factor picks the step with the highest threshold entities reaches.
func (p Policy) factor(entities int) float64 {
	factor, threshold := 1.0, 0
	for _, step := range p.Scale {
		if entities >= step.MinEntities && step.MinEntities > threshold {
			factor, threshold = step.Factor, step.MinEntities
		}
	}
	return factor
}

// Backoff returns min(base × 2^streak, Cap) with streak clamped to
// [0, MaxErrorStreak].
func (p Policy) Backoff(base time.Duration, streak int) time.Duration {
	streak = p.ClampStreak(streak)
	interval := base
	for range streak {
		if p.Cap > 0 && interval >= p.Cap {
			break
		}
		interval *= 2
	}
	if p.Cap > 0 && interval > p.Cap {
		interval = p.Cap
	}
	return interval
}

// ClampStreak bounds an error streak to [0, MaxErrorStreak].
func (p Policy) ClampStreak(streak int) int {
	return min(max(streak, 0), p.MaxErrorStreak)
}

// NextStreak returns the streak after a poll: zero on success, one more
// (capped) on failure.
func (p Policy) NextStreak(streak int, failed bool) int {
	if !failed {
		return 0
	}
	return p.ClampStreak(streak + 1)
}

func (p Policy) jitter() time.Duration {
	if p.Jitter <= 0 {
		return 0
	}
	n := int64(p.Jitter) + 1
	if p.Rand != nil {
		return time.Duration(p.Rand(n))
	}
	return time.Duration(rand.Int64N(n))
}
