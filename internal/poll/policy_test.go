package poll

import (
	"testing"
	"time"
)

func noJitter(p Policy) Policy {
	p.Jitter = 0
	return p
}

func TestBackoff(t *testing.T) {
	p := Policy{Cap: 30 * time.Second, MaxErrorStreak: 10}
	baseInterval := 2 * time.Second

	tests := []struct {
		name   string
		streak int
		want   time.Duration
	}{
		{"zero failures", 0, 2 * time.Second},
		{"negative failures", -1, 2 * time.Second},
		{"one failure", 1, 4 * time.Second},
		{"two failures", 2, 8 * time.Second},
		{"three failures", 3, 16 * time.Second},
		{"four failures capped", 4, 30 * time.Second}, // 32s capped to 30s
		{"many failures capped", 10, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Backoff(baseInterval, tt.streak)
			if got != tt.want {
				t.Errorf("Backoff(%v, %d) = %v, want %v", baseInterval, tt.streak, got, tt.want)
			}
		})
	}
}

func TestBackoff_MonotonicAndClamped(t *testing.T) {
	p := noJitter(DefaultPolicy())
	for _, activity := range []Activity{Idle, Active, Transitional} {
		for _, entities := range []int{0, 20, 50, 100, 500} {
			base := p.Base(activity, entities)
			prev := time.Duration(0)
			for streak := 0; streak <= 20; streak++ {
				got, ok := p.NextInterval(Observed{
					Authenticated: true,
					Visible:       true,
					HasData:       true,
					Activity:      activity,
					Entities:      entities,
					ErrorStreak:   streak,
				})
				if !ok {
					t.Fatalf("NextInterval disabled for eligible query")
				}
				if got < prev {
					t.Fatalf("%s/%d: streak %d interval %v below previous %v", activity, entities, streak, got, prev)
				}
				if got < base || got > p.Cap {
					t.Fatalf("%s/%d: streak %d interval %v outside [%v, %v]", activity, entities, streak, got, base, p.Cap)
				}
				prev = got
			}
		}
	}
}

func TestNextInterval_DisabledWhenIneligible(t *testing.T) {
	p := DefaultPolicy()
	cases := []Observed{
		{Authenticated: false, Visible: true, HasData: true},
		{Authenticated: true, Visible: false, HasData: true},
	}
	for _, o := range cases {
		if got, ok := p.NextInterval(o); ok {
			t.Fatalf("NextInterval(%+v) = %v, want disabled", o, got)
		}
	}
}

func TestNextInterval_BaseFollowsActivity(t *testing.T) {
	p := noJitter(DefaultPolicy())
	tests := []struct {
		activity Activity
		want     time.Duration
	}{
		{Transitional, time.Second},
		{Active, 3 * time.Second},
		{Idle, 10 * time.Second},
	}
	for _, tt := range tests {
		got, _ := p.NextInterval(Observed{Authenticated: true, Visible: true, HasData: true, Activity: tt.activity, Entities: 3})
		if got != tt.want {
			t.Errorf("%s interval = %v, want %v", tt.activity, got, tt.want)
		}
	}
}

func TestNextInterval_TwentyInstancesOneStarting(t *testing.T) {
	p := noJitter(DefaultPolicy())
	got, ok := p.NextInterval(Observed{
		Authenticated: true,
		Visible:       true,
		HasData:       true,
		Activity:      Combine(Active, Transitional, Idle),
		Entities:      20,
	})
	if !ok || got != 1500*time.Millisecond {
		t.Fatalf("interval = %v (ok=%v), want 1.5s", got, ok)
	}
}

func TestBase_ScaleThresholds(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		entities int
		want     time.Duration
	}{
		{19, 3 * time.Second},
		{20, 4500 * time.Millisecond},
		{50, 6 * time.Second},
		{100, 9 * time.Second},
		{1000, 9 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Base(Active, tt.entities); got != tt.want {
			t.Errorf("Base(active, %d) = %v, want %v", tt.entities, got, tt.want)
		}
	}
	// Scaling never pushes the base past the cap.
	if got := p.Base(Idle, 1000); got != 30*time.Second {
		t.Errorf("Base(idle, 1000) = %v, want 30s", got)
	}
	p.Cap = 20 * time.Second
	if got := p.Base(Idle, 1000); got != p.Cap {
		t.Errorf("Base(idle, 1000) with small cap = %v, want %v", got, p.Cap)
	}
}

func TestNextInterval_ColdStart(t *testing.T) {
	p := noJitter(DefaultPolicy())
	o := Observed{Authenticated: true, Visible: true, HasData: false, ErrorStreak: 1}
	if got, _ := p.NextInterval(o); got != p.ColdStart {
		t.Fatalf("cold start interval = %v, want %v", got, p.ColdStart)
	}

	o.ErrorStreak = 2
	if got, _ := p.NextInterval(o); got != 40*time.Second {
		t.Fatalf("second cold failure interval = %v, want normal backoff 40s", got)
	}

	o = Observed{Authenticated: true, Visible: true, HasData: true, ErrorStreak: 1, Activity: Idle}
	if got, _ := p.NextInterval(o); got != 20*time.Second {
		t.Fatalf("failure after data interval = %v, want 20s", got)
	}
}

func TestNextInterval_JitterBounded(t *testing.T) {
	p := DefaultPolicy()
	var asked int64
	p.Rand = func(n int64) int64 {
		asked = n
		return n - 1
	}
	got, _ := p.NextInterval(Observed{Authenticated: true, Visible: true, HasData: true, Activity: Active})
	if asked != int64(p.Jitter)+1 {
		t.Fatalf("jitter range = %d, want %d", asked, int64(p.Jitter)+1)
	}
	if got != 3*time.Second+p.Jitter {
		t.Fatalf("interval = %v, want base plus full jitter", got)
	}

	p.Rand = nil
	for range 50 {
		got, _ := p.NextInterval(Observed{Authenticated: true, Visible: true, HasData: true, Activity: Active})
		if got < 3*time.Second || got > 3*time.Second+p.Jitter {
			t.Fatalf("interval %v outside [3s, 3.5s]", got)
		}
	}
}

func TestNextStreak(t *testing.T) {
	p := DefaultPolicy()
	streak := 0
	for range 10 {
		streak = p.NextStreak(streak, true)
	}
	if streak != p.MaxErrorStreak {
		t.Fatalf("streak = %d, want capped at %d", streak, p.MaxErrorStreak)
	}
	if got := p.NextStreak(streak, false); got != 0 {
		t.Fatalf("streak after success = %d, want 0", got)
	}
}

func TestValidate(t *testing.T) {
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
	bad := DefaultPolicy()
	bad.Cap = time.Second
	bad.Scale = append(bad.Scale, ScaleStep{MinEntities: 10, Factor: 0.5})
	if err := bad.Validate(); err == nil {
		t.Fatalf("Validate accepted cap below base and shrinking factor")
	}
}

func TestCombine(t *testing.T) {
	if got := Combine(); got != Idle {
		t.Fatalf("Combine() = %v, want idle", got)
	}
	if got := Combine(Idle, Active); got != Active {
		t.Fatalf("Combine(idle, active) = %v, want active", got)
	}
}
