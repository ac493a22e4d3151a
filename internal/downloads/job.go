package downloads

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Target is what a download job fetches.
type Target string

const (
	TargetTemplate Target = "template"
	TargetRuntime  Target = "runtime"
	TargetPlugin   Target = "plugin"
)

// Valid reports whether t is a known target.
func (t Target) Valid() bool {
	switch t {
	case TargetTemplate, TargetRuntime, TargetPlugin:
		return true
	}
	return false
}

// State is the server-side lifecycle state of a job.
type State string

const (
	StateQueued   State = "queued"
	StateRunning  State = "running"
	StatePaused   State = "paused"
	StateSuccess  State = "success"
	StateError    State = "error"
	StateCanceled State = "canceled"
)

// States lists every known state in display order.
func States() []State {
	return []State{StateRunning, StateQueued, StatePaused, StateError, StateSuccess, StateCanceled}
}

// Valid reports whether s is one of the six known states.
func (s State) Valid() bool {
	switch s {
	case StateQueued, StateRunning, StatePaused, StateSuccess, StateError, StateCanceled:
		return true
	}
	return false
}

// Terminal reports whether s only leaves through an explicit retry.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateError || s == StateCanceled
}

// Progress fields are all optional; nil means the server did not say.
type Progress struct {
	Stage            *string
	DownloadedBytes  *int64
	TotalBytes       *int64
	SpeedBytesPerSec *int64
	PercentX100      *int64
	EtaSec           *int64
}

// Empty reports whether no progress field is set.
func (p Progress) Empty() bool {
	return p.Stage == nil && p.DownloadedBytes == nil && p.TotalBytes == nil &&
		p.SpeedBytesPerSec == nil && p.PercentX100 == nil && p.EtaSec == nil
}

// Job is one validated row of the download queue.
type Job struct {
	ID              string
	Target          Target
	TemplateID      string
	Version         string
	Params          map[string]string
	State           State
	Message         string
	RequestID       string
	StartedAtUnixMs *int64
	UpdatedAtUnixMs *int64
	Progress        Progress
}

// row is the wire shape. Numeric fields are decoded loosely so a row with an
// odd progress value still projects.
type row struct {
	ID               string         `json:"id"`
	Target           string         `json:"target"`
	TemplateID       string         `json:"template_id"`
	Version          any            `json:"version"`
	Params           map[string]any `json:"params"`
	State            string         `json:"state"`
	Message          string         `json:"message"`
	RequestID        string         `json:"request_id"`
	StartedAtUnixMs  any            `json:"started_at_unix_ms"`
	UpdatedAtUnixMs  any            `json:"updated_at_unix_ms"`
	Stage            *string        `json:"stage"`
	DownloadedBytes  any            `json:"downloaded_bytes"`
	TotalBytes       any            `json:"total_bytes"`
	SpeedBytesPerSec any            `json:"speed_bytes_per_sec"`
	PercentX100      any            `json:"percent_x100"`
	EtaSec           any            `json:"eta_sec"`
}

// Project validates raw rows and returns the jobs that pass. Rows with no
// id, no template, or an unknown target or state are dropped.
func Project(rows []json.RawMessage) []Job {
	jobs := make([]Job, 0, len(rows))
	for _, raw := range rows {
		if job, ok := ParseRow(raw); ok {
			jobs = append(jobs, job)
		}
	}
	return jobs
}

// ProjectPayload accepts the data of downloads.list: either an array of rows
// or an object holding one under "jobs" or "items". null is an empty queue.
func ProjectPayload(data json.RawMessage) ([]Job, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return []Job{}, nil
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err == nil {
		return Project(rows), nil
	}
	var wrapped struct {
		Jobs  []json.RawMessage `json:"jobs"`
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("download list is neither an array nor an object: %w", err)
	}
	if wrapped.Jobs != nil {
		return Project(wrapped.Jobs), nil
	}
	return Project(wrapped.Items), nil
}

// ParseRow validates a single row.
func ParseRow(raw json.RawMessage) (Job, bool) {
	var r row
	if err := json.Unmarshal(raw, &r); err != nil {
		return Job{}, false
	}
	job := Job{
		ID:              strings.TrimSpace(r.ID),
		Target:          Target(r.Target),
		TemplateID:      strings.TrimSpace(r.TemplateID),
		Version:         text(r.Version),
		State:           State(r.State),
		Message:         r.Message,
		RequestID:       r.RequestID,
		StartedAtUnixMs: integer(r.StartedAtUnixMs),
		UpdatedAtUnixMs: integer(r.UpdatedAtUnixMs),
		Progress: Progress{
			Stage:            r.Stage,
			DownloadedBytes:  integer(r.DownloadedBytes),
			TotalBytes:       integer(r.TotalBytes),
			SpeedBytesPerSec: integer(r.SpeedBytesPerSec),
			PercentX100:      integer(r.PercentX100),
			EtaSec:           integer(r.EtaSec),
		},
	}
	if job.ID == "" || job.TemplateID == "" || !job.Target.Valid() || !job.State.Valid() {
		return Job{}, false
	}
	if len(r.Params) > 0 {
		job.Params = make(map[string]string, len(r.Params))
		for k, v := range r.Params {
			if s := text(v); s != "" {
				job.Params[k] = s
			}
		}
	}
	return job, true
}

func text(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return ""
}

func integer(v any) *int64 {
	var n int64
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		n = int64(x)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return nil
		}
		n = parsed
	default:
		return nil
	}
	return &n
}
