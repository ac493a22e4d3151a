package downloads

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/five82/hangar/internal/apierr"
	"github.com/five82/hangar/internal/poll"
	"github.com/five82/hangar/internal/rspc"
)

const (
	procList    = "downloads.list"
	procEnqueue = "downloads.enqueue"
)

func procedure(a Action) string { return "downloads." + string(a) }

// EnqueueRequest asks the server to queue a new download.
type EnqueueRequest struct {
	Target     Target            `json:"target"`
	TemplateID string            `json:"template_id"`
	Version    string            `json:"version,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
}

type actionInput struct {
	ID       string `json:"id"`
	Position *int   `json:"position,omitempty"`
}

// Service issues queue queries and commands.
type Service struct {
	caller rspc.Caller
}

// NewService builds a Service over caller.
func NewService(caller rspc.Caller) *Service {
	return &Service{caller: caller}
}

// List fetches and projects the queue.
func (s *Service) List(ctx context.Context) ([]Job, error) {
	data, err := s.caller.Call(ctx, rspc.KindQuery, procList, nil)
	if err != nil {
		return nil, err
	}
	jobs, err := ProjectPayload(data)
	if err != nil {
		return nil, apierr.InvalidResponse(fmt.Sprintf("query %s: %v", procList, err), http.StatusOK, "")
	}
	return jobs, nil
}

// Enqueue queues a new download and returns the created job.
func (s *Service) Enqueue(ctx context.Context, req EnqueueRequest) (Job, error) {
	req.TemplateID = strings.TrimSpace(req.TemplateID)
	if !req.Target.Valid() {
		return Job{}, fmt.Errorf("unknown target %q", req.Target)
	}
	if req.TemplateID == "" {
		return Job{}, fmt.Errorf("template id required")
	}
	data, err := s.caller.Call(ctx, rspc.KindMutation, procEnqueue, req)
	if err != nil {
		return Job{}, err
	}
	job, ok := ackRow(data)
	if !ok {
		return Job{}, apierr.InvalidResponse(fmt.Sprintf("mutation %s: response is not a job", procEnqueue), http.StatusOK, "")
	}
	return job, nil
}

// Pause pauses a queued job.
func (s *Service) Pause(ctx context.Context, job Job) (Job, error) {
	return s.Apply(ctx, job, ActionPause, 0)
}

// Resume re-queues a paused job.
func (s *Service) Resume(ctx context.Context, job Job) (Job, error) {
	return s.Apply(ctx, job, ActionResume, 0)
}

// Cancel cancels a queued or paused job.
func (s *Service) Cancel(ctx context.Context, job Job) (Job, error) {
	return s.Apply(ctx, job, ActionCancel, 0)
}

// Retry re-queues a finished job.
func (s *Service) Retry(ctx context.Context, job Job) (Job, error) {
	return s.Apply(ctx, job, ActionRetry, 0)
}

// Reorder moves a waiting job to position (0 is the head of the queue).
func (s *Service) Reorder(ctx context.Context, job Job, position int) (Job, error) {
	return s.Apply(ctx, job, ActionReorder, position)
}

// Apply runs action against job. The action is checked against the job's
// state before anything is sent. The acknowledged row is returned when the
// server sends one; otherwise the job moves to the expected next state.
func (s *Service) Apply(ctx context.Context, job Job, action Action, position int) (Job, error) {
	if err := Check(job, action); err != nil {
		return Job{}, err
	}
	input := actionInput{ID: job.ID}
	if action == ActionReorder {
		if position < 0 {
			return Job{}, fmt.Errorf("position must not be negative")
		}
		input.Position = &position
	}
	data, err := s.caller.Call(ctx, rspc.KindMutation, procedure(action), input)
	if err != nil {
		return Job{}, err
	}
	if acked, ok := ackRow(data); ok && acked.ID == job.ID {
		return acked, nil
	}
	next := job
	next.State = Expect(job.State, action)
	if next.State != job.State {
		next.Progress = Progress{}
		next.Message = ""
	}
	return next, nil
}

// ackRow reads a job row from a mutation result, bare or under "job".
func ackRow(data json.RawMessage) (Job, bool) {
	if job, ok := ParseRow(data); ok {
		return job, true
	}
	var wrapped struct {
		Job json.RawMessage `json:"job"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil || len(wrapped.Job) == 0 {
		return Job{}, false
	}
	return ParseRow(wrapped.Job)
}

// Activity classifies the queue for the poll scheduler: running jobs change
// quickly, waiting ones change soon, finished ones do not.
func Activity(jobs []Job) poll.Activity {
	out := poll.Idle
	for _, job := range jobs {
		switch job.State {
		case StateRunning:
			return poll.Transitional
		case StateQueued, StatePaused:
			out = poll.Active
		}
	}
	return out
}
