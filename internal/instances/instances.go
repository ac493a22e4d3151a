// Package instances queries and commands the worker processes hosted on
// control-plane nodes.
package instances

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

// Status is the server-reported lifecycle status of an instance.
type Status string

const (
	StatusStarting   Status = "STARTING"
	StatusRunning    Status = "RUNNING"
	StatusStopping   Status = "STOPPING"
	StatusRestarting Status = "RESTARTING"
	StatusStopped    Status = "STOPPED"
	StatusCrashed    Status = "CRASHED"
)

// Normalize upper-cases s so "running" and "RUNNING" compare equal.
func (s Status) Normalize() Status {
	return Status(strings.ToUpper(strings.TrimSpace(string(s))))
}

// Transitional reports whether the instance is between steady states.
func (s Status) Transitional() bool {
	switch s.Normalize() {
	case StatusStarting, StatusStopping, StatusRestarting:
		return true
	}
	return false
}

// Instance is one worker process.
type Instance struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Node       string `json:"node"`
	TemplateID string `json:"template_id"`
	Status     Status `json:"status"`
	Players    int    `json:"players,omitempty"`
	Message    string `json:"message,omitempty"`
	UpdatedAt  int64  `json:"updated_at_unix_ms,omitempty"`
}

// Label returns the name, falling back to the id.
func (i Instance) Label() string {
	if name := strings.TrimSpace(i.Name); name != "" {
		return name
	}
	return i.ID
}

// Command is a lifecycle mutation.
type Command string

const (
	CommandStart   Command = "start"
	CommandStop    Command = "stop"
	CommandRestart Command = "restart"
)

// ParseCommand maps a name to a Command.
func ParseCommand(name string) (Command, error) {
	switch c := Command(strings.ToLower(strings.TrimSpace(name))); c {
	case CommandStart, CommandStop, CommandRestart:
		return c, nil
	}
	return "", fmt.Errorf("unknown instance command %q", name)
}

const procList = "instance.list"

// Service wraps the instance procedures.
type Service struct {
	caller rspc.Caller
}

// NewService builds a Service over caller.
func NewService(caller rspc.Caller) *Service {
	return &Service{caller: caller}
}

// List returns every instance. Entries without an id are skipped.
func (s *Service) List(ctx context.Context) ([]Instance, error) {
	data, err := s.caller.Call(ctx, rspc.KindQuery, procList, nil)
	if err != nil {
		return nil, err
	}
	list, err := decodeList(data)
	if err != nil {
		return nil, apierr.InvalidResponse(fmt.Sprintf("query %s: %v", procList, err), http.StatusOK, "")
	}
	return list, nil
}

// Start starts the instance.
func (s *Service) Start(ctx context.Context, id string) (*Instance, error) {
	return s.Run(ctx, CommandStart, id)
}

// Stop stops the instance.
func (s *Service) Stop(ctx context.Context, id string) (*Instance, error) {
	return s.Run(ctx, CommandStop, id)
}

// Restart restarts the instance.
func (s *Service) Restart(ctx context.Context, id string) (*Instance, error) {
	return s.Run(ctx, CommandRestart, id)
}

// Run issues cmd for id. The updated instance is returned when the server
// includes one, nil otherwise.
func (s *Service) Run(ctx context.Context, cmd Command, id string) (*Instance, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("instance id required")
	}
	data, err := s.caller.Call(ctx, rspc.KindMutation, "instance."+string(cmd), map[string]string{"id": id})
	if err != nil {
		return nil, err
	}
	var updated Instance
	if err := json.Unmarshal(data, &updated); err != nil || updated.ID == "" {
		return nil, nil
	}
	updated.Status = updated.Status.Normalize()
	return &updated, nil
}

func decodeList(data json.RawMessage) ([]Instance, error) {
	var list []Instance
	if err := json.Unmarshal(data, &list); err != nil {
		var wrapped struct {
			Instances []Instance `json:"instances"`
		}
		if werr := json.Unmarshal(data, &wrapped); werr != nil {
			return nil, err
		}
		list = wrapped.Instances
	}
	out := make([]Instance, 0, len(list))
	for _, inst := range list {
		if strings.TrimSpace(inst.ID) == "" {
			continue
		}
		inst.Status = inst.Status.Normalize()
		out = append(out, inst)
	}
	return out, nil
}

// Activity classifies list for the poll scheduler. Any transitional
// instance wins, then any running one.
func Activity(list []Instance) poll.Activity {
	out := poll.Idle
	for _, inst := range list {
		switch {
		case inst.Status.Transitional():
			return poll.Transitional
		case inst.Status.Normalize() == StatusRunning:
			out = poll.Active
		}
	}
	return out
}

// Counts tallies instances by status.
func Counts(list []Instance) map[Status]int {
	out := make(map[Status]int)
	for _, inst := range list {
		out[inst.Status.Normalize()]++
	}
	return out
}
