// Package chain implements the Chain Executor (spec.md §4.7): a DAG of tool
// calls executed atomically with respect to its on_error policy, with
// variable interpolation between steps.
package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wardenmcp/toolgate/internal/apierr"
	"github.com/wardenmcp/toolgate/pkg/router"
)

// OnError selects how the executor reacts to a step that throws.
type OnError string

const (
	OnErrorStop     OnError = "stop"
	OnErrorContinue OnError = "continue"
)

// Step is one node of the chain's DAG.
type Step struct {
	ID        string         `json:"id"`
	Tool      string         `json:"tool"`
	Server    string         `json:"server"`
	Args      map[string]any `json:"args"`
	DependsOn []string       `json:"depends_on"`
}

// Request is the chain-execute request body (spec.md §4.7).
type Request struct {
	SessionID string  `json:"session_id"`
	Steps     []Step  `json:"steps"`
	OnError   OnError `json:"on_error"`
}

// StepStatus is one step's outcome.
type StepStatus string

const (
	StepCompleted StepStatus = "completed" // ran, isError:false
	StepError     StepStatus = "error"     // ran, isError:true
	StepFailed    StepStatus = "failed"    // threw (transport/dispatch error)
	StepSkipped   StepStatus = "skipped"   // never ran, stop policy short-circuited it
)

// StepResult is one step's entry in the chain result.
type StepResult struct {
	ID         string     `json:"id"`
	Status     StepStatus `json:"status"`
	Result     any        `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	DurationMs int64      `json:"duration_ms"`
}

// Status is the overall chain outcome.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusPartial   Status = "partial"
	StatusFailed    Status = "failed"
)

// Result is the chain-execute response body (spec.md §4.7).
type Result struct {
	ChainID         string       `json:"chain_id"`
	Status          Status       `json:"status"`
	Steps           []StepResult `json:"steps"`
	TotalDurationMs int64        `json:"total_duration_ms"`
}

// Scoper checks whether serverID:toolName is permitted for the caller's API
// key, mirroring pkg/apikey.Row.AllowsScope without importing it.
type Scoper interface {
	AllowsScope(serverID, toolName string) bool
}

// Executor runs chain-execute requests against a Tool Router.
type Executor struct {
	Router *router.Router
}

// NewExecutor builds an Executor over rt.
func NewExecutor(rt *router.Router) *Executor {
	return &Executor{Router: rt}
}

// Validate performs the preflight checks spec.md §4.7 requires before the DAG
// runs: non-empty steps, unique ids, and RBAC on every referenced
// server:tool pair.
func Validate(req Request, scope Scoper) error {
	if len(req.Steps) == 0 {
		return apierr.New(apierr.BadRequest, "steps must be non-empty")
	}

	seen := make(map[string]bool, len(req.Steps))
	for _, s := range req.Steps {
		if s.ID == "" {
			return apierr.New(apierr.BadRequest, "every step requires a non-empty id")
		}
		if seen[s.ID] {
			return apierr.New(apierr.BadRequest, fmt.Sprintf("duplicate step id %q", s.ID))
		}
		seen[s.ID] = true

		if scope != nil && !scope.AllowsScope(s.Server, s.Tool) {
			return apierr.New(apierr.ForbiddenScope, fmt.Sprintf("scope denies %s:%s", s.Server, s.Tool))
		}
	}

	for _, s := range req.Steps {
		for _, dep := range s.DependsOn {
			if !seen[dep] {
				return apierr.New(apierr.BadRequest, fmt.Sprintf("step %q depends on unknown step %q", s.ID, dep))
			}
		}
	}

	return nil
}

// Execute runs req's DAG to completion under tenant, gated by an optional
// session_id, per spec.md §4.7's topo-sort-by-layers / error-strategy
// algorithm.
func (e *Executor) Execute(ctx context.Context, tenant string, req Request) (*Result, error) {
	onError := req.OnError
	if onError == "" {
		onError = OnErrorStop
	}

	layers, err := layerize(req.Steps)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	stepByID := make(map[string]Step, len(req.Steps))
	for _, s := range req.Steps {
		stepByID[s.ID] = s
	}

	results := make(map[string]StepResult, len(req.Steps))
	values := make(map[string]any, len(req.Steps))
	stopped := false

	for _, layer := range layers {
		if stopped && onError == OnErrorStop {
			for _, id := range layer {
				results[id] = StepResult{ID: id, Status: StepSkipped}
			}
			continue
		}

		g, gctx := errgroup.WithContext(ctx)
		layerResults := make([]StepResult, len(layer))

		for i, id := range layer {
			i, id := i, id
			g.Go(func() error {
				step := stepByID[id]
				layerResults[i] = e.runStep(gctx, tenant, req.SessionID, step, values)
				return nil
			})
		}
		_ = g.Wait() // runStep never returns an error; failures are encoded in StepResult

		for _, r := range layerResults {
			results[r.ID] = r
			if r.Status == StepFailed && onError == OnErrorStop {
				stopped = true
			}
			if r.Result != nil {
				values[r.ID] = r.Result
			}
		}
	}

	ordered := make([]StepResult, 0, len(req.Steps))
	for _, s := range req.Steps {
		ordered = append(ordered, results[s.ID])
	}

	return &Result{
		ChainID:         generateChainID(),
		Status:          overallStatus(ordered),
		Steps:           ordered,
		TotalDurationMs: time.Since(start).Milliseconds(),
	}, nil
}

// runStep executes one step, interpolating its args against prior results,
// and never returns a Go error — failures are encoded as StepFailed.
func (e *Executor) runStep(ctx context.Context, tenant, sessionID string, step Step, values map[string]any) StepResult {
	args := Interpolate(step.Args, values)

	start := time.Now()
	callResult, err := e.Router.RouteToolCall(ctx, tenant, step.Server, step.Tool, args, router.CallOpts{SessionID: sessionID})
	duration := time.Since(start).Milliseconds()

	if err != nil {
		return StepResult{ID: step.ID, Status: StepFailed, Error: err.Error(), DurationMs: duration}
	}

	parsed := parseResultContent(callResult.Content)
	if callResult.IsError {
		return StepResult{ID: step.ID, Status: StepError, Result: parsed, Error: callResult.Content, DurationMs: callResult.DurationMs}
	}
	return StepResult{ID: step.ID, Status: StepCompleted, Result: parsed, DurationMs: callResult.DurationMs}
}

// parseResultContent is spec.md §4.7's "parsed JSON body of the first
// content element, or the raw text if JSON parse fails".
func parseResultContent(content string) any {
	var parsed any
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return content
	}
	return parsed
}

func overallStatus(steps []StepResult) Status {
	completed, other := 0, 0
	for _, s := range steps {
		if s.Status == StepCompleted {
			completed++
		} else {
			other++
		}
	}
	switch {
	case other == 0:
		return StatusCompleted
	case completed == 0:
		return StatusFailed
	default:
		return StatusPartial
	}
}

// generateChainID is spec.md §4.7's chain_+base36(now).
func generateChainID() string {
	return "chain_" + strconv.FormatInt(time.Now().UnixNano(), 36)
}
