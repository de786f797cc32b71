package multiagent

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// DefaultMaxSubagentDepth is applied when an AgentDefinition leaves
// MaxSubagentDepth at its zero value.
const DefaultMaxSubagentDepth = 3

// ResourceBudget tracks a token allowance that only ever shrinks.
// remaining_tokens <= max_tokens is an invariant maintained by every
// mutating method; a Deduct that would violate it is rejected and leaves
// the budget unchanged.
type ResourceBudget struct {
	MaxTokens       uint64
	RemainingTokens uint64
}

// NewResourceBudget creates a budget with the full allowance available.
func NewResourceBudget(maxTokens uint64) *ResourceBudget {
	return &ResourceBudget{MaxTokens: maxTokens, RemainingTokens: maxTokens}
}

// Deduct spends n tokens. It fails without mutating the budget if n
// exceeds what remains.
func (b *ResourceBudget) Deduct(n uint64) error {
	if b == nil {
		return errors.New("resource budget is nil")
	}
	if n > b.RemainingTokens {
		return fmt.Errorf("budget exhausted: requested %d, remaining %d", n, b.RemainingTokens)
	}
	b.RemainingTokens -= n
	return nil
}

// Exhausted reports whether fewer than one token remains, the admission
// threshold below which a new subagent spawn is rejected.
func (b *ResourceBudget) Exhausted() bool {
	return b == nil || b.RemainingTokens < 1
}

// Derive computes the child budget a spawned subagent inherits: the lesser
// of the parent's remaining tokens and the agent's configured cap (0 means
// uncapped, i.e. the child simply inherits the parent's remaining amount).
//
// The parent's own budget is not debited when the child spends; parent and
// child track independent counters seeded from the same starting point.
// The parent's allowance models license to delegate up to this much work,
// not a shared pool.
func (b *ResourceBudget) Derive(childCap uint64) *ResourceBudget {
	remaining := uint64(0)
	if b != nil {
		remaining = b.RemainingTokens
	}
	max := remaining
	if childCap > 0 && childCap < max {
		max = childCap
	}
	return NewResourceBudget(max)
}

// SpawnRejectionKind enumerates the closed set of reasons a subagent spawn
// can be refused.
type SpawnRejectionKind string

const (
	SpawnDepthExceeded   SpawnRejectionKind = "depth_exceeded"
	SpawnModelNotAllowed SpawnRejectionKind = "model_not_allowed"
	SpawnBudgetExhausted SpawnRejectionKind = "budget_exhausted"
)

// SpawnRejectedError is returned when admission rules refuse a spawn. It is
// never a panic — the run loop surfaces it as an Error event on the
// spawning tool call and continues.
type SpawnRejectedError struct {
	Kind SpawnRejectionKind
	Msg  string
}

func (e *SpawnRejectedError) Error() string {
	return fmt.Sprintf("subagent spawn rejected (%s): %s", e.Kind, e.Msg)
}

// SubagentSpawnParams describes a request to spawn a child agent run.
type SubagentSpawnParams struct {
	Agent          *AgentDefinition
	ParentDepth    uint
	ParentBudget   *ResourceBudget
	RequestedModel string

	ParentSessionKey    string
	RequesterDisplayKey string
	ChildDiscriminator  string // uniquely distinguishes this child under the parent
	Task                string
	Label               string
	Cleanup             string
	TimeoutMs           int64
}

// Scheduler admits and registers subagent runs, enforcing the depth bound,
// model allowlist, and budget-exhaustion rules before delegating
// bookkeeping to a SubagentRegistry.
type Scheduler struct {
	registry *SubagentRegistry
}

// NewScheduler wraps registry with admission-rule enforcement.
func NewScheduler(registry *SubagentRegistry) *Scheduler {
	return &Scheduler{registry: registry}
}

// Spawn validates params against the admission rules and, if accepted,
// registers the child run and returns its record plus its derived budget.
// Validation failures return a *SpawnRejectedError and register nothing.
func (s *Scheduler) Spawn(ctx context.Context, params SubagentSpawnParams) (*SubagentRunRecord, *ResourceBudget, error) {
	maxDepth := uint(DefaultMaxSubagentDepth)
	var allowedModels []string
	var childCap uint64
	if params.Agent != nil {
		if params.Agent.MaxSubagentDepth > 0 {
			maxDepth = params.Agent.MaxSubagentDepth
		}
		allowedModels = params.Agent.SubagentAllowedModels
		childCap = params.Agent.SubagentTokenCap
	}

	childDepth := params.ParentDepth + 1
	if childDepth > maxDepth {
		return nil, nil, &SpawnRejectedError{
			Kind: SpawnDepthExceeded,
			Msg:  fmt.Sprintf("depth %d exceeds max_subagent_depth %d", childDepth, maxDepth),
		}
	}

	if len(allowedModels) > 0 && params.RequestedModel != "" {
		allowed := false
		for _, m := range allowedModels {
			if m == params.RequestedModel {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, nil, &SpawnRejectedError{
				Kind: SpawnModelNotAllowed,
				Msg:  fmt.Sprintf("model %q not in subagent_allowed_models", params.RequestedModel),
			}
		}
	}

	if params.ParentBudget.Exhausted() {
		return nil, nil, &SpawnRejectedError{
			Kind: SpawnBudgetExhausted,
			Msg:  "parent has less than 1 token remaining",
		}
	}

	childBudget := params.ParentBudget.Derive(childCap)
	childKey := params.ParentSessionKey + ":subagent:" + params.ChildDiscriminator

	record := s.registry.Register(RegisterSubagentParams{
		RunID:               uuid.NewString(),
		ChildSessionKey:     childKey,
		RequesterSessionKey: params.ParentSessionKey,
		RequesterDisplayKey: params.RequesterDisplayKey,
		Depth:               childDepth,
		Task:                params.Task,
		Label:               params.Label,
		Cleanup:             params.Cleanup,
		TimeoutMs:           params.TimeoutMs,
	})

	return record, childBudget, nil
}
