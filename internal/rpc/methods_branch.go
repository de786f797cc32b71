package rpc

import (
	"context"
	"encoding/json"

	"github.com/haasonsaas/aisopod/internal/sessions"
	"github.com/haasonsaas/aisopod/pkg/models"
)

type branchCreateParams struct {
	SessionID      string `json:"session_id"`
	ParentBranchID string `json:"parent_branch_id,omitempty"`
	BranchPoint    int64  `json:"branch_point,omitempty"`
	Name           string `json:"name"`
}

type branchIDParams struct {
	BranchID string `json:"branch_id"`
}

type branchListParams struct {
	SessionID       string `json:"session_id"`
	IncludeArchived bool   `json:"include_archived,omitempty"`
	Limit           int    `json:"limit,omitempty"`
}

type branchMergeParams struct {
	SourceBranchID string `json:"source_branch_id"`
	TargetBranchID string `json:"target_branch_id"`
	Strategy       string `json:"strategy,omitempty"`
}

type branchCompareParams struct {
	SourceBranchID string `json:"source_branch_id"`
	TargetBranchID string `json:"target_branch_id"`
}

type branchDeleteParams struct {
	BranchID       string `json:"branch_id"`
	DeleteMessages bool   `json:"delete_messages,omitempty"`
}

func registerBranchMethods(d *Dispatcher, svc *Services) {
	d.RegisterMethod("branch.fork", ScopeWrite, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		var p branchCreateParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, InvalidParams(err)
		}
		if svc.Branches == nil {
			return nil, newError(CodeInternalError, "branch store unavailable")
		}
		if p.SessionID == "" {
			return nil, InvalidParams(errRequired("session_id"))
		}
		if p.ParentBranchID == "" {
			primary, err := svc.Branches.EnsurePrimaryBranch(ctx, p.SessionID)
			if err != nil {
				return nil, newError(CodeInternalError, err.Error())
			}
			p.ParentBranchID = primary.ID
		}
		branch, err := svc.Branches.ForkBranch(ctx, p.ParentBranchID, p.BranchPoint, p.Name)
		if err != nil {
			return nil, newError(CodeInvalidParams, err.Error())
		}
		return branch, nil
	})

	d.RegisterMethod("branch.get", ScopeRead, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		var p branchIDParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, InvalidParams(err)
		}
		branch, err := svc.Branches.GetBranch(ctx, p.BranchID)
		if err != nil {
			return nil, NotFound("branch")
		}
		return branch, nil
	})

	d.RegisterMethod("branch.list", ScopeRead, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		var p branchListParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, InvalidParams(err)
		}
		if p.SessionID == "" {
			return nil, InvalidParams(errRequired("session_id"))
		}
		opts := sessions.DefaultBranchListOptions()
		opts.IncludeArchived = p.IncludeArchived
		if p.Limit > 0 {
			opts.Limit = p.Limit
		}
		list, err := svc.Branches.ListBranches(ctx, p.SessionID, opts)
		if err != nil {
			return nil, newError(CodeInternalError, err.Error())
		}
		return map[string]any{"branches": list}, nil
	})

	d.RegisterMethod("branch.tree", ScopeRead, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		var p branchListParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, InvalidParams(err)
		}
		if p.SessionID == "" {
			return nil, InvalidParams(errRequired("session_id"))
		}
		tree, err := svc.Branches.GetBranchTree(ctx, p.SessionID)
		if err != nil {
			return nil, newError(CodeInternalError, err.Error())
		}
		return tree, nil
	})

	d.RegisterMethod("branch.stats", ScopeRead, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		var p branchIDParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, InvalidParams(err)
		}
		stats, err := svc.Branches.GetBranchStats(ctx, p.BranchID)
		if err != nil {
			return nil, newError(CodeInternalError, err.Error())
		}
		return stats, nil
	})

	d.RegisterMethod("branch.compare", ScopeRead, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		var p branchCompareParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, InvalidParams(err)
		}
		compare, err := svc.Branches.CompareBranches(ctx, p.SourceBranchID, p.TargetBranchID)
		if err != nil {
			return nil, newError(CodeInternalError, err.Error())
		}
		return compare, nil
	})

	d.RegisterMethod("branch.merge", ScopeWrite, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		var p branchMergeParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, InvalidParams(err)
		}
		if p.SourceBranchID == "" || p.TargetBranchID == "" {
			return nil, InvalidParams(errRequired("source_branch_id/target_branch_id"))
		}
		strategy := models.MergeStrategy(p.Strategy)
		if strategy == "" {
			strategy = models.MergeStrategyContinue
		}
		merge, err := svc.Branches.MergeBranch(ctx, p.SourceBranchID, p.TargetBranchID, strategy)
		if err != nil {
			return nil, newError(CodeInvalidParams, err.Error())
		}
		return merge, nil
	})

	d.RegisterMethod("branch.archive", ScopeWrite, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		var p branchIDParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, InvalidParams(err)
		}
		if err := svc.Branches.ArchiveBranch(ctx, p.BranchID); err != nil {
			return nil, newError(CodeInvalidParams, err.Error())
		}
		return map[string]any{"archived": true}, nil
	})

	d.RegisterMethod("branch.delete", ScopeWrite, func(ctx context.Context, conn *ConnState, raw json.RawMessage, stream *Stream) (any, error) {
		var p branchDeleteParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, InvalidParams(err)
		}
		if err := svc.Branches.DeleteBranch(ctx, p.BranchID, p.DeleteMessages); err != nil {
			return nil, newError(CodeInvalidParams, err.Error())
		}
		return map[string]any{"deleted": true}, nil
	})
}
