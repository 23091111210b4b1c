package reminder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pecal/pecal-reminders/internal/domain"
	"github.com/pecal/pecal-reminders/internal/store"
)

// Audience yields the members a reminder is delivered to.
type Audience interface {
	MemberIDs(ctx context.Context) ([]int64, error)
}

// PersonalAudience is the single owner of a personal workspace.
type PersonalAudience struct {
	MemberID int64
}

// MemberIDs implements Audience.
func (a PersonalAudience) MemberIDs(ctx context.Context) ([]int64, error) {
	return []int64{a.MemberID}, nil
}

// TeamAudience is the current roster of a team, queried on every call.
type TeamAudience struct {
	TeamID    int64
	Directory store.MembershipDirectory
}

// MemberIDs implements Audience.
func (a TeamAudience) MemberIDs(ctx context.Context) ([]int64, error) {
	ids, err := a.Directory.ListTeamMemberIDs(ctx, a.TeamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members of team %d: %w", a.TeamID, err)
	}
	return ids, nil
}

// MemberResolver returns the members to notify for a workspace.
type MemberResolver interface {
	Resolve(ctx context.Context, workspaceID int64) ([]int64, error)
}

// AudienceResolver picks the Audience variant by workspace owner kind. It
// never caches: membership may change between compile and dispatch.
type AudienceResolver struct {
	directory store.MembershipDirectory
	logger    *slog.Logger
}

// NewAudienceResolver creates an AudienceResolver.
func NewAudienceResolver(directory store.MembershipDirectory, logger *slog.Logger) *AudienceResolver {
	return &AudienceResolver{
		directory: directory,
		logger:    logger.With(slog.String("component", "audience_resolver")),
	}
}

var _ MemberResolver = (*AudienceResolver)(nil)

// AudienceFor returns the Audience of ws.
func (r *AudienceResolver) AudienceFor(ws *domain.Workspace) (Audience, error) {
	switch ws.Type {
	case domain.WorkspaceTypePersonal:
		return PersonalAudience{MemberID: ws.OwnerID}, nil
	case domain.WorkspaceTypeTeam:
		return TeamAudience{TeamID: ws.OwnerID, Directory: r.directory}, nil
	default:
		return nil, fmt.Errorf("unknown workspace type %q", ws.Type)
	}
}

// Resolve returns the distinct positive member ids of the workspace
// audience. A missing workspace yields an empty audience.
func (r *AudienceResolver) Resolve(ctx context.Context, workspaceID int64) ([]int64, error) {
	ws, err := r.directory.GetWorkspace(ctx, workspaceID)
	if err != nil {
		if store.IsNotFoundError(err) {
			r.logger.DebugContext(ctx, "workspace not found, empty audience",
				slog.Int64("workspace_id", workspaceID))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load workspace %d: %w", workspaceID, err)
	}

	audience, err := r.AudienceFor(ws)
	if err != nil {
		r.logger.WarnContext(ctx, "unsupported workspace, empty audience",
			slog.Int64("workspace_id", workspaceID),
			slog.String("error", err.Error()))
		return nil, nil
	}

	ids, err := audience.MemberIDs(ctx)
	if err != nil {
		return nil, err
	}
	return uniquePositive(ids), nil
}

func uniquePositive(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
