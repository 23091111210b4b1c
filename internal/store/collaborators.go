package store

import (
	"context"

	"github.com/pecal/pecal-reminders/internal/domain"
)

// TaskStore reads canonical task state owned by the task CRUD service.
type TaskStore interface {
	// GetTaskByID returns the task, or ErrTaskNotFound when it does not exist.
	GetTaskByID(ctx context.Context, id int64) (*domain.Task, error)
}

// MembershipDirectory resolves who belongs to a workspace.
type MembershipDirectory interface {
	// GetWorkspace returns ErrWorkspaceNotFound when the workspace does not exist.
	GetWorkspace(ctx context.Context, workspaceID int64) (*domain.Workspace, error)

	// ListTeamMemberIDs returns the current roster of a team.
	ListTeamMemberIDs(ctx context.Context, teamID int64) ([]int64, error)
}

// NotificationStore persists in-app notifications.
type NotificationStore interface {
	// CreateNotificationsBulk inserts all notifications and returns how many
	// rows were written.
	CreateNotificationsBulk(ctx context.Context, notifications []domain.Notification) (int, error)
}

// PushTokenStore is the registry of push destinations.
type PushTokenStore interface {
	// ListActiveByMemberIDs returns every active destination of the members.
	ListActiveByMemberIDs(ctx context.Context, memberIDs []int64) ([]domain.PushDestination, error)

	// DeactivateTokens marks the tokens inactive so they are no longer
	// returned by ListActiveByMemberIDs.
	DeactivateTokens(ctx context.Context, tokens []string) error
}
