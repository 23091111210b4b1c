package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pecal/pecal-reminders/internal/domain"
	"github.com/pecal/pecal-reminders/internal/platform/logger"
	"github.com/pecal/pecal-reminders/internal/store"
)

// PostgresMembershipDirectory resolves workspaces and team rosters.
type PostgresMembershipDirectory struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresMembershipDirectory creates a PostgresMembershipDirectory.
func NewPostgresMembershipDirectory(db store.DBTX, logger *slog.Logger) *PostgresMembershipDirectory {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresMembershipDirectory{
		db:     db,
		logger: logger.With(slog.String("component", "membership_directory")),
	}
}

var _ store.MembershipDirectory = (*PostgresMembershipDirectory)(nil)

// GetWorkspace implements store.MembershipDirectory.
func (s *PostgresMembershipDirectory) GetWorkspace(ctx context.Context, workspaceID int64) (*domain.Workspace, error) {
	var (
		ws    domain.Workspace
		wsTyp string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT workspace_id, type, owner_id FROM workspaces WHERE workspace_id = $1`,
		workspaceID,
	).Scan(&ws.ID, &wsTyp, &ws.OwnerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrWorkspaceNotFound
		}
		return nil, fmt.Errorf("failed to get workspace %d: %w", workspaceID, MapError(err))
	}
	ws.Type = domain.WorkspaceType(wsTyp)
	return &ws, nil
}

// ListTeamMemberIDs implements store.MembershipDirectory.
func (s *PostgresMembershipDirectory) ListTeamMemberIDs(ctx context.Context, teamID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT member_id FROM team_members WHERE team_id = $1 ORDER BY member_id`,
		teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", MapError(err))
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.FromContextOrDefault(ctx, s.logger).Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan team member: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate team members: %w", err)
	}
	return ids, nil
}
