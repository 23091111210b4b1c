package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pecal/pecal-reminders/internal/domain"
	"github.com/pecal/pecal-reminders/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresMembershipDirectory(t *testing.T) {
	ctx := context.Background()
	db, mock := newMockDB(t)
	dir := NewPostgresMembershipDirectory(db, discardLogger())

	mock.ExpectQuery("SELECT workspace_id, type, owner_id FROM workspaces").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"workspace_id", "type", "owner_id"}).
			AddRow(int64(7), "team", int64(3)))
	ws, err := dir.GetWorkspace(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, domain.Workspace{ID: 7, Type: domain.WorkspaceTypeTeam, OwnerID: 3}, *ws)

	mock.ExpectQuery("FROM workspaces").
		WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"workspace_id", "type", "owner_id"}))
	_, err = dir.GetWorkspace(ctx, 8)
	assert.ErrorIs(t, err, store.ErrWorkspaceNotFound)

	mock.ExpectQuery("SELECT member_id FROM team_members WHERE team_id = \\$1").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"member_id"}).AddRow(int64(1)).AddRow(int64(2)))
	ids, err := dir.ListTeamMemberIDs(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)
}
