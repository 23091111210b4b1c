package domain

// WorkspaceType distinguishes personal workspaces from team workspaces.
type WorkspaceType string

// Possible workspace types
const (
	WorkspaceTypePersonal WorkspaceType = "personal"
	WorkspaceTypeTeam     WorkspaceType = "team"
)

// Workspace identifies who owns a task. For a personal workspace OwnerID is
// a member id; for a team workspace it is the team id.
type Workspace struct {
	ID      int64         `json:"workspace_id"`
	Type    WorkspaceType `json:"type"`
	OwnerID int64         `json:"owner_id"`
}
