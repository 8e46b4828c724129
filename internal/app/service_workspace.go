package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"workbench/api/internal/access"
	"workbench/api/internal/store"
	"workbench/api/internal/util"
)

type CollaboratorInput struct {
	User   string `json:"user"`
	Access string `json:"access"`
}

type CreateWorkspaceInput struct {
	Title         string              `json:"title"`
	Description   string              `json:"description"`
	Visibility    string              `json:"visibility"`
	Company       string              `json:"company"`
	Collaborators []CollaboratorInput `json:"collaborators"`
}

type UpdateWorkspaceInput struct {
	Title         *string              `json:"title"`
	Description   *string              `json:"description"`
	Visibility    *string              `json:"visibility"`
	Company       *string              `json:"company"`
	Collaborators *[]CollaboratorInput `json:"collaborators"`
}

// ListAccessibleWorkspaces returns every workspace the user can see:
// owned, collaborating, and company-visible, deduplicated in that order
// of precedence.
func (s *Service) ListAccessibleWorkspaces(ctx context.Context, userID string) ([]map[string]any, error) {
	owned, err := s.store.ListWorkspacesOwnedBy(ctx, userID)
	if err != nil {
		return nil, err
	}
	collab, err := s.store.ListWorkspacesWithCollaborator(ctx, userID)
	if err != nil {
		return nil, err
	}

	user, err := s.userInfo(ctx, userID)
	if err != nil {
		return nil, err
	}
	company := user.Company
	if company == "" {
		company = s.cfg.DefaultCompany
	}
	var companyVisible []store.Workspace
	if company != "" {
		companyVisible, err = s.store.ListCompanyWorkspaces(ctx, company)
		if err != nil {
			return nil, err
		}
	}

	seen := make(map[string]bool)
	result := []map[string]any{}
	for _, group := range [][]store.Workspace{owned, collab, companyVisible} {
		for _, ws := range group {
			if seen[ws.ID] {
				continue
			}
			seen[ws.ID] = true
			result = append(result, workspaceSummary(ws))
		}
	}
	return result, nil
}

func workspaceSummary(ws store.Workspace) map[string]any {
	return map[string]any{
		"name":        ws.ID,
		"title":       ws.Title,
		"description": ws.Description,
		"visibility":  ws.Visibility,
		"company":     ws.Company,
		"creation":    ws.CreatedAt,
		"modified":    ws.UpdatedAt,
	}
}

func (s *Service) CreateWorkspace(ctx context.Context, userID string, input CreateWorkspaceInput) (map[string]any, error) {
	title := input.Title
	if title == "" {
		title = "New Workspace"
	}
	visibility := input.Visibility
	if visibility == "" {
		visibility = access.VisibilityPrivate
	}
	switch visibility {
	case access.VisibilityPrivate, access.VisibilityCompany, access.VisibilityShared:
	default:
		return nil, errValidation(fmt.Sprintf("invalid visibility %q", visibility), nil)
	}

	collaborators, err := s.validateCollaborators(ctx, input.Collaborators)
	if err != nil {
		return nil, err
	}

	ws := store.Workspace{
		ID:          util.NewID("wsp"),
		Title:       title,
		Description: input.Description,
		OwnerID:     userID,
		Visibility:  visibility,
		Company:     input.Company,
	}
	if err := s.store.InsertWorkspace(ctx, ws, collaborators); err != nil {
		return nil, err
	}

	// Every new workspace starts with a seeded page.
	if _, err := s.CreatePage(ctx, userID, CreatePageInput{
		Workspace:   ws.ID,
		Title:       "Getting Started",
		ContentJSON: defaultWorkspacePageContent(),
	}); err != nil {
		return nil, err
	}

	return map[string]any{"name": ws.ID, "title": ws.Title}, nil
}

// defaultWorkspacePageContent is the seeded body of a workspace's first
// page: a heading and two onboarding paragraphs.
func defaultWorkspacePageContent() string {
	ts := time.Now().Unix()
	return fmt.Sprintf(`{"blocks":[`+
		`{"id":"block-%d","type":"heading1","content":"Welcome to your new workspace!","level":1},`+
		`{"id":"block-%d","type":"paragraph","content":"This is your first page. You can start typing here or use the '/' command to add different types of content blocks.","level":1},`+
		`{"id":"block-%d","type":"paragraph","content":"Try typing '/' to see all available block types!","level":1}`+
		`]}`, ts, ts+1, ts+2)
}

func (s *Service) validateCollaborators(ctx context.Context, inputs []CollaboratorInput) ([]store.Collaborator, error) {
	collaborators := make([]store.Collaborator, 0, len(inputs))
	for _, c := range inputs {
		exists, err := s.store.UserExists(ctx, c.User)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, errValidation(fmt.Sprintf("user %s does not exist", c.User), map[string]any{"user": c.User})
		}
		level := c.Access
		if level == "" {
			level = string(access.LevelViewer)
		}
		collaborators = append(collaborators, store.Collaborator{UserID: c.User, Access: level})
	}
	return collaborators, nil
}

func (s *Service) GetWorkspaceSettings(ctx context.Context, userID, workspaceID string) (map[string]any, error) {
	ws, collaborators, err := s.loadWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	user, err := s.userInfo(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !s.resolver.WorkspaceAccess(workspaceInfo(ws, collaborators), user, false) {
		return nil, errForbidden("you don't have access to this workspace")
	}

	collabPayload := make([]map[string]any, 0, len(collaborators))
	for _, c := range collaborators {
		entry := map[string]any{"user": c.UserID, "access": c.Access}
		if u, err := s.store.GetUserByID(ctx, c.UserID); err == nil {
			entry["user_name"] = u.DisplayName
		}
		collabPayload = append(collabPayload, entry)
	}

	return map[string]any{
		"name":          ws.ID,
		"title":         ws.Title,
		"description":   ws.Description,
		"visibility":    ws.Visibility,
		"company":       ws.Company,
		"collaborators": collabPayload,
	}, nil
}

// UpdateWorkspaceSettings applies a partial update. Only the owner may
// call it. A present collaborator list replaces the stored one whole.
func (s *Service) UpdateWorkspaceSettings(ctx context.Context, userID, workspaceID string, input UpdateWorkspaceInput) (map[string]any, error) {
	ws, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if ws.OwnerID != userID {
		return nil, errForbidden("only the workspace owner can update settings")
	}

	if input.Title != nil {
		ws.Title = *input.Title
	}
	if input.Description != nil {
		ws.Description = *input.Description
	}
	if input.Visibility != nil {
		switch *input.Visibility {
		case access.VisibilityPrivate, access.VisibilityCompany, access.VisibilityShared:
			ws.Visibility = *input.Visibility
		default:
			return nil, errValidation(fmt.Sprintf("invalid visibility %q", *input.Visibility), nil)
		}
	}
	if input.Company != nil {
		ws.Company = *input.Company
	}

	if err := s.store.UpdateWorkspace(ctx, ws); err != nil {
		return nil, err
	}

	if input.Collaborators != nil {
		collaborators, err := s.validateCollaborators(ctx, *input.Collaborators)
		if err != nil {
			return nil, err
		}
		if err := s.store.ReplaceWorkspaceCollaborators(ctx, workspaceID, collaborators); err != nil {
			return nil, err
		}
	}

	return map[string]any{"ok": true}, nil
}

// DeleteWorkspace removes a workspace with no pages. The page check
// counts archived pages too. A populated workspace is reported as a
// structured failure payload rather than an error so clients can show
// the reason inline.
func (s *Service) DeleteWorkspace(ctx context.Context, userID, workspaceID string) (map[string]any, error) {
	ws, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if ws.OwnerID != userID {
		return nil, errForbidden("only the workspace owner can delete it")
	}

	count, err := s.store.WorkspacePageCount(ctx, workspaceID)
	if err != nil {
		return map[string]any{"ok": false, "error": err.Error()}, nil
	}
	if count > 0 {
		return map[string]any{"ok": false, "error": "Cannot delete workspace with pages. Move or delete pages first."}, nil
	}

	if err := s.store.DeleteWorkspace(ctx, workspaceID); err != nil {
		return map[string]any{"ok": false, "error": err.Error()}, nil
	}
	return map[string]any{"ok": true, "message": fmt.Sprintf("Workspace %s deleted", workspaceID)}, nil
}

// loadWorkspace fetches a workspace plus its collaborator list, mapping
// a missing row to a NotFound domain error.
func (s *Service) loadWorkspace(ctx context.Context, workspaceID string) (store.Workspace, []store.Collaborator, error) {
	ws, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Workspace{}, nil, errNotFound("workspace not found")
		}
		return store.Workspace{}, nil, err
	}
	collaborators, err := s.store.ListWorkspaceCollaborators(ctx, ws.ID)
	if err != nil {
		return store.Workspace{}, nil, err
	}
	return ws, collaborators, nil
}

func workspaceInfo(ws store.Workspace, collaborators []store.Collaborator) access.WorkspaceInfo {
	info := access.WorkspaceInfo{
		OwnerID:    ws.OwnerID,
		Visibility: ws.Visibility,
		Company:    ws.Company,
	}
	for _, c := range collaborators {
		info.Collaborators = append(info.Collaborators, access.Collaborator{
			UserID: c.UserID,
			Access: access.Level(c.Access),
		})
	}
	return info
}
