package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"workbench/api/internal/access"
	"workbench/api/internal/search"
	"workbench/api/internal/store"
	"workbench/api/internal/util"
)

type CreatePageInput struct {
	Workspace     string              `json:"workspace"`
	Title         string              `json:"title"`
	ContentJSON   string              `json:"contentJson"`
	Visibility    string              `json:"visibility"`
	Company       string              `json:"company"`
	Collaborators []CollaboratorInput `json:"collaborators"`
}

func (s *Service) CreatePage(ctx context.Context, userID string, input CreatePageInput) (map[string]any, error) {
	ws, collaborators, err := s.loadWorkspace(ctx, input.Workspace)
	if err != nil {
		return nil, err
	}
	user, err := s.userInfo(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !s.resolver.WorkspaceAccess(workspaceInfo(ws, collaborators), user, true) {
		return nil, errForbidden("you don't have permission to create pages in this workspace")
	}

	pageCollaborators, err := s.validateCollaborators(ctx, input.Collaborators)
	if err != nil {
		return nil, err
	}

	title, err := s.uniqueTitleInWorkspace(ctx, ws.ID, input.Title)
	if err != nil {
		return nil, err
	}

	maxPosition, err := s.store.MaxPagePosition(ctx, ws.ID)
	if err != nil {
		return nil, err
	}

	visibility := input.Visibility
	if visibility == "" {
		visibility = access.PageUseWorkspace
	}

	content := input.ContentJSON
	if content == "" {
		content = fmt.Sprintf(`{"blocks":[{"id":"%s","type":"paragraph","content":""}]}`, util.ShortID())
	}

	page := store.Page{
		ID:           util.NewID("pag"),
		WorkspaceID:  ws.ID,
		Title:        title,
		Position:     maxPosition + 1,
		Visibility:   visibility,
		Company:      input.Company,
		ContentJSON:  content,
		CreatedBy:    userID,
		LastEditedBy: userID,
	}
	if err := s.store.InsertPage(ctx, page, pageCollaborators); err != nil {
		return nil, err
	}

	if s.search != nil {
		s.search.IndexPage(search.PageRecord{
			ID:           page.ID,
			Title:        page.Title,
			WorkspaceID:  page.WorkspaceID,
			Visibility:   page.Visibility,
			LastEditedBy: page.LastEditedBy,
		})
	}

	return map[string]any{"name": page.ID, "title": page.Title, "workspace": ws.ID}, nil
}

// uniqueTitleInWorkspace resolves title collisions within one workspace
// by suffixing a counter, falling back to a timestamp suffix after a
// thousand taken slots. It never fails with a duplicate error.
func (s *Service) uniqueTitleInWorkspace(ctx context.Context, workspaceID, title string) (string, error) {
	base := title
	if base == "" {
		base = "Untitled"
	}
	final := base
	counter := 1
	for {
		exists, err := s.store.PageTitleExists(ctx, workspaceID, final)
		if err != nil {
			return "", err
		}
		if !exists {
			return final, nil
		}
		final = fmt.Sprintf("%s %d", base, counter)
		counter++
		if counter > 1000 {
			return fmt.Sprintf("%s %d", base, time.Now().Unix()), nil
		}
	}
}

func (s *Service) GetPage(ctx context.Context, userID, pageID string) (map[string]any, error) {
	page, err := s.requirePageRead(ctx, userID, pageID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"name":         page.ID,
		"title":        page.Title,
		"content_json": page.ContentJSON,
		"is_archived":  page.IsArchived,
		"modified":     page.UpdatedAt,
	}, nil
}

// UpdatePage partially updates a page's title and body. A title change
// dedups against page titles across all workspaces, not just the page's
// own workspace; the create path scopes narrower. Existing titles keep
// the wide check because renames already live with it.
func (s *Service) UpdatePage(ctx context.Context, userID, pageID string, title, contentJSON *string) (map[string]any, error) {
	page, err := s.requirePageWrite(ctx, userID, pageID)
	if err != nil {
		return nil, err
	}

	if title != nil {
		newTitle := *title
		if newTitle == "" {
			newTitle = "Untitled"
		}
		if newTitle != page.Title {
			exists, err := s.store.PageTitleExists(ctx, "", newTitle)
			if err != nil {
				return nil, err
			}
			if exists {
				base := newTitle
				counter := 1
				for {
					candidate := fmt.Sprintf("%s %d", base, counter)
					taken, err := s.store.PageTitleExists(ctx, "", candidate)
					if err != nil {
						return nil, err
					}
					if !taken {
						newTitle = candidate
						break
					}
					counter++
				}
			}
		}
		page.Title = newTitle
	}

	if contentJSON != nil {
		var parsed map[string]any
		if err := json.Unmarshal([]byte(*contentJSON), &parsed); err != nil {
			return nil, errValidation("invalid content_json", nil)
		}
		page.ContentJSON = *contentJSON
	}

	if page.Title == "" {
		page.Title = "Untitled"
	}

	page.LastEditedBy = userID
	if err := s.store.UpdatePage(ctx, page); err != nil {
		return nil, err
	}

	if s.search != nil {
		s.search.IndexPage(search.PageRecord{
			ID:           page.ID,
			Title:        page.Title,
			WorkspaceID:  page.WorkspaceID,
			Visibility:   page.Visibility,
			LastEditedBy: page.LastEditedBy,
		})
	}

	return map[string]any{"ok": true, "modified": time.Now().UTC()}, nil
}

// DeletePage archives by default. A hard delete removes the row and
// cascades over the page's inline collections, items, comments and
// attachments; the schema carries no foreign keys into those tables,
// so the cascade runs here. A failed collection cascade aborts the
// delete before anything else is touched, leaving the page in place
// for a retry.
func (s *Service) DeletePage(ctx context.Context, userID, pageID string, hard bool) (map[string]any, error) {
	_, err := s.requirePageWrite(ctx, userID, pageID)
	if err != nil {
		return nil, err
	}

	if !hard {
		if err := s.store.ArchivePage(ctx, pageID); err != nil {
			return nil, err
		}
		return map[string]any{"ok": true}, nil
	}

	cascade := s.DeletePageCollections(ctx, pageID)
	if success, _ := cascade["success"].(bool); !success {
		reason, _ := cascade["error"].(string)
		return map[string]any{"ok": false, "error": reason}, nil
	}
	if _, err := s.store.DeletePageComments(ctx, pageID); err != nil {
		return nil, err
	}
	if s.files != nil {
		stored, err := s.store.ListPageAttachments(ctx, pageID)
		if err != nil {
			return nil, err
		}
		for _, attachment := range stored {
			if err := s.files.Remove(ctx, attachment.ObjectKey); err != nil {
				return nil, err
			}
		}
	}
	if _, err := s.store.DeletePageAttachments(ctx, pageID); err != nil {
		return nil, err
	}
	if err := s.store.DeletePage(ctx, pageID); err != nil {
		return nil, err
	}
	if s.search != nil {
		s.search.DeletePage(pageID)
	}
	return map[string]any{"ok": true}, nil
}

// MovePage reassigns the page's workspace pointer. Position and title
// are left as-is, so the page may land with a colliding title or an
// out-of-range position in the target workspace.
func (s *Service) MovePage(ctx context.Context, userID, pageID, workspaceID string) (map[string]any, error) {
	if _, err := s.requirePageWrite(ctx, userID, pageID); err != nil {
		return nil, err
	}
	ws, collaborators, err := s.loadWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	user, err := s.userInfo(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !s.resolver.WorkspaceAccess(workspaceInfo(ws, collaborators), user, true) {
		return nil, errForbidden("you don't have permission to move pages into this workspace")
	}

	if err := s.store.SetPageWorkspace(ctx, pageID, workspaceID); err != nil {
		return map[string]any{"ok": false, "error": err.Error()}, nil
	}
	return map[string]any{"ok": true, "message": fmt.Sprintf("Page moved to workspace %s", workspaceID)}, nil
}

// ListPages returns the non-archived pages of a workspace the user may
// see, ordered by position then creation time. Page bodies are never
// included.
func (s *Service) ListPages(ctx context.Context, userID, workspaceID string) ([]map[string]any, error) {
	ws, wsCollaborators, err := s.loadWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	user, err := s.userInfo(ctx, userID)
	if err != nil {
		return nil, err
	}
	workspaceReadable := s.resolver.WorkspaceAccess(workspaceInfo(ws, wsCollaborators), user, false)

	pages, err := s.store.ListWorkspacePages(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	result := []map[string]any{}
	for _, page := range pages {
		info := access.PageInfo{
			CreatedBy:  page.CreatedBy,
			Visibility: page.Visibility,
			Company:    page.Company,
		}
		if page.Visibility == access.PageSpecificUsers {
			info.Collaborators, err = s.store.ListPageCollaborators(ctx, page.ID)
			if err != nil {
				return nil, err
			}
		}
		if !s.resolver.PageVisible(info, user, workspaceReadable) {
			continue
		}
		result = append(result, map[string]any{
			"name":             page.ID,
			"title":            page.Title,
			"page_order":       page.Position,
			"last_edited_date": page.UpdatedAt,
			"last_edited_by":   page.LastEditedBy,
			"visibility":       page.Visibility,
		})
	}
	return result, nil
}

// SearchPages runs a title search and filters the hits down to pages
// the user is allowed to see.
func (s *Service) SearchPages(ctx context.Context, userID string, query search.Query) (search.Response, error) {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: query.Text}, nil
	}
	resp := s.search.Search(query)

	filtered := make([]search.Result, 0, len(resp.Results))
	for _, hit := range resp.Results {
		if _, err := s.requirePageRead(ctx, userID, hit.ID); err != nil {
			continue
		}
		filtered = append(filtered, hit)
	}
	resp.Results = filtered
	resp.Total = len(filtered)
	return resp, nil
}

// requirePageRead loads a page and checks the caller can see it.
func (s *Service) requirePageRead(ctx context.Context, userID, pageID string) (store.Page, error) {
	return s.requirePage(ctx, userID, pageID, false)
}

// requirePageWrite loads a page and checks the caller can edit it. The
// page creator can always edit; otherwise workspace write access is
// required.
func (s *Service) requirePageWrite(ctx context.Context, userID, pageID string) (store.Page, error) {
	return s.requirePage(ctx, userID, pageID, true)
}

func (s *Service) requirePage(ctx context.Context, userID, pageID string, write bool) (store.Page, error) {
	page, err := s.store.GetPage(ctx, pageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Page{}, errNotFound("page not found")
		}
		return store.Page{}, err
	}
	if page.CreatedBy == userID {
		return page, nil
	}

	user, err := s.userInfo(ctx, userID)
	if err != nil {
		return store.Page{}, err
	}
	ws, wsCollaborators, err := s.loadWorkspace(ctx, page.WorkspaceID)
	if err != nil {
		return store.Page{}, err
	}

	if write {
		if !s.resolver.WorkspaceAccess(workspaceInfo(ws, wsCollaborators), user, true) {
			return store.Page{}, errForbidden("you don't have permission to edit this page")
		}
		return page, nil
	}

	workspaceReadable := s.resolver.WorkspaceAccess(workspaceInfo(ws, wsCollaborators), user, false)
	info := access.PageInfo{
		CreatedBy:  page.CreatedBy,
		Visibility: page.Visibility,
		Company:    page.Company,
	}
	if page.Visibility == access.PageSpecificUsers {
		info.Collaborators, err = s.store.ListPageCollaborators(ctx, page.ID)
		if err != nil {
			return store.Page{}, err
		}
	}
	if !s.resolver.PageVisible(info, user, workspaceReadable) {
		return store.Page{}, errForbidden("you don't have permission to read this page")
	}
	return page, nil
}
