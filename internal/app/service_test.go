package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"workbench/api/internal/access"
	"workbench/api/internal/authpw"
	"workbench/api/internal/config"
	"workbench/api/internal/store"
)

// memStore is an in-memory dataStore for service tests. It keeps just
// enough ordering state (a per-row sequence number standing in for
// creation time) to exercise the position/creation sort contracts.
type memStore struct {
	users       map[string]store.User
	workspaces  map[string]store.Workspace
	wsCollabs   map[string][]store.Collaborator
	pages       map[string]store.Page
	pageCollabs map[string][]string
	collections map[string]store.InlineCollection
	items       map[string]store.InlineItem
	comments    map[string]store.Comment
	attachments map[string]store.Attachment
	seq         int

	failCollectionDelete bool
}

func newMemStore() *memStore {
	return &memStore{
		users:       map[string]store.User{},
		workspaces:  map[string]store.Workspace{},
		wsCollabs:   map[string][]store.Collaborator{},
		pages:       map[string]store.Page{},
		pageCollabs: map[string][]string{},
		collections: map[string]store.InlineCollection{},
		items:       map[string]store.InlineItem{},
		comments:    map[string]store.Comment{},
		attachments: map[string]store.Attachment{},
	}
}

func (f *memStore) tick() time.Time {
	f.seq++
	return time.Unix(1700000000, 0).Add(time.Duration(f.seq) * time.Second)
}

func (f *memStore) CreateUser(_ context.Context, user store.User) error {
	f.users[user.ID] = user
	return nil
}

func (f *memStore) GetUserByID(_ context.Context, userID string) (store.User, error) {
	user, ok := f.users[userID]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *memStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (f *memStore) UserExists(_ context.Context, userID string) (bool, error) {
	_, ok := f.users[userID]
	return ok, nil
}

func (f *memStore) ListCompanyUsers(_ context.Context, company string) ([]store.User, error) {
	var users []store.User
	for _, user := range f.users {
		if user.Company == company && user.Enabled {
			users = append(users, user)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].DisplayName < users[j].DisplayName })
	return users, nil
}

func (f *memStore) InsertWorkspace(_ context.Context, ws store.Workspace, collaborators []store.Collaborator) error {
	ws.CreatedAt = f.tick()
	ws.UpdatedAt = ws.CreatedAt
	f.workspaces[ws.ID] = ws
	f.wsCollabs[ws.ID] = collaborators
	return nil
}

func (f *memStore) GetWorkspace(_ context.Context, workspaceID string) (store.Workspace, error) {
	ws, ok := f.workspaces[workspaceID]
	if !ok {
		return store.Workspace{}, sql.ErrNoRows
	}
	return ws, nil
}

func (f *memStore) ListWorkspaceCollaborators(_ context.Context, workspaceID string) ([]store.Collaborator, error) {
	return f.wsCollabs[workspaceID], nil
}

func (f *memStore) ListWorkspacesOwnedBy(_ context.Context, userID string) ([]store.Workspace, error) {
	return f.selectWorkspaces(func(ws store.Workspace) bool { return ws.OwnerID == userID }), nil
}

func (f *memStore) ListWorkspacesWithCollaborator(_ context.Context, userID string) ([]store.Workspace, error) {
	return f.selectWorkspaces(func(ws store.Workspace) bool {
		for _, c := range f.wsCollabs[ws.ID] {
			if c.UserID == userID {
				return true
			}
		}
		return false
	}), nil
}

func (f *memStore) ListCompanyWorkspaces(_ context.Context, company string) ([]store.Workspace, error) {
	return f.selectWorkspaces(func(ws store.Workspace) bool {
		return ws.Visibility == access.VisibilityCompany && ws.Company == company
	}), nil
}

func (f *memStore) selectWorkspaces(keep func(store.Workspace) bool) []store.Workspace {
	var out []store.Workspace
	for _, ws := range f.workspaces {
		if keep(ws) {
			out = append(out, ws)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

func (f *memStore) UpdateWorkspace(_ context.Context, ws store.Workspace) error {
	stored, ok := f.workspaces[ws.ID]
	if !ok {
		return sql.ErrNoRows
	}
	ws.CreatedAt = stored.CreatedAt
	ws.UpdatedAt = f.tick()
	f.workspaces[ws.ID] = ws
	return nil
}

func (f *memStore) ReplaceWorkspaceCollaborators(_ context.Context, workspaceID string, collaborators []store.Collaborator) error {
	f.wsCollabs[workspaceID] = collaborators
	return nil
}

func (f *memStore) DeleteWorkspace(_ context.Context, workspaceID string) error {
	delete(f.workspaces, workspaceID)
	delete(f.wsCollabs, workspaceID)
	return nil
}

func (f *memStore) WorkspacePageCount(_ context.Context, workspaceID string) (int, error) {
	count := 0
	for _, page := range f.pages {
		if page.WorkspaceID == workspaceID {
			count++
		}
	}
	return count, nil
}

func (f *memStore) InsertPage(_ context.Context, page store.Page, collaborators []store.Collaborator) error {
	page.CreatedAt = f.tick()
	page.UpdatedAt = page.CreatedAt
	f.pages[page.ID] = page
	var users []string
	for _, c := range collaborators {
		users = append(users, c.UserID)
	}
	f.pageCollabs[page.ID] = users
	return nil
}

func (f *memStore) GetPage(_ context.Context, pageID string) (store.Page, error) {
	page, ok := f.pages[pageID]
	if !ok {
		return store.Page{}, sql.ErrNoRows
	}
	return page, nil
}

func (f *memStore) PageTitleExists(_ context.Context, workspaceID, title string) (bool, error) {
	for _, page := range f.pages {
		if page.Title != title {
			continue
		}
		if workspaceID == "" || page.WorkspaceID == workspaceID {
			return true, nil
		}
	}
	return false, nil
}

func (f *memStore) MaxPagePosition(_ context.Context, workspaceID string) (int, error) {
	max := 0
	for _, page := range f.pages {
		if page.WorkspaceID == workspaceID && page.Position > max {
			max = page.Position
		}
	}
	return max, nil
}

func (f *memStore) UpdatePage(_ context.Context, page store.Page) error {
	stored, ok := f.pages[page.ID]
	if !ok {
		return sql.ErrNoRows
	}
	page.CreatedAt = stored.CreatedAt
	page.UpdatedAt = f.tick()
	f.pages[page.ID] = page
	return nil
}

func (f *memStore) ArchivePage(_ context.Context, pageID string) error {
	page, ok := f.pages[pageID]
	if !ok {
		return sql.ErrNoRows
	}
	page.IsArchived = true
	f.pages[pageID] = page
	return nil
}

func (f *memStore) DeletePage(_ context.Context, pageID string) error {
	delete(f.pages, pageID)
	delete(f.pageCollabs, pageID)
	return nil
}

func (f *memStore) SetPageWorkspace(_ context.Context, pageID, workspaceID string) error {
	page, ok := f.pages[pageID]
	if !ok {
		return sql.ErrNoRows
	}
	page.WorkspaceID = workspaceID
	f.pages[pageID] = page
	return nil
}

func (f *memStore) ListWorkspacePages(_ context.Context, workspaceID string) ([]store.Page, error) {
	var pages []store.Page
	for _, page := range f.pages {
		if page.WorkspaceID == workspaceID && !page.IsArchived {
			pages = append(pages, page)
		}
	}
	sort.Slice(pages, func(i, j int) bool {
		if pages[i].Position != pages[j].Position {
			return pages[i].Position < pages[j].Position
		}
		return pages[i].CreatedAt.Before(pages[j].CreatedAt)
	})
	return pages, nil
}

func (f *memStore) ListPageCollaborators(_ context.Context, pageID string) ([]string, error) {
	return f.pageCollabs[pageID], nil
}

func (f *memStore) ListAllPages(_ context.Context) ([]store.Page, error) {
	var pages []store.Page
	for _, page := range f.pages {
		if !page.IsArchived {
			pages = append(pages, page)
		}
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].CreatedAt.Before(pages[j].CreatedAt) })
	return pages, nil
}

func (f *memStore) GetCollectionByBlock(_ context.Context, pageID, blockID string) (store.InlineCollection, error) {
	for _, collection := range f.collections {
		if collection.PageID == pageID && collection.BlockID == blockID {
			return collection, nil
		}
	}
	return store.InlineCollection{}, sql.ErrNoRows
}

func (f *memStore) InsertCollectionRaw(_ context.Context, collection store.InlineCollection) error {
	collection.CreatedAt = f.tick()
	collection.UpdatedAt = collection.CreatedAt
	f.collections[collection.ID] = collection
	return nil
}

func (f *memStore) UpdateCollectionRaw(_ context.Context, collection store.InlineCollection) error {
	stored, ok := f.collections[collection.ID]
	if !ok {
		return sql.ErrNoRows
	}
	collection.CreatedAt = stored.CreatedAt
	collection.UpdatedAt = f.tick()
	f.collections[collection.ID] = collection
	return nil
}

func (f *memStore) ListPageCollections(_ context.Context, pageID string) ([]store.InlineCollection, error) {
	var out []store.InlineCollection
	for _, collection := range f.collections {
		if collection.PageID == pageID {
			out = append(out, collection)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *memStore) DeleteCollection(_ context.Context, collectionID string) error {
	if f.failCollectionDelete {
		return errors.New("induced collection delete failure")
	}
	delete(f.collections, collectionID)
	return nil
}

func (f *memStore) ListCollectionItems(_ context.Context, collectionID string, limit, offset int) ([]store.InlineItem, error) {
	var items []store.InlineItem
	for _, item := range f.items {
		if item.CollectionID == collectionID && !item.IsArchived {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Position != items[j].Position {
			return items[i].Position < items[j].Position
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if offset > len(items) {
		offset = len(items)
	}
	items = items[offset:]
	if limit < len(items) {
		items = items[:limit]
	}
	return items, nil
}

func (f *memStore) GetItem(_ context.Context, collectionID, itemID string) (store.InlineItem, error) {
	item, ok := f.items[itemID]
	if !ok || item.CollectionID != collectionID {
		return store.InlineItem{}, sql.ErrNoRows
	}
	return item, nil
}

func (f *memStore) InsertItemRaw(_ context.Context, item store.InlineItem) error {
	item.CreatedAt = f.tick()
	item.UpdatedAt = item.CreatedAt
	f.items[item.ID] = item
	return nil
}

// UpdateItemRaw mirrors the SQL UPDATE: an unknown id is a silent no-op,
// not an insert.
func (f *memStore) UpdateItemRaw(_ context.Context, item store.InlineItem) error {
	stored, ok := f.items[item.ID]
	if !ok {
		return nil
	}
	item.CreatedAt = stored.CreatedAt
	item.UpdatedAt = f.tick()
	item.IsArchived = false
	f.items[item.ID] = item
	return nil
}

func (f *memStore) UpdateItemBodyRaw(_ context.Context, itemID, contentJSON string) error {
	item, ok := f.items[itemID]
	if !ok {
		return sql.ErrNoRows
	}
	item.ContentJSON = contentJSON
	item.UpdatedAt = f.tick()
	f.items[itemID] = item
	return nil
}

func (f *memStore) DeleteItem(_ context.Context, itemID string) error {
	delete(f.items, itemID)
	return nil
}

func (f *memStore) DeleteCollectionItems(_ context.Context, collectionID string) (int, error) {
	count := 0
	for id, item := range f.items {
		if item.CollectionID == collectionID {
			delete(f.items, id)
			count++
		}
	}
	return count, nil
}

func (f *memStore) InsertComment(_ context.Context, comment store.Comment) error {
	comment.CreatedAt = f.tick()
	comment.UpdatedAt = comment.CreatedAt
	f.comments[comment.ID] = comment
	return nil
}

func (f *memStore) ListUnresolvedComments(_ context.Context, pageID string) ([]store.Comment, error) {
	var out []store.Comment
	for _, comment := range f.comments {
		if comment.PageID == pageID && !comment.IsResolved {
			out = append(out, comment)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *memStore) ResolveComment(_ context.Context, commentID string) error {
	comment, ok := f.comments[commentID]
	if !ok {
		return nil
	}
	comment.IsResolved = true
	f.comments[commentID] = comment
	return nil
}

func (f *memStore) DeletePageComments(_ context.Context, pageID string) (int, error) {
	count := 0
	for id, comment := range f.comments {
		if comment.PageID == pageID {
			delete(f.comments, id)
			count++
		}
	}
	return count, nil
}

func (f *memStore) InsertAttachment(_ context.Context, attachment store.Attachment) error {
	f.attachments[attachment.ID] = attachment
	return nil
}

func (f *memStore) GetAttachment(_ context.Context, attachmentID string) (store.Attachment, error) {
	attachment, ok := f.attachments[attachmentID]
	if !ok {
		return store.Attachment{}, sql.ErrNoRows
	}
	return attachment, nil
}

func (f *memStore) ListPageAttachments(_ context.Context, pageID string) ([]store.Attachment, error) {
	var out []store.Attachment
	for _, attachment := range f.attachments {
		if attachment.PageID == pageID {
			out = append(out, attachment)
		}
	}
	return out, nil
}

func (f *memStore) DeletePageAttachments(_ context.Context, pageID string) (int, error) {
	deleted := 0
	for id, attachment := range f.attachments {
		if attachment.PageID == pageID {
			delete(f.attachments, id)
			deleted++
		}
	}
	return deleted, nil
}

func (f *memStore) Ping(context.Context) error { return nil }

type memSessions struct {
	tokens map[string]string
}

func (m *memSessions) SaveRefreshSession(_ context.Context, tokenHash, userID string, _ time.Time) error {
	if m.tokens == nil {
		m.tokens = map[string]string{}
	}
	m.tokens[tokenHash] = userID
	return nil
}

func (m *memSessions) LookupRefreshSession(_ context.Context, tokenHash string) (string, error) {
	userID, ok := m.tokens[tokenHash]
	if !ok {
		return "", errors.New("refresh session not found")
	}
	return userID, nil
}

func (m *memSessions) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	delete(m.tokens, tokenHash)
	return nil
}

func (m *memSessions) Ping(context.Context) error { return nil }

func newTestService(ms *memStore, defaultCompany string) *Service {
	cfg := config.Config{
		JWTSecret:      "test-secret",
		AccessTTL:      time.Hour,
		RefreshTTL:     24 * time.Hour,
		DefaultCompany: defaultCompany,
	}
	return &Service{
		cfg:      cfg,
		store:    ms,
		sessions: &memSessions{},
		resolver: access.NewResolver(defaultCompany),
		authpw:   authpw.NewService(ms),
	}
}

func seedUser(ms *memStore, id, company string) {
	ms.users[id] = store.User{ID: id, DisplayName: id, Email: id + "@example.com", Company: company, Enabled: true}
}

func seedWorkspace(ms *memStore, id, owner, visibility, company string, collaborators ...store.Collaborator) {
	ms.workspaces[id] = store.Workspace{ID: id, Title: id, OwnerID: owner, Visibility: visibility, Company: company, CreatedAt: ms.tick()}
	ms.wsCollabs[id] = collaborators
}

func seedPage(ms *memStore, id, workspaceID, title, createdBy string, position int) {
	ms.pages[id] = store.Page{
		ID: id, WorkspaceID: workspaceID, Title: title, Position: position,
		Visibility: access.PageUseWorkspace, CreatedBy: createdBy, LastEditedBy: createdBy,
		ContentJSON: `{"blocks":[]}`, CreatedAt: ms.tick(),
	}
}

func domainStatus(t *testing.T, err error) int {
	t.Helper()
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	return domainErr.Status
}

func TestCreateWorkspaceSeedsGettingStartedPage(t *testing.T) {
	ms := newMemStore()
	seedUser(ms, "alice", "")
	service := newTestService(ms, "")

	payload, err := service.CreateWorkspace(context.Background(), "alice", CreateWorkspaceInput{Title: "Docs"})
	if err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	workspaceID := payload["name"].(string)

	var seeded *store.Page
	for _, page := range ms.pages {
		if page.WorkspaceID == workspaceID {
			p := page
			seeded = &p
		}
	}
	if seeded == nil {
		t.Fatal("expected a seeded page in the new workspace")
	}
	if seeded.Title != "Getting Started" {
		t.Fatalf("seeded page title = %q", seeded.Title)
	}

	var content struct {
		Blocks []map[string]any `json:"blocks"`
	}
	if err := json.Unmarshal([]byte(seeded.ContentJSON), &content); err != nil {
		t.Fatalf("seeded content does not parse: %v", err)
	}
	if len(content.Blocks) != 3 {
		t.Fatalf("seeded block count = %d, want 3", len(content.Blocks))
	}
	if content.Blocks[0]["type"] != "heading1" {
		t.Fatalf("first block type = %v, want heading1", content.Blocks[0]["type"])
	}
	for _, block := range content.Blocks[1:] {
		if block["type"] != "paragraph" {
			t.Fatalf("trailing block type = %v, want paragraph", block["type"])
		}
	}
}

func TestCreateWorkspaceRejectsUnknownCollaborator(t *testing.T) {
	ms := newMemStore()
	seedUser(ms, "alice", "")
	service := newTestService(ms, "")

	_, err := service.CreateWorkspace(context.Background(), "alice", CreateWorkspaceInput{
		Title:         "Docs",
		Collaborators: []CollaboratorInput{{User: "ghost", Access: "Editor"}},
	})
	if err == nil {
		t.Fatal("expected error for unknown collaborator")
	}
	if status := domainStatus(t, err); status != 422 {
		t.Fatalf("status = %d, want 422", status)
	}
	if !strings.Contains(err.Error(), "ghost") {
		t.Fatalf("error should name the offending user, got %v", err)
	}
}

func TestDeleteWorkspaceBlockedByArchivedPage(t *testing.T) {
	ms := newMemStore()
	seedUser(ms, "alice", "")
	seedWorkspace(ms, "wsp_1", "alice", access.VisibilityPrivate, "")
	seedPage(ms, "pag_1", "wsp_1", "Old", "alice", 1)
	if err := ms.ArchivePage(context.Background(), "pag_1"); err != nil {
		t.Fatal(err)
	}
	service := newTestService(ms, "")

	payload, err := service.DeleteWorkspace(context.Background(), "alice", "wsp_1")
	if err != nil {
		t.Fatalf("DeleteWorkspace: %v", err)
	}
	if payload["ok"] != false {
		t.Fatalf("payload = %v, want ok=false", payload)
	}
	if _, stillThere := ms.workspaces["wsp_1"]; !stillThere {
		t.Fatal("workspace should not have been deleted")
	}
}

func TestDeleteWorkspaceOwnerOnly(t *testing.T) {
	ms := newMemStore()
	seedUser(ms, "alice", "")
	seedUser(ms, "bob", "")
	seedWorkspace(ms, "wsp_1", "alice", access.VisibilityPrivate, "",
		store.Collaborator{UserID: "bob", Access: "Editor"})
	service := newTestService(ms, "")

	_, err := service.DeleteWorkspace(context.Background(), "bob", "wsp_1")
	if status := domainStatus(t, err); status != 403 {
		t.Fatalf("status = %d, want 403", status)
	}
}

func TestUpdateWorkspaceSettingsReplacesCollaborators(t *testing.T) {
	ms := newMemStore()
	seedUser(ms, "alice", "")
	seedUser(ms, "bob", "")
	seedUser(ms, "carol", "")
	seedWorkspace(ms, "wsp_1", "alice", access.VisibilityPrivate, "",
		store.Collaborator{UserID: "bob", Access: "Editor"})
	service := newTestService(ms, "")

	newTitle := "Renamed"
	collaborators := []CollaboratorInput{{User: "carol"}}
	_, err := service.UpdateWorkspaceSettings(context.Background(), "alice", "wsp_1", UpdateWorkspaceInput{
		Title:         &newTitle,
		Collaborators: &collaborators,
	})
	if err != nil {
		t.Fatalf("UpdateWorkspaceSettings: %v", err)
	}

	if ms.workspaces["wsp_1"].Title != "Renamed" {
		t.Fatalf("title = %q", ms.workspaces["wsp_1"].Title)
	}
	stored := ms.wsCollabs["wsp_1"]
	if len(stored) != 1 || stored[0].UserID != "carol" {
		t.Fatalf("collaborators = %v, want just carol", stored)
	}
	if stored[0].Access != "Viewer" {
		t.Fatalf("default access = %q, want Viewer", stored[0].Access)
	}
}

func TestListAccessibleWorkspacesDeduplicates(t *testing.T) {
	ms := newMemStore()
	seedUser(ms, "alice", "acme")
	seedWorkspace(ms, "wsp_owned", "alice", access.VisibilityCompany, "acme",
		store.Collaborator{UserID: "alice", Access: "Editor"})
	seedWorkspace(ms, "wsp_other", "bob", access.VisibilityCompany, "acme")
	service := newTestService(ms, "")

	result, err := service.ListAccessibleWorkspaces(context.Background(), "alice")
	if err != nil {
		t.Fatalf("ListAccessibleWorkspaces: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("got %d workspaces, want 2 (owned deduplicated): %v", len(result), result)
	}
}

func TestGetCompanyUsersFallsBackToDefaultCompany(t *testing.T) {
	ms := newMemStore()
	seedUser(ms, "alice", "")
	seedUser(ms, "bob", "acme")
	service := newTestService(ms, "acme")

	users, err := service.GetCompanyUsers(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetCompanyUsers: %v", err)
	}
	if len(users) != 1 || users[0].ID != "bob" {
		t.Fatalf("users = %v, want just bob", users)
	}
}
