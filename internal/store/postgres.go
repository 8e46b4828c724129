package store

import (
	"context"
	"database/sql"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---------------------------------------------------------------------------
// Users

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, company, enabled)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash, user.Company, user.Enabled)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, company, enabled
		FROM users WHERE id=$1
	`, userID).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Company, &user.Enabled)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, company, enabled
		FROM users WHERE email=$1
	`, email).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Company, &user.Enabled)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) UserExists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id=$1)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListCompanyUsers(ctx context.Context, company string) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, display_name, email, company, enabled
		FROM users
		WHERE company=$1 AND enabled
		ORDER BY display_name ASC
	`, company)
	if err != nil {
		return nil, fmt.Errorf("list company users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.DisplayName, &user.Email, &user.Company, &user.Enabled); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// ---------------------------------------------------------------------------
// Workspaces

func (s *PostgresStore) InsertWorkspace(ctx context.Context, ws Workspace, collaborators []Collaborator) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert workspace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO workspaces (id, title, description, owner_id, visibility, company)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, ws.ID, ws.Title, ws.Description, ws.OwnerID, ws.Visibility, ws.Company); err != nil {
		return fmt.Errorf("insert workspace: %w", err)
	}

	for i, collab := range collaborators {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO workspace_collaborators (workspace_id, user_id, access, sort_order)
			VALUES ($1, $2, $3, $4)
		`, ws.ID, collab.UserID, collab.Access, i); err != nil {
			return fmt.Errorf("insert workspace collaborator: %w", err)
		}
	}

	return tx.Commit()
}

func (s *PostgresStore) GetWorkspace(ctx context.Context, workspaceID string) (Workspace, error) {
	var ws Workspace
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, owner_id, visibility, company, created_at, updated_at
		FROM workspaces WHERE id=$1
	`, workspaceID).Scan(&ws.ID, &ws.Title, &ws.Description, &ws.OwnerID, &ws.Visibility, &ws.Company, &ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		return Workspace{}, err
	}
	return ws, nil
}

func (s *PostgresStore) ListWorkspaceCollaborators(ctx context.Context, workspaceID string) ([]Collaborator, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, access FROM workspace_collaborators
		WHERE workspace_id=$1 ORDER BY sort_order ASC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list workspace collaborators: %w", err)
	}
	defer rows.Close()

	var collaborators []Collaborator
	for rows.Next() {
		var collab Collaborator
		if err := rows.Scan(&collab.UserID, &collab.Access); err != nil {
			return nil, err
		}
		collaborators = append(collaborators, collab)
	}
	return collaborators, rows.Err()
}

const workspaceColumns = `id, title, description, owner_id, visibility, company, created_at, updated_at`

func (s *PostgresStore) scanWorkspaces(rows *sql.Rows) ([]Workspace, error) {
	defer rows.Close()
	var workspaces []Workspace
	for rows.Next() {
		var ws Workspace
		if err := rows.Scan(&ws.ID, &ws.Title, &ws.Description, &ws.OwnerID, &ws.Visibility, &ws.Company, &ws.CreatedAt, &ws.UpdatedAt); err != nil {
			return nil, err
		}
		workspaces = append(workspaces, ws)
	}
	return workspaces, rows.Err()
}

func (s *PostgresStore) ListWorkspacesOwnedBy(ctx context.Context, userID string) ([]Workspace, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+workspaceColumns+` FROM workspaces
		WHERE owner_id=$1 ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list owned workspaces: %w", err)
	}
	return s.scanWorkspaces(rows)
}

func (s *PostgresStore) ListWorkspacesWithCollaborator(ctx context.Context, userID string) ([]Workspace, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+workspaceColumns+` FROM workspaces
		WHERE id IN (SELECT workspace_id FROM workspace_collaborators WHERE user_id=$1)
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list collaborator workspaces: %w", err)
	}
	return s.scanWorkspaces(rows)
}

func (s *PostgresStore) ListCompanyWorkspaces(ctx context.Context, company string) ([]Workspace, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+workspaceColumns+` FROM workspaces
		WHERE visibility='Company' AND company=$1
		ORDER BY updated_at DESC
	`, company)
	if err != nil {
		return nil, fmt.Errorf("list company workspaces: %w", err)
	}
	return s.scanWorkspaces(rows)
}

func (s *PostgresStore) UpdateWorkspace(ctx context.Context, ws Workspace) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE workspaces
		SET title=$2, description=$3, visibility=$4, company=$5, updated_at=NOW()
		WHERE id=$1
	`, ws.ID, ws.Title, ws.Description, ws.Visibility, ws.Company)
	if err != nil {
		return fmt.Errorf("update workspace: %w", err)
	}
	return nil
}

// ReplaceWorkspaceCollaborators swaps the whole list atomically. There is
// no partial merge path; callers send the full desired list.
func (s *PostgresStore) ReplaceWorkspaceCollaborators(ctx context.Context, workspaceID string, collaborators []Collaborator) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace collaborators: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM workspace_collaborators WHERE workspace_id=$1`, workspaceID); err != nil {
		return fmt.Errorf("clear collaborators: %w", err)
	}
	for i, collab := range collaborators {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO workspace_collaborators (workspace_id, user_id, access, sort_order)
			VALUES ($1, $2, $3, $4)
		`, workspaceID, collab.UserID, collab.Access, i); err != nil {
			return fmt.Errorf("insert collaborator: %w", err)
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) DeleteWorkspace(ctx context.Context, workspaceID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM workspaces WHERE id=$1`, workspaceID)
	if err != nil {
		return fmt.Errorf("delete workspace: %w", err)
	}
	return nil
}

// WorkspacePageCount counts every page referencing the workspace,
// archived pages included.
func (s *PostgresStore) WorkspacePageCount(ctx context.Context, workspaceID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages WHERE workspace_id=$1`, workspaceID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count workspace pages: %w", err)
	}
	return count, nil
}

// ---------------------------------------------------------------------------
// Pages

const pageColumns = `id, workspace_id, title, position, visibility, company, content_json, created_by, last_edited_by, is_archived, created_at, updated_at`

func scanPage(row interface{ Scan(...any) error }) (Page, error) {
	var page Page
	err := row.Scan(&page.ID, &page.WorkspaceID, &page.Title, &page.Position, &page.Visibility,
		&page.Company, &page.ContentJSON, &page.CreatedBy, &page.LastEditedBy, &page.IsArchived,
		&page.CreatedAt, &page.UpdatedAt)
	return page, err
}

func (s *PostgresStore) InsertPage(ctx context.Context, page Page, collaborators []Collaborator) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert page: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO pages (id, workspace_id, title, position, visibility, company, content_json, created_by, last_edited_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, page.ID, page.WorkspaceID, page.Title, page.Position, page.Visibility, page.Company,
		page.ContentJSON, page.CreatedBy, page.LastEditedBy); err != nil {
		return fmt.Errorf("insert page: %w", err)
	}

	for _, collab := range collaborators {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO page_collaborators (page_id, user_id, access)
			VALUES ($1, $2, $3)
		`, page.ID, collab.UserID, collab.Access); err != nil {
			return fmt.Errorf("insert page collaborator: %w", err)
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) GetPage(ctx context.Context, pageID string) (Page, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+pageColumns+` FROM pages WHERE id=$1`, pageID)
	return scanPage(row)
}

// PageTitleExists checks title uniqueness. An empty workspaceID widens the
// check across all workspaces; the rename path uses that deliberately.
func (s *PostgresStore) PageTitleExists(ctx context.Context, workspaceID, title string) (bool, error) {
	var exists bool
	var err error
	if workspaceID == "" {
		err = s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM pages WHERE title=$1)`, title).Scan(&exists)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM pages WHERE title=$1 AND workspace_id=$2)`, title, workspaceID).Scan(&exists)
	}
	if err != nil {
		return false, fmt.Errorf("check page title: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) MaxPagePosition(ctx context.Context, workspaceID string) (int, error) {
	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(position) FROM pages WHERE workspace_id=$1`, workspaceID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max page position: %w", err)
	}
	return int(max.Int64), nil
}

func (s *PostgresStore) UpdatePage(ctx context.Context, page Page) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE pages
		SET title=$2, content_json=$3, last_edited_by=$4, updated_at=NOW()
		WHERE id=$1
	`, page.ID, page.Title, page.ContentJSON, page.LastEditedBy)
	if err != nil {
		return fmt.Errorf("update page: %w", err)
	}
	return nil
}

func (s *PostgresStore) ArchivePage(ctx context.Context, pageID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE pages SET is_archived=TRUE, updated_at=NOW() WHERE id=$1`, pageID)
	if err != nil {
		return fmt.Errorf("archive page: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeletePage(ctx context.Context, pageID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pages WHERE id=$1`, pageID)
	if err != nil {
		return fmt.Errorf("delete page: %w", err)
	}
	return nil
}

// SetPageWorkspace reassigns the owning workspace id. Nothing else moves:
// no title re-dedup, no collaborator rewrite, no position recompute.
func (s *PostgresStore) SetPageWorkspace(ctx context.Context, pageID, workspaceID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE pages SET workspace_id=$2, updated_at=NOW() WHERE id=$1`, pageID, workspaceID)
	if err != nil {
		return fmt.Errorf("move page: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListWorkspacePages(ctx context.Context, workspaceID string) ([]Page, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+pageColumns+` FROM pages
		WHERE workspace_id=$1 AND NOT is_archived
		ORDER BY position ASC, created_at ASC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list workspace pages: %w", err)
	}
	defer rows.Close()

	var pages []Page
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

func (s *PostgresStore) ListPageCollaborators(ctx context.Context, pageID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM page_collaborators WHERE page_id=$1`, pageID)
	if err != nil {
		return nil, fmt.Errorf("list page collaborators: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		users = append(users, userID)
	}
	return users, rows.Err()
}

// ListAllPages returns every non-archived page, for the backlink scan.
func (s *PostgresStore) ListAllPages(ctx context.Context) ([]Page, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+pageColumns+` FROM pages WHERE NOT is_archived ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list all pages: %w", err)
	}
	defer rows.Close()

	var pages []Page
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

// ---------------------------------------------------------------------------
// Inline collections

const collectionColumns = `id, page_id, block_id, schema_json, config_json, filters_json, sorts_json, created_at, updated_at`

func scanCollection(row interface{ Scan(...any) error }) (InlineCollection, error) {
	var collection InlineCollection
	err := row.Scan(&collection.ID, &collection.PageID, &collection.BlockID,
		&collection.SchemaJSON, &collection.ConfigJSON, &collection.FiltersJSON, &collection.SortsJSON,
		&collection.CreatedAt, &collection.UpdatedAt)
	return collection, err
}

func (s *PostgresStore) GetCollectionByBlock(ctx context.Context, pageID, blockID string) (InlineCollection, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+collectionColumns+` FROM inline_collections WHERE page_id=$1 AND block_id=$2
	`, pageID, blockID)
	return scanCollection(row)
}

// InsertCollectionRaw writes the row directly, bypassing any higher-level
// validation hooks. The unique (page_id, block_id) index is the only
// serialization point for concurrent upserts of the same key.
func (s *PostgresStore) InsertCollectionRaw(ctx context.Context, collection InlineCollection) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inline_collections (id, page_id, block_id, schema_json, config_json, filters_json, sorts_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, collection.ID, collection.PageID, collection.BlockID,
		collection.SchemaJSON, collection.ConfigJSON, collection.FiltersJSON, collection.SortsJSON)
	if err != nil {
		return fmt.Errorf("insert collection: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateCollectionRaw(ctx context.Context, collection InlineCollection) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE inline_collections
		SET schema_json=$2, config_json=$3, filters_json=$4, sorts_json=$5, updated_at=NOW()
		WHERE id=$1
	`, collection.ID, collection.SchemaJSON, collection.ConfigJSON, collection.FiltersJSON, collection.SortsJSON)
	if err != nil {
		return fmt.Errorf("update collection: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPageCollections(ctx context.Context, pageID string) ([]InlineCollection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+collectionColumns+` FROM inline_collections WHERE page_id=$1 ORDER BY created_at ASC
	`, pageID)
	if err != nil {
		return nil, fmt.Errorf("list page collections: %w", err)
	}
	defer rows.Close()

	var collections []InlineCollection
	for rows.Next() {
		collection, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		collections = append(collections, collection)
	}
	return collections, rows.Err()
}

func (s *PostgresStore) DeleteCollection(ctx context.Context, collectionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM inline_collections WHERE id=$1`, collectionID)
	if err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Inline items

const itemColumns = `id, collection_id, props_json, content_json, position, is_archived, created_at, updated_at`

func scanItem(row interface{ Scan(...any) error }) (InlineItem, error) {
	var item InlineItem
	err := row.Scan(&item.ID, &item.CollectionID, &item.PropsJSON, &item.ContentJSON,
		&item.Position, &item.IsArchived, &item.CreatedAt, &item.UpdatedAt)
	return item, err
}

func (s *PostgresStore) ListCollectionItems(ctx context.Context, collectionID string, limit, offset int) ([]InlineItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+` FROM inline_items
		WHERE collection_id=$1 AND NOT is_archived
		ORDER BY position ASC, created_at ASC
		LIMIT $2 OFFSET $3
	`, collectionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list collection items: %w", err)
	}
	defer rows.Close()

	var items []InlineItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) GetItem(ctx context.Context, collectionID, itemID string) (InlineItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+` FROM inline_items WHERE id=$1 AND collection_id=$2
	`, itemID, collectionID)
	return scanItem(row)
}

func (s *PostgresStore) InsertItemRaw(ctx context.Context, item InlineItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inline_items (id, collection_id, props_json, content_json, position, is_archived)
		VALUES ($1, $2, $3, $4, $5, FALSE)
	`, item.ID, item.CollectionID, item.PropsJSON, item.ContentJSON, item.Position)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// UpdateItemRaw overwrites props, content and position; an upsert always
// un-archives the item.
func (s *PostgresStore) UpdateItemRaw(ctx context.Context, item InlineItem) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE inline_items
		SET props_json=$2, content_json=$3, position=$4, is_archived=FALSE, updated_at=NOW()
		WHERE id=$1
	`, item.ID, item.PropsJSON, item.ContentJSON, item.Position)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// UpdateItemBodyRaw replaces only the body content, leaving props and
// position untouched.
func (s *PostgresStore) UpdateItemBodyRaw(ctx context.Context, itemID, contentJSON string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE inline_items SET content_json=$2, updated_at=NOW() WHERE id=$1
	`, itemID, contentJSON)
	if err != nil {
		return fmt.Errorf("update item body: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteItem(ctx context.Context, itemID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM inline_items WHERE id=$1`, itemID)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// DeleteCollectionItems removes every item of a collection and reports how
// many rows went away. Zero on a re-run is the expected idempotent result.
func (s *PostgresStore) DeleteCollectionItems(ctx context.Context, collectionID string) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM inline_items WHERE collection_id=$1`, collectionID)
	if err != nil {
		return 0, fmt.Errorf("delete collection items: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete collection items: %w", err)
	}
	return int(affected), nil
}

// ---------------------------------------------------------------------------
// Comments

func (s *PostgresStore) InsertComment(ctx context.Context, comment Comment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, page_id, block_id, comment_text, author)
		VALUES ($1, $2, $3, $4, $5)
	`, comment.ID, comment.PageID, comment.BlockID, comment.Text, comment.Author)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListUnresolvedComments(ctx context.Context, pageID string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, page_id, block_id, comment_text, author, is_resolved, created_at, updated_at
		FROM comments
		WHERE page_id=$1 AND NOT is_resolved
		ORDER BY created_at ASC
	`, pageID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		var comment Comment
		if err := rows.Scan(&comment.ID, &comment.PageID, &comment.BlockID, &comment.Text,
			&comment.Author, &comment.IsResolved, &comment.CreatedAt, &comment.UpdatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	return comments, rows.Err()
}

// ResolveComment flips the one-way resolved flag. Re-resolving is a no-op.
func (s *PostgresStore) ResolveComment(ctx context.Context, commentID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE comments SET is_resolved=TRUE, updated_at=NOW() WHERE id=$1
	`, commentID)
	if err != nil {
		return fmt.Errorf("resolve comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeletePageComments(ctx context.Context, pageID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE page_id=$1`, pageID)
	if err != nil {
		return 0, fmt.Errorf("delete page comments: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ---------------------------------------------------------------------------
// Attachments

func (s *PostgresStore) InsertAttachment(ctx context.Context, attachment Attachment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attachments (id, page_id, file_name, content_type, size, object_key, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, attachment.ID, attachment.PageID, attachment.FileName, attachment.ContentType,
		attachment.Size, attachment.ObjectKey, attachment.UploadedBy)
	if err != nil {
		return fmt.Errorf("insert attachment: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAttachment(ctx context.Context, attachmentID string) (Attachment, error) {
	var attachment Attachment
	err := s.db.QueryRowContext(ctx, `
		SELECT id, page_id, file_name, content_type, size, object_key, uploaded_by, created_at
		FROM attachments WHERE id=$1
	`, attachmentID).Scan(&attachment.ID, &attachment.PageID, &attachment.FileName,
		&attachment.ContentType, &attachment.Size, &attachment.ObjectKey, &attachment.UploadedBy, &attachment.CreatedAt)
	if err != nil {
		return Attachment{}, err
	}
	return attachment, nil
}

func (s *PostgresStore) ListPageAttachments(ctx context.Context, pageID string) ([]Attachment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, page_id, file_name, content_type, size, object_key, uploaded_by, created_at
		FROM attachments WHERE page_id=$1 ORDER BY created_at ASC
	`, pageID)
	if err != nil {
		return nil, fmt.Errorf("list page attachments: %w", err)
	}
	defer rows.Close()

	var attachments []Attachment
	for rows.Next() {
		var attachment Attachment
		if err := rows.Scan(&attachment.ID, &attachment.PageID, &attachment.FileName,
			&attachment.ContentType, &attachment.Size, &attachment.ObjectKey, &attachment.UploadedBy, &attachment.CreatedAt); err != nil {
			return nil, err
		}
		attachments = append(attachments, attachment)
	}
	return attachments, rows.Err()
}

func (s *PostgresStore) DeletePageAttachments(ctx context.Context, pageID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM attachments WHERE page_id=$1`, pageID)
	if err != nil {
		return 0, fmt.Errorf("delete page attachments: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
