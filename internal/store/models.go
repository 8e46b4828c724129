package store

import "time"

type User struct {
	ID           string
	DisplayName  string
	Email        string
	PasswordHash string
	Company      string
	Enabled      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Workspace struct {
	ID          string
	Title       string
	Description string
	OwnerID     string
	Visibility  string
	Company     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Collaborator is one entry of a workspace or page collaborator list.
// Access is "Viewer" or "Editor"; page collaborator lists ignore it.
type Collaborator struct {
	UserID string
	Access string
}

type Page struct {
	ID           string
	WorkspaceID  string
	Title        string
	Position     int
	Visibility   string
	Company      string
	ContentJSON  string
	CreatedBy    string
	LastEditedBy string
	IsArchived   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PageSummary is the public field subset returned by page listings.
// Content is never included in list results.
type PageSummary struct {
	ID           string
	Title        string
	Position     int
	Visibility   string
	Company      string
	CreatedBy    string
	LastEditedBy string
	LastEditedAt time.Time
}

type InlineCollection struct {
	ID          string
	PageID      string
	BlockID     string
	SchemaJSON  string
	ConfigJSON  string
	FiltersJSON string
	SortsJSON   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type InlineItem struct {
	ID           string
	CollectionID string
	PropsJSON    string
	ContentJSON  string
	Position     float64
	IsArchived   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Comment struct {
	ID         string
	PageID     string
	BlockID    string
	Text       string
	Author     string
	IsResolved bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Attachment struct {
	ID          string
	PageID      string
	FileName    string
	ContentType string
	Size        int64
	ObjectKey   string
	UploadedBy  string
	CreatedAt   time.Time
}
