// Package access computes effective permissions over the nested
// workspace -> page ownership hierarchy. The resolver is stateless and
// pure given its inputs; the default company fallback is threaded in at
// construction time rather than read from process-global state.
package access

import "strings"

// TempPagePrefix marks client-side placeholder pages that are not yet
// durably persisted. Operations against such pages bypass access checks
// entirely: the editor creates inline collections against pages before
// the page itself is committed, at which point nobody owns the page yet.
const TempPagePrefix = "temp-page-"

// Tier is the trust level of a request against the collection engine.
type Tier int

const (
	// TierNormal requests are subject to the full page access checks.
	TierNormal Tier = iota
	// TierTrusted requests skip page access checks (temporary pages).
	TierTrusted
)

// TierFor sniffs the page id for the temporary-page convention. The
// prefix rule is the compatibility contract with existing clients.
func TierFor(pageID string) Tier {
	if strings.HasPrefix(pageID, TempPagePrefix) {
		return TierTrusted
	}
	return TierNormal
}

// Level is a collaborator access level.
type Level string

const (
	LevelViewer Level = "Viewer"
	LevelEditor Level = "Editor"
)

// Workspace visibility modes.
const (
	VisibilityPrivate = "Private"
	VisibilityCompany = "Company"
	VisibilityShared  = "Shared"
)

// Page visibility modes. The wire values carry spaces; they predate this
// service and clients round-trip them verbatim.
const (
	PageUseWorkspace  = "Use Workspace"
	PagePrivate       = "Private"
	PageCompany       = "Company"
	PageSpecificUsers = "Specific Users"
)

// Collaborator is one entry of a workspace collaborator list.
type Collaborator struct {
	UserID string
	Access Level
}

// WorkspaceInfo is the subset of a workspace record the resolver needs.
type WorkspaceInfo struct {
	OwnerID       string
	Visibility    string
	Company       string
	Collaborators []Collaborator
}

// PageInfo is the subset of a page record the resolver needs.
type PageInfo struct {
	CreatedBy     string
	Visibility    string
	Company       string
	Collaborators []string
}

// UserInfo identifies a requesting user and their profile company.
type UserInfo struct {
	ID      string
	Company string
}

// Resolver computes effective permissions.
type Resolver struct {
	defaultCompany string
}

func NewResolver(defaultCompany string) *Resolver {
	return &Resolver{defaultCompany: defaultCompany}
}

// companyOf resolves a user's company, falling back to the configured
// default when the profile has none.
func (r *Resolver) companyOf(user UserInfo) string {
	if user.Company != "" {
		return user.Company
	}
	return r.defaultCompany
}

// WorkspaceAccess reports whether user may read (requireWrite=false) or
// mutate (requireWrite=true) the workspace. The owner is an implicit
// Editor. Listed collaborators pass reads at any level; writes require
// Editor. Company visibility grants read and write alike to users whose
// resolved company matches the workspace's company.
func (r *Resolver) WorkspaceAccess(ws WorkspaceInfo, user UserInfo, requireWrite bool) bool {
	if ws.OwnerID == user.ID {
		return true
	}

	for _, collab := range ws.Collaborators {
		if collab.UserID != user.ID {
			continue
		}
		if !requireWrite || collab.Access == LevelEditor {
			return true
		}
	}

	if ws.Visibility == VisibilityCompany {
		company := r.companyOf(user)
		if company != "" && company == ws.Company {
			return true
		}
	}

	return false
}

// PageVisible reports whether user may see the page in listings.
// workspaceReadable is the result of WorkspaceAccess(ws, user, false) for
// the page's owning workspace; it is only consulted for the
// Use Workspace mode. Unrecognized visibility values deny.
func (r *Resolver) PageVisible(page PageInfo, user UserInfo, workspaceReadable bool) bool {
	switch page.Visibility {
	case PageUseWorkspace:
		return workspaceReadable
	case PagePrivate:
		// Only the page creator, not even the workspace owner.
		return page.CreatedBy == user.ID
	case PageCompany:
		userCompany := r.companyOf(user)
		pageCompany := page.Company
		if pageCompany == "" {
			pageCompany = r.defaultCompany
		}
		return userCompany != "" && userCompany == pageCompany
	case PageSpecificUsers:
		for _, collaborator := range page.Collaborators {
			if collaborator == user.ID {
				return true
			}
		}
		return false
	default:
		// Fail closed on anything we do not recognize.
		return false
	}
}
