package app

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"workbench/api/internal/access"
	"workbench/api/internal/attachments"
	"workbench/api/internal/auth"
	"workbench/api/internal/authpw"
	"workbench/api/internal/config"
	"workbench/api/internal/search"
	"workbench/api/internal/store"
	"workbench/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Company      string
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	CreateUser(context.Context, store.User) error
	GetUserByID(context.Context, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	UserExists(context.Context, string) (bool, error)
	ListCompanyUsers(context.Context, string) ([]store.User, error)

	InsertWorkspace(context.Context, store.Workspace, []store.Collaborator) error
	GetWorkspace(context.Context, string) (store.Workspace, error)
	ListWorkspaceCollaborators(context.Context, string) ([]store.Collaborator, error)
	ListWorkspacesOwnedBy(context.Context, string) ([]store.Workspace, error)
	ListWorkspacesWithCollaborator(context.Context, string) ([]store.Workspace, error)
	ListCompanyWorkspaces(context.Context, string) ([]store.Workspace, error)
	UpdateWorkspace(context.Context, store.Workspace) error
	ReplaceWorkspaceCollaborators(context.Context, string, []store.Collaborator) error
	DeleteWorkspace(context.Context, string) error
	WorkspacePageCount(context.Context, string) (int, error)

	InsertPage(context.Context, store.Page, []store.Collaborator) error
	GetPage(context.Context, string) (store.Page, error)
	PageTitleExists(context.Context, string, string) (bool, error)
	MaxPagePosition(context.Context, string) (int, error)
	UpdatePage(context.Context, store.Page) error
	ArchivePage(context.Context, string) error
	DeletePage(context.Context, string) error
	SetPageWorkspace(context.Context, string, string) error
	ListWorkspacePages(context.Context, string) ([]store.Page, error)
	ListPageCollaborators(context.Context, string) ([]string, error)
	ListAllPages(context.Context) ([]store.Page, error)

	GetCollectionByBlock(context.Context, string, string) (store.InlineCollection, error)
	InsertCollectionRaw(context.Context, store.InlineCollection) error
	UpdateCollectionRaw(context.Context, store.InlineCollection) error
	ListPageCollections(context.Context, string) ([]store.InlineCollection, error)
	DeleteCollection(context.Context, string) error

	ListCollectionItems(context.Context, string, int, int) ([]store.InlineItem, error)
	GetItem(context.Context, string, string) (store.InlineItem, error)
	InsertItemRaw(context.Context, store.InlineItem) error
	UpdateItemRaw(context.Context, store.InlineItem) error
	UpdateItemBodyRaw(context.Context, string, string) error
	DeleteItem(context.Context, string) error
	DeleteCollectionItems(context.Context, string) (int, error)

	InsertComment(context.Context, store.Comment) error
	ListUnresolvedComments(context.Context, string) ([]store.Comment, error)
	ResolveComment(context.Context, string) error
	DeletePageComments(context.Context, string) (int, error)

	InsertAttachment(context.Context, store.Attachment) error
	GetAttachment(context.Context, string) (store.Attachment, error)
	ListPageAttachments(context.Context, string) ([]store.Attachment, error)
	DeletePageAttachments(context.Context, string) (int, error)

	Ping(ctx context.Context) error
}

type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (string, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
	Ping(ctx context.Context) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	resolver *access.Resolver
	authpw   *authpw.Service
	search   *search.Service
	files    *attachments.Service
}

func New(cfg config.Config, dataStore *store.PostgresStore, sessions sessionStore, searchService *search.Service, files *attachments.Service) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		resolver: access.NewResolver(cfg.DefaultCompany),
		authpw:   authpw.NewService(dataStore),
		search:   searchService,
		files:    files,
	}
}

func (s *Service) SignUp(ctx context.Context, req authpw.SignUpRequest) (Session, error) {
	user, err := s.authpw.SignUp(ctx, req)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) SignIn(ctx context.Context, req authpw.SignInRequest) (Session, error) {
	user, err := s.authpw.SignIn(ctx, req)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	userID, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:     user.ID,
		Name:    user.DisplayName,
		Company: user.Company,
		JTI:     jti,
		Exp:     expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Company:      user.Company,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    claims.Sub,
		UserName:  claims.Name,
		Company:   claims.Company,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

type UserSummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

// GetCompanyUsers lists enabled users sharing the caller's resolved
// company. Users with no company and no configured default get an empty
// list rather than an error.
func (s *Service) GetCompanyUsers(ctx context.Context, userID string) ([]UserSummary, error) {
	user, err := s.userInfo(ctx, userID)
	if err != nil {
		return nil, err
	}
	company := user.Company
	if company == "" {
		company = s.cfg.DefaultCompany
	}
	if company == "" {
		return []UserSummary{}, nil
	}
	users, err := s.store.ListCompanyUsers(ctx, company)
	if err != nil {
		return nil, err
	}
	out := make([]UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, UserSummary{ID: u.ID, DisplayName: u.DisplayName, Email: u.Email})
	}
	return out, nil
}

// userInfo loads the requesting user's profile for the resolver. A
// missing profile row is not fatal: the resolver falls back to the
// default company for users it cannot resolve.
func (s *Service) userInfo(ctx context.Context, userID string) (access.UserInfo, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return access.UserInfo{ID: userID}, nil
		}
		return access.UserInfo{}, err
	}
	return access.UserInfo{ID: user.ID, Company: user.Company}, nil
}

// Ping checks the health of service dependencies (database, etc.)
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
