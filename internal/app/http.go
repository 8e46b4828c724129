package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"workbench/api/internal/auth"
	"workbench/api/internal/authpw"
	"workbench/api/internal/search"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signup" {
		s.handleAuthSignUp(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signin" {
		s.handleAuthSignIn(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
			return
		}
		session, err := s.service.SessionFromToken(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": true, "userName": session.UserName, "userId": session.UserID, "company": session.Company})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/refresh" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.service.Refresh(r.Context(), body.RefreshToken)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token":        session.Token,
			"refreshToken": session.RefreshToken,
			"userName":     session.UserName,
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/logout" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = decodeBody(r, &body)
		_ = s.service.Logout(r.Context(), body.RefreshToken)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	parts := splitPath(r.URL.Path)

	// /api/workspaces...
	if len(parts) >= 2 && parts[0] == "api" && parts[1] == "workspaces" {
		switch {
		case len(parts) == 2 && r.Method == http.MethodGet:
			payload, err := s.service.ListAccessibleWorkspaces(r.Context(), session.UserID)
			s.respond(w, payload, err)
			return
		case len(parts) == 2 && r.Method == http.MethodPost:
			var body CreateWorkspaceInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.CreateWorkspace(r.Context(), session.UserID, body)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, payload)
			return
		case len(parts) == 3 && r.Method == http.MethodDelete:
			payload, err := s.service.DeleteWorkspace(r.Context(), session.UserID, parts[2])
			s.respond(w, payload, err)
			return
		case len(parts) == 4 && parts[3] == "settings" && r.Method == http.MethodGet:
			payload, err := s.service.GetWorkspaceSettings(r.Context(), session.UserID, parts[2])
			s.respond(w, payload, err)
			return
		case len(parts) == 4 && parts[3] == "settings" && r.Method == http.MethodPut:
			var body UpdateWorkspaceInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.UpdateWorkspaceSettings(r.Context(), session.UserID, parts[2], body)
			s.respond(w, payload, err)
			return
		case len(parts) == 4 && parts[3] == "pages" && r.Method == http.MethodGet:
			payload, err := s.service.ListPages(r.Context(), session.UserID, parts[2])
			s.respond(w, payload, err)
			return
		}
	}

	// /api/pages...
	if len(parts) >= 2 && parts[0] == "api" && parts[1] == "pages" {
		switch {
		case len(parts) == 2 && r.Method == http.MethodPost:
			var body CreatePageInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.CreatePage(r.Context(), session.UserID, body)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, payload)
			return
		case len(parts) == 3 && r.Method == http.MethodGet:
			payload, err := s.service.GetPage(r.Context(), session.UserID, parts[2])
			s.respond(w, payload, err)
			return
		case len(parts) == 3 && r.Method == http.MethodPut:
			var body struct {
				Title       *string `json:"title"`
				ContentJSON *string `json:"contentJson"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.UpdatePage(r.Context(), session.UserID, parts[2], body.Title, body.ContentJSON)
			s.respond(w, payload, err)
			return
		case len(parts) == 3 && r.Method == http.MethodDelete:
			hard := r.URL.Query().Get("hard") == "1" || r.URL.Query().Get("hard") == "true"
			payload, err := s.service.DeletePage(r.Context(), session.UserID, parts[2], hard)
			s.respond(w, payload, err)
			return
		case len(parts) == 4 && parts[3] == "move" && r.Method == http.MethodPost:
			var body struct {
				Workspace string `json:"workspace"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.MovePage(r.Context(), session.UserID, parts[2], body.Workspace)
			s.respond(w, payload, err)
			return
		case len(parts) == 4 && parts[3] == "backlinks" && r.Method == http.MethodGet:
			payload, err := s.service.FindBacklinks(r.Context(), parts[2])
			s.respond(w, payload, err)
			return
		case len(parts) == 4 && parts[3] == "comments" && r.Method == http.MethodGet:
			payload, err := s.service.ListComments(r.Context(), session.UserID, parts[2])
			s.respond(w, payload, err)
			return
		case len(parts) == 4 && parts[3] == "comments" && r.Method == http.MethodPost:
			var body struct {
				BlockID string `json:"blockId"`
				Text    string `json:"text"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.AddComment(r.Context(), session.UserID, parts[2], body.BlockID, body.Text)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, payload)
			return
		case len(parts) == 4 && parts[3] == "attachments" && r.Method == http.MethodGet:
			payload, err := s.service.ListAttachments(r.Context(), session.UserID, parts[2])
			s.respond(w, payload, err)
			return
		case len(parts) == 4 && parts[3] == "attachments" && r.Method == http.MethodPost:
			s.handleUploadAttachment(w, r, session, parts[2])
			return
		}
	}

	if len(parts) == 4 && parts[0] == "api" && parts[1] == "comments" && parts[3] == "resolve" && r.Method == http.MethodPost {
		payload, err := s.service.ResolveComment(r.Context(), session.UserID, parts[2])
		s.respond(w, payload, err)
		return
	}

	if len(parts) == 3 && parts[0] == "api" && parts[1] == "attachments" && r.Method == http.MethodGet {
		s.handleDownloadAttachment(w, r, session, parts[2])
		return
	}

	if len(parts) >= 2 && parts[0] == "api" && parts[1] == "inline" {
		s.handleInline(w, r, session, parts)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		s.handleSearch(w, r, session)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/users/company" {
		payload, err := s.service.GetCompanyUsers(r.Context(), session.UserID)
		s.respond(w, payload, err)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// handleInline routes the collection-engine endpoints. Every request
// body carries the page and block the collection is bound to.
func (s *HTTPServer) handleInline(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if r.Method != http.MethodPost || len(parts) != 4 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	var body struct {
		Page        string          `json:"page"`
		BlockID     string          `json:"blockId"`
		Schema      json.RawMessage `json:"schema"`
		Config      json.RawMessage `json:"config"`
		Filters     json.RawMessage `json:"filters"`
		Sorts       json.RawMessage `json:"sorts"`
		Limit       int             `json:"limit"`
		Offset      int             `json:"offset"`
		Item        *ItemInput      `json:"item"`
		ItemID      string          `json:"itemId"`
		ContentJSON json.RawMessage `json:"contentJson"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	ctx := r.Context()
	route := parts[2] + "/" + parts[3]
	switch route {
	case "collections/upsert":
		payload, err := s.service.UpsertCollection(ctx, session.UserID, body.Page, body.BlockID, body.Schema, body.Config, body.Filters, body.Sorts)
		s.respond(w, payload, err)
	case "collections/promote":
		payload, err := s.service.PromoteCollection(ctx, session.UserID, body.Page, body.BlockID)
		s.respond(w, payload, err)
	case "collections/delete-page":
		payload, err := s.service.DeletePageCollectionsForUser(ctx, session.UserID, body.Page)
		s.respond(w, payload, err)
	case "items/query":
		payload, err := s.service.QueryItems(ctx, session.UserID, body.Page, body.BlockID, body.Limit, body.Offset)
		s.respond(w, payload, err)
	case "items/upsert":
		if body.Item == nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "item is required", nil)
			return
		}
		payload, err := s.service.UpsertItem(ctx, session.UserID, body.Page, body.BlockID, *body.Item)
		s.respond(w, payload, err)
	case "items/delete":
		payload, err := s.service.DeleteItem(ctx, session.UserID, body.Page, body.BlockID, body.ItemID)
		s.respond(w, payload, err)
	case "items/get":
		payload, err := s.service.GetItem(ctx, session.UserID, body.Page, body.BlockID, body.ItemID)
		s.respond(w, payload, err)
	case "items/save-body":
		payload, err := s.service.SaveItemBody(ctx, session.UserID, body.Page, body.BlockID, body.ItemID, body.ContentJSON)
		s.respond(w, payload, err)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request, session Session) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	workspaceID := strings.TrimSpace(r.URL.Query().Get("workspaceId"))
	limit := 20
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
			return
		}
		limit = parsed
	}
	offset := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("offset")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "offset must be an integer", nil)
			return
		}
		offset = parsed
	}

	payload, err := s.service.SearchPages(r.Context(), session.UserID, search.Query{
		Text:              q,
		FilterWorkspaceID: workspaceID,
		Limit:             limit,
		Offset:            offset,
	})
	s.respond(w, payload, err)
}

func (s *HTTPServer) handleUploadAttachment(w http.ResponseWriter, r *http.Request, session Session, pageID string) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "multipart file field required", nil)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	payload, err := s.service.UploadAttachment(r.Context(), session.UserID, pageID, header.Filename, contentType, header.Size, file)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, payload)
}

func (s *HTTPServer) handleDownloadAttachment(w http.ResponseWriter, r *http.Request, session Session, attachmentID string) {
	attachment, body, err := s.service.OpenAttachment(r.Context(), session.UserID, attachmentID)
	if err != nil {
		s.fail(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", attachment.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachment.FileName))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}

// respond writes payload on success or maps the error to a response.
func (s *HTTPServer) respond(w http.ResponseWriter, payload any, err error) {
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) fail(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) handleAuthSignUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"displayName"`
		Company     string `json:"company"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	session, err := s.service.SignUp(r.Context(), authpw.SignUpRequest{
		Email:       body.Email,
		Password:    body.Password,
		DisplayName: body.DisplayName,
		Company:     body.Company,
	})
	if err != nil {
		if errors.Is(err, authpw.ErrEmailExists) {
			writeError(w, http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil)
			return
		}
		writeError(w, http.StatusBadRequest, "SIGNUP_FAILED", err.Error(), nil)
		return
	}

	writeJSON(w, http.StatusCreated, sessionPayload(session))
}

func (s *HTTPServer) handleAuthSignIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	session, err := s.service.SignIn(r.Context(), authpw.SignInRequest{
		Email:    body.Email,
		Password: body.Password,
	})
	if err != nil {
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
		return
	}

	writeJSON(w, http.StatusOK, sessionPayload(session))
}

func sessionPayload(session Session) map[string]any {
	return map[string]any{
		"accessToken":  session.Token,
		"refreshToken": session.RefreshToken,
		"userId":       session.UserID,
		"userName":     session.UserName,
		"company":      session.Company,
		"expiresAt":    session.ExpiresAt.Unix(),
	}
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return Session{}, false
		}
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return Session{}, false
	}
	return session, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if isNoRows(err) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
