package app

import (
	"context"
	"time"

	"workbench/api/internal/store"
	"workbench/api/internal/util"
)

// AddComment attaches a comment to a page, optionally anchored to a
// block. Read access to the page is enough to comment.
func (s *Service) AddComment(ctx context.Context, userID, pageID, blockID, text string) (map[string]any, error) {
	if _, err := s.requirePageRead(ctx, userID, pageID); err != nil {
		return nil, err
	}

	comment := store.Comment{
		ID:      util.NewID("cmt"),
		PageID:  pageID,
		BlockID: blockID,
		Text:    text,
		Author:  userID,
	}
	if err := s.store.InsertComment(ctx, comment); err != nil {
		return nil, err
	}
	return map[string]any{"name": comment.ID, "creation": time.Now().UTC()}, nil
}

// ListComments returns a page's unresolved comments, oldest first.
// Resolved comments never reappear.
func (s *Service) ListComments(ctx context.Context, userID, pageID string) ([]map[string]any, error) {
	if _, err := s.requirePageRead(ctx, userID, pageID); err != nil {
		return nil, err
	}
	comments, err := s.store.ListUnresolvedComments(ctx, pageID)
	if err != nil {
		return nil, err
	}
	payload := make([]map[string]any, 0, len(comments))
	for _, c := range comments {
		payload = append(payload, map[string]any{
			"name":         c.ID,
			"block_id":     c.BlockID,
			"comment_text": c.Text,
			"author":       c.Author,
			"creation":     c.CreatedAt,
			"modified":     c.UpdatedAt,
		})
	}
	return payload, nil
}

// ResolveComment flips the resolved flag. Resolving an already resolved
// or unknown comment succeeds without effect.
func (s *Service) ResolveComment(ctx context.Context, userID, commentID string) (map[string]any, error) {
	if err := s.store.ResolveComment(ctx, commentID); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}
