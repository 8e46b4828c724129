package app

import (
	"context"
	"encoding/json"
	"strings"
)

// FindBacklinks scans every non-archived page body for references to
// target. A page counts at most once no matter how many of its blocks
// match; pages with bodies that fail to parse are skipped silently.
func (s *Service) FindBacklinks(ctx context.Context, target string) ([]map[string]any, error) {
	pages, err := s.store.ListAllPages(ctx)
	if err != nil {
		return nil, err
	}

	backlinks := []map[string]any{}
	for _, page := range pages {
		if page.ContentJSON == "" {
			continue
		}
		var content struct {
			Blocks []map[string]any `json:"blocks"`
		}
		if err := json.Unmarshal([]byte(page.ContentJSON), &content); err != nil {
			continue
		}
		for _, block := range content.Blocks {
			text, _ := block["text"].(string)
			if text == "" {
				continue
			}
			if strings.Contains(text, target) || strings.Contains(text, page.ID) {
				backlinks = append(backlinks, map[string]any{
					"name":     page.ID,
					"title":    page.Title,
					"modified": page.UpdatedAt,
				})
				break
			}
		}
	}
	return backlinks, nil
}
