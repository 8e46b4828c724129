package app

import (
	"context"
	"encoding/json"
	"fmt"

	"workbench/api/internal/access"
	"workbench/api/internal/store"
	"workbench/api/internal/util"
)

type ItemInput struct {
	ID       string          `json:"id"`
	Props    json.RawMessage `json:"props"`
	Content  json.RawMessage `json:"content"`
	Position float64         `json:"position"`
}

// collectionAccess gates collection-engine calls. Temporary pages are
// trusted outright: they have no stored page row to check against.
func (s *Service) collectionAccess(ctx context.Context, userID, pageID string, write bool) error {
	if access.TierFor(pageID) == access.TierTrusted {
		return nil
	}
	_, err := s.requirePage(ctx, userID, pageID, write)
	return err
}

// UpsertCollection creates or partially updates the collection bound to
// (page, block). Omitted fields keep their stored value on update and
// get empty defaults on create. Supplied fields must be valid JSON.
func (s *Service) UpsertCollection(ctx context.Context, userID, pageID, blockID string, schema, config, filters, sorts json.RawMessage) (map[string]any, error) {
	if pageID == "" {
		return nil, errValidation("page parameter is required", nil)
	}
	if err := s.collectionAccess(ctx, userID, pageID, true); err != nil {
		return nil, err
	}

	for name, raw := range map[string]json.RawMessage{"schema": schema, "config": config, "filters": filters, "sorts": sorts} {
		if raw != nil && !json.Valid(raw) {
			return nil, errValidation(fmt.Sprintf("invalid %s payload", name), nil)
		}
	}

	collection, err := s.store.GetCollectionByBlock(ctx, pageID, blockID)
	switch {
	case err == nil:
		if schema != nil {
			collection.SchemaJSON = string(schema)
		}
		if config != nil {
			collection.ConfigJSON = string(config)
		}
		if filters != nil {
			collection.FiltersJSON = string(filters)
		}
		if sorts != nil {
			collection.SortsJSON = string(sorts)
		}
		if err := s.store.UpdateCollectionRaw(ctx, collection); err != nil {
			return nil, err
		}
	case isNoRows(err):
		collection = store.InlineCollection{
			ID:          util.ShortID(),
			PageID:      pageID,
			BlockID:     blockID,
			SchemaJSON:  rawOrDefault(schema, "{}"),
			ConfigJSON:  rawOrDefault(config, "{}"),
			FiltersJSON: rawOrDefault(filters, "[]"),
			SortsJSON:   rawOrDefault(sorts, "[]"),
		}
		if err := s.store.InsertCollectionRaw(ctx, collection); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	return map[string]any{
		"success":    true,
		"collection": collection.ID,
		"schema":     json.RawMessage(collection.SchemaJSON),
		"config":     json.RawMessage(collection.ConfigJSON),
		"filters":    json.RawMessage(collection.FiltersJSON),
		"sorts":      json.RawMessage(collection.SortsJSON),
	}, nil
}

func rawOrDefault(raw json.RawMessage, fallback string) string {
	if raw == nil {
		return fallback
	}
	return string(raw)
}

// QueryItems lists the non-archived items of the collection bound to
// (page, block), ordered by position then creation time. A block with
// no collection yet yields an empty item list, not an error.
func (s *Service) QueryItems(ctx context.Context, userID, pageID, blockID string, limit, offset int) (map[string]any, error) {
	if err := s.collectionAccess(ctx, userID, pageID, false); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	collection, err := s.store.GetCollectionByBlock(ctx, pageID, blockID)
	if err != nil {
		if isNoRows(err) {
			return map[string]any{"success": true, "items": []map[string]any{}}, nil
		}
		return nil, err
	}

	items, err := s.store.ListCollectionItems(ctx, collection.ID, limit, offset)
	if err != nil {
		return nil, err
	}

	payload := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payload = append(payload, itemPayload(item))
	}
	return map[string]any{"success": true, "items": payload}, nil
}

func itemPayload(item store.InlineItem) map[string]any {
	return map[string]any{
		"name":     item.ID,
		"props":    json.RawMessage(orEmptyObject(item.PropsJSON)),
		"content":  json.RawMessage(orEmptyObject(item.ContentJSON)),
		"position": item.Position,
		"creation": item.CreatedAt,
		"modified": item.UpdatedAt,
	}
}

func orEmptyObject(raw string) string {
	if raw == "" {
		return "{}"
	}
	return raw
}

// UpsertItem writes an item into the collection bound to (page, block).
// The collection must already exist. An item carrying an id is updated
// in place and un-archived; otherwise a fresh id is generated.
func (s *Service) UpsertItem(ctx context.Context, userID, pageID, blockID string, input ItemInput) (map[string]any, error) {
	if err := s.collectionAccess(ctx, userID, pageID, true); err != nil {
		return nil, err
	}

	collection, err := s.store.GetCollectionByBlock(ctx, pageID, blockID)
	if err != nil {
		if isNoRows(err) {
			return nil, errNotFound("collection not found")
		}
		return nil, err
	}

	props := rawOrDefault(input.Props, "{}")
	content := rawOrDefault(input.Content, "{}")
	if !json.Valid([]byte(props)) || !json.Valid([]byte(content)) {
		return nil, errValidation("invalid item payload", nil)
	}

	item := store.InlineItem{
		ID:           input.ID,
		CollectionID: collection.ID,
		PropsJSON:    props,
		ContentJSON:  content,
		Position:     input.Position,
	}
	if item.ID == "" {
		item.ID = util.ShortID()
		if err := s.store.InsertItemRaw(ctx, item); err != nil {
			return nil, err
		}
	} else {
		if err := s.store.UpdateItemRaw(ctx, item); err != nil {
			return nil, err
		}
	}

	return map[string]any{
		"success": true,
		"item": map[string]any{
			"id":       item.ID,
			"props":    json.RawMessage(props),
			"content":  json.RawMessage(content),
			"position": item.Position,
		},
	}, nil
}

func (s *Service) DeleteItem(ctx context.Context, userID, pageID, blockID, itemID string) (map[string]any, error) {
	if err := s.collectionAccess(ctx, userID, pageID, true); err != nil {
		return nil, err
	}

	item, err := s.collectionItem(ctx, pageID, blockID, itemID)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteItem(ctx, item.ID); err != nil {
		return nil, err
	}
	return map[string]any{"success": true}, nil
}

func (s *Service) GetItem(ctx context.Context, userID, pageID, blockID, itemID string) (map[string]any, error) {
	if err := s.collectionAccess(ctx, userID, pageID, false); err != nil {
		return nil, err
	}

	item, err := s.collectionItem(ctx, pageID, blockID, itemID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "item": itemPayload(item)}, nil
}

func (s *Service) SaveItemBody(ctx context.Context, userID, pageID, blockID, itemID string, contentJSON json.RawMessage) (map[string]any, error) {
	if err := s.collectionAccess(ctx, userID, pageID, true); err != nil {
		return nil, err
	}

	item, err := s.collectionItem(ctx, pageID, blockID, itemID)
	if err != nil {
		return nil, err
	}
	content := rawOrDefault(contentJSON, "{}")
	if !json.Valid([]byte(content)) {
		return nil, errValidation("invalid content payload", nil)
	}
	if err := s.store.UpdateItemBodyRaw(ctx, item.ID, content); err != nil {
		return nil, err
	}
	return map[string]any{"success": true}, nil
}

// collectionItem resolves (page, block, item) down to a stored item,
// failing NotFound at whichever level is missing.
func (s *Service) collectionItem(ctx context.Context, pageID, blockID, itemID string) (store.InlineItem, error) {
	collection, err := s.store.GetCollectionByBlock(ctx, pageID, blockID)
	if err != nil {
		if isNoRows(err) {
			return store.InlineItem{}, errNotFound("collection not found")
		}
		return store.InlineItem{}, err
	}
	item, err := s.store.GetItem(ctx, collection.ID, itemID)
	if err != nil {
		if isNoRows(err) {
			return store.InlineItem{}, errNotFound("item not found")
		}
		return store.InlineItem{}, err
	}
	return item, nil
}

// PromoteCollection will lift an inline collection into a standalone
// database. Not implemented yet; the endpoint acknowledges so clients
// can ship the button behind a flag.
func (s *Service) PromoteCollection(ctx context.Context, userID, pageID, blockID string) (map[string]any, error) {
	if err := s.collectionAccess(ctx, userID, pageID, true); err != nil {
		return nil, err
	}
	return map[string]any{
		"success": true,
		"message": "Promotion to global database not yet implemented",
	}, nil
}

// DeletePageCollectionsForUser is the endpoint-facing wrapper around
// DeletePageCollections: it applies the usual collection-engine access
// gate before cascading.
func (s *Service) DeletePageCollectionsForUser(ctx context.Context, userID, pageID string) (map[string]any, error) {
	if err := s.collectionAccess(ctx, userID, pageID, true); err != nil {
		return nil, err
	}
	return s.DeletePageCollections(ctx, pageID), nil
}

// DeletePageCollections removes every collection bound to the page,
// items first. It never returns an error: failures land in the payload
// so callers branch on the success flag. Calling it twice is safe and
// reports zero counts the second time.
func (s *Service) DeletePageCollections(ctx context.Context, pageID string) map[string]any {
	collections, err := s.store.ListPageCollections(ctx, pageID)
	if err != nil {
		return map[string]any{"success": false, "error": err.Error()}
	}

	deletedCollections := 0
	deletedItems := 0
	for _, collection := range collections {
		n, err := s.store.DeleteCollectionItems(ctx, collection.ID)
		if err != nil {
			return map[string]any{"success": false, "error": err.Error()}
		}
		deletedItems += n
		if err := s.store.DeleteCollection(ctx, collection.ID); err != nil {
			return map[string]any{"success": false, "error": err.Error()}
		}
		deletedCollections++
	}

	return map[string]any{
		"success":             true,
		"message":             fmt.Sprintf("Deleted %d collections and %d items for page %s", deletedCollections, deletedItems, pageID),
		"deleted_collections": deletedCollections,
		"deleted_items":       deletedItems,
	}
}
