package app

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"workbench/api/internal/store"
	"workbench/api/internal/util"
)

var errAttachmentsDisabled = domainError(http.StatusServiceUnavailable, "ATTACHMENTS_UNAVAILABLE", "Attachment storage not configured", nil)

// UploadAttachment streams a file into object storage and records it
// against the page. Requires edit access to the page.
func (s *Service) UploadAttachment(ctx context.Context, userID, pageID, fileName, contentType string, size int64, body io.Reader) (map[string]any, error) {
	if s.files == nil {
		return nil, errAttachmentsDisabled
	}
	if _, err := s.requirePageWrite(ctx, userID, pageID); err != nil {
		return nil, err
	}
	if fileName == "" {
		return nil, errValidation("file name is required", nil)
	}

	attachment := store.Attachment{
		ID:          util.NewID("att"),
		PageID:      pageID,
		FileName:    fileName,
		ContentType: contentType,
		Size:        size,
		UploadedBy:  userID,
	}
	attachment.ObjectKey = fmt.Sprintf("%s/%s/%s", pageID, attachment.ID, fileName)

	if err := s.files.Put(ctx, attachment.ObjectKey, contentType, size, body); err != nil {
		return nil, err
	}
	if err := s.store.InsertAttachment(ctx, attachment); err != nil {
		return nil, err
	}
	return map[string]any{
		"name":      attachment.ID,
		"file_name": attachment.FileName,
		"size":      attachment.Size,
	}, nil
}

// OpenAttachment returns the stored metadata and a reader over the
// object body. The caller must close the reader.
func (s *Service) OpenAttachment(ctx context.Context, userID, attachmentID string) (store.Attachment, io.ReadCloser, error) {
	if s.files == nil {
		return store.Attachment{}, nil, errAttachmentsDisabled
	}
	attachment, err := s.store.GetAttachment(ctx, attachmentID)
	if err != nil {
		if isNoRows(err) {
			return store.Attachment{}, nil, errNotFound("attachment not found")
		}
		return store.Attachment{}, nil, err
	}
	if _, err := s.requirePageRead(ctx, userID, attachment.PageID); err != nil {
		return store.Attachment{}, nil, err
	}
	body, err := s.files.Get(ctx, attachment.ObjectKey)
	if err != nil {
		return store.Attachment{}, nil, err
	}
	return attachment, body, nil
}

func (s *Service) ListAttachments(ctx context.Context, userID, pageID string) ([]map[string]any, error) {
	if _, err := s.requirePageRead(ctx, userID, pageID); err != nil {
		return nil, err
	}
	attachments, err := s.store.ListPageAttachments(ctx, pageID)
	if err != nil {
		return nil, err
	}
	payload := make([]map[string]any, 0, len(attachments))
	for _, a := range attachments {
		payload = append(payload, map[string]any{
			"name":         a.ID,
			"file_name":    a.FileName,
			"content_type": a.ContentType,
			"size":         a.Size,
			"uploaded_by":  a.UploadedBy,
			"creation":     a.CreatedAt,
		})
	}
	return payload, nil
}
