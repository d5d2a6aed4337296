package catalog

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/vectord/internal/apperr"
	"github.com/fyrsmithlabs/vectord/internal/events"
	"github.com/fyrsmithlabs/vectord/internal/ingest"
	"github.com/fyrsmithlabs/vectord/internal/metadata"
	"github.com/fyrsmithlabs/vectord/internal/vectorstore"
)

// IngestFileInput carries an uploaded document.
type IngestFileInput struct {
	IndexID  string
	FileName string
	// MimeType is the declared content type; detected when empty.
	MimeType string
	Data     []byte
	Metadata map[string]string
}

// IngestTextInput is the body of IngestText.
type IngestTextInput struct {
	IndexID  string            `json:"indexId"`
	Content  string            `json:"content"`
	Title    string            `json:"title,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// IngestFile extracts, chunks, embeds and stores an uploaded document.
func (c *Catalog) IngestFile(ctx context.Context, owner string, in IngestFileInput) Envelope[ingest.Result] {
	data := in.Data
	if data == nil {
		data = []byte{}
	}
	res, err := c.ingest.Ingest(ctx, ingest.Request{
		OwnerUserID: owner,
		IndexID:     in.IndexID,
		Source:      ingest.Source{Bytes: data},
		FileName:    in.FileName,
		MimeType:    in.MimeType,
		Metadata:    in.Metadata,
	})
	if err != nil {
		return fail[ingest.Result](c.logger, err)
	}
	return ok(res, "File uploaded successfully")
}

// IngestText chunks, embeds and stores a text blob.
func (c *Catalog) IngestText(ctx context.Context, owner string, in IngestTextInput) Envelope[ingest.Result] {
	res, err := c.ingest.Ingest(ctx, ingest.Request{
		OwnerUserID: owner,
		IndexID:     in.IndexID,
		Source:      ingest.Source{Text: in.Content},
		Title:       in.Title,
		Metadata:    in.Metadata,
	})
	if err != nil {
		return fail[ingest.Result](c.logger, err)
	}
	return ok(res, "Text ingested successfully")
}

// GetFileList lists an index's files, newest first.
func (c *Catalog) GetFileList(ctx context.Context, owner, indexID string) Envelope[[]metadata.File] {
	files, err := c.store.ListFiles(ctx, owner, indexID)
	if err != nil {
		return fail[[]metadata.File](c.logger, storeErr("catalog.getFileList", MsgIndexNotFound, err))
	}
	return ok(files, "")
}

// GetFile returns a file with its index and chunks.
func (c *Catalog) GetFile(ctx context.Context, owner, id string) Envelope[metadata.FileDetail] {
	f, err := c.store.GetFile(ctx, owner, id)
	if err != nil {
		return fail[metadata.FileDetail](c.logger, storeErr("catalog.getFile", MsgFileNotFound, err))
	}
	return ok(f, "")
}

// GetFileChunks returns a file's chunks in chunk order.
func (c *Catalog) GetFileChunks(ctx context.Context, owner, fileID string) Envelope[[]metadata.Chunk] {
	chunks, err := c.store.FileChunks(ctx, owner, fileID)
	if err != nil {
		return fail[[]metadata.Chunk](c.logger, storeErr("catalog.getFileChunks", MsgFileNotFound, err))
	}
	return ok(chunks, "")
}

// DeleteFile removes a file's vectors and then its rows.
func (c *Catalog) DeleteFile(ctx context.Context, owner, id string) Envelope[Deleted] {
	const op = "catalog.deleteFile"
	f, err := c.store.GetFile(ctx, owner, id)
	if err != nil {
		return fail[Deleted](c.logger, storeErr(op, MsgFileNotFound, err))
	}

	ids := make([]string, len(f.Chunks))
	for i, ch := range f.Chunks {
		ids[i] = ch.VectorID
	}
	if len(ids) > 0 {
		err := c.vectors.Delete(ctx, f.Index.Name, ids)
		if err != nil && !errors.Is(err, vectorstore.ErrIndexNotFound) {
			return fail[Deleted](c.logger, apperr.Dependency(op, apperr.DepVectorStore, err))
		}
	}
	if err := c.store.DeleteFile(ctx, owner, id); err != nil {
		return fail[Deleted](c.logger, storeErr(op, MsgFileNotFound, err))
	}

	c.publish(ctx, events.Event{
		Type:       events.TypeFileDeleted,
		OwnerID:    owner,
		ProjectID:  f.Index.ProjectID,
		IndexID:    f.Index.ID,
		IndexName:  f.Index.Name,
		FileID:     f.ID,
		FileName:   f.Name,
		ChunkCount: len(ids),
	})
	return ok(Deleted{ID: id}, "File deleted successfully")
}
