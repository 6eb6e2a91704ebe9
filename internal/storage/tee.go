package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/JakeFAU/link-archiver/internal/archive"
)

// Tee writes every artifact to a primary store and copies it to an optional
// mirror. Only primary failures are returned; mirror failures are logged.
type Tee struct {
	primary archive.ArtifactStore
	mirror  archive.ArtifactStore
	logger  *zap.Logger
}

// NewTee builds a Tee. A nil mirror makes it a pass-through to primary.
func NewTee(primary, mirror archive.ArtifactStore, logger *zap.Logger) (*Tee, error) {
	if primary == nil {
		return nil, fmt.Errorf("primary store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tee{primary: primary, mirror: mirror, logger: logger}, nil
}

// PutObject stores r in the primary and returns the primary URI.
func (t *Tee) PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error) {
	if t.mirror == nil {
		return t.primary.PutObject(ctx, path, contentType, r)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read artifact: %w", err)
	}
	uri, err := t.primary.PutObject(ctx, path, contentType, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	mirrorURI, err := t.mirror.PutObject(ctx, path, contentType, bytes.NewReader(data))
	if err != nil {
		t.logger.Warn("artifact mirror failed", zap.String("path", path), zap.Error(err))
		return uri, nil
	}
	t.logger.Debug("artifact mirrored", zap.String("path", path), zap.String("uri", mirrorURI))
	return uri, nil
}
