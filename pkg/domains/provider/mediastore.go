package provider

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalMediaStore keeps uploaded attachments on disk and serves them
// through the app's /media static route. The hosted gateway fetches
// media by URL, so uploads must land somewhere it can reach.
type LocalMediaStore struct {
	dir     string
	baseURL string
}

func NewLocalMediaStore(dir, baseURL string) (*LocalMediaStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media dir: %v", err)
	}
	return &LocalMediaStore{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

func (s *LocalMediaStore) Upload(ctx context.Context, data []byte, mimeType, fileName string) (string, error) {
	ext := filepath.Ext(fileName)
	if ext == "" {
		if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
			ext = exts[0]
		}
	}

	name := uuid.New().String() + ext
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to store media: %v", err)
	}
	return s.baseURL + "/media/" + name, nil
}

// ResolveURL passes absolute URLs through and anchors relative refs on
// the public base URL.
func (s *LocalMediaStore) ResolveURL(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("empty media reference")
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref, nil
	}
	return s.baseURL + "/" + strings.TrimPrefix(ref, "/"), nil
}
