package provider

import (
	"context"
	"time"

	"github.com/zapdesk/pkg/entities"
)

// Result is what a provider returns after accepting a message. The
// provider message id is the correlation key for later receipts.
type Result struct {
	ProviderMessageID string
	Timestamp         time.Time
}

// Media carries an outbound attachment. Data is used by the embedded
// provider (direct upload); URL by the hosted gateway.
type Media struct {
	Data     []byte
	URL      string
	MimeType string
	FileName string
	Caption  string
}

// Sender is the single outbound contract both provider backends
// implement. MarkRead is best-effort: callers fire it detached and only
// log failures.
type Sender interface {
	SendText(ctx context.Context, instance *entities.Instance, toJID, content, quotedID string) (Result, error)
	SendMedia(ctx context.Context, instance *entities.Instance, toJID string, media Media) (Result, error)
	MarkRead(ctx context.Context, instance *entities.Instance, remoteJID string, messageIDs []string) error
}

// MediaStore is the narrow interface to the external storage
// collaborator: the core never knows the backend.
type MediaStore interface {
	ResolveURL(ctx context.Context, ref string) (string, error)
	Upload(ctx context.Context, data []byte, mimeType, fileName string) (string, error)
}
