package provider

// Webhook payload shapes posted back by the hosted gateway. These are
// the only provider-specific shapes the HTTP layer sees; the normalizer
// converts them into canonical inbound events immediately.

const (
	WebhookMessageUpsert    = "messages.upsert"
	WebhookMessageUpdate    = "messages.update"
	WebhookMessageDelete    = "messages.delete"
	WebhookConnectionUpdate = "connection.update"
)

type WebhookPayload struct {
	Event      string             `json:"event" binding:"required"`
	InstanceID string             `json:"instance_id"`
	Message    *WebhookMessage    `json:"message,omitempty"`
	Status     *WebhookStatus     `json:"status,omitempty"`
	Connection *WebhookConnection `json:"connection,omitempty"`
}

type WebhookMessage struct {
	ID        string `json:"id"`
	RemoteJID string `json:"remote_jid"`
	FromMe    bool   `json:"from_me"`
	PushName  string `json:"push_name"`
	Type      string `json:"type"`
	Content   string `json:"content"`
	MediaURL  string `json:"media_url,omitempty"`
	MimeType  string `json:"mime_type,omitempty"`
	FileName  string `json:"file_name,omitempty"`
	QuotedID  string `json:"quoted_id,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type WebhookStatus struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"` // DELIVERY_ACK | READ | ERROR
}

type WebhookConnection struct {
	State string `json:"state"` // connecting | open | close
}
