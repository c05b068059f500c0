package dtos

type SendMessageDTO struct {
	ConversationID  uint              `json:"conversation_id" binding:"required"`
	Content         string            `json:"content" binding:"required"`
	QuotedMessageID string            `json:"quoted_message_id"`
	TemplateContext map[string]string `json:"template_context"`
}

type SendMediaMessageDTO struct {
	ConversationID uint   `json:"conversation_id" binding:"required"`
	Caption        string `json:"caption"`
	MediaData      []byte `json:"media_data" binding:"required"`
	MimeType       string `json:"mime_type" binding:"required"`
	FileName       string `json:"file_name"`
}

type EventMarkerDTO struct {
	ConversationID uint   `json:"conversation_id" binding:"required"`
	Kind           string `json:"kind" binding:"required,oneof=ticket_created ticket_closed conversation_reopened"`
	Content        string `json:"content" binding:"required"`
}
