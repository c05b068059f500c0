package constant

const (
	INSTANCE_STARTED      = "Instance session started"
	INSTANCE_DISCONNECTED = "Instance disconnected successfully"
	MESSAGE_SENT          = "Message sent successfully"
	MARKER_ADDED          = "Event marker added successfully"
	QR_CODE_GENERATED     = "QR code generated successfully"
	STATUS_RETRIEVED      = "Status retrieved successfully"
	MARKED_AS_READ        = "Conversation marked as read"

	INSTANCE_NOT_CONNECTED = "Instance session not connected"
	INVALID_PHONE_NUMBER   = "Invalid phone number format"
	MEDIA_UPLOAD_FAILED    = "Failed to upload media"
	FILE_READ_FAILED       = "Failed to read file data"
)
