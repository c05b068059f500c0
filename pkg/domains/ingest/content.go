package ingest

import (
	"fmt"

	"github.com/zapdesk/pkg/entities"
	waProto "go.mau.fi/whatsmeow/binary/proto"
)

const unsupportedPlaceholder = "[Media or unsupported message type]"

// ExtractContent maps a provider message payload to its canonical
// content, type, mimetype and filename. Pure function; unsupported
// payloads degrade to a placeholder instead of failing ingestion.
func ExtractContent(msg *waProto.Message) (content string, messageType entities.MessageType, mimeType, fileName string) {
	if msg == nil {
		return unsupportedPlaceholder, entities.MessageText, "", ""
	}

	switch {
	case msg.GetConversation() != "":
		return msg.GetConversation(), entities.MessageText, "", ""

	case msg.GetExtendedTextMessage() != nil:
		return msg.GetExtendedTextMessage().GetText(), entities.MessageText, "", ""

	case msg.GetImageMessage() != nil:
		image := msg.GetImageMessage()
		return image.GetCaption(), entities.MessageImage, image.GetMimetype(), ""

	case msg.GetVideoMessage() != nil:
		video := msg.GetVideoMessage()
		return video.GetCaption(), entities.MessageVideo, video.GetMimetype(), ""

	case msg.GetAudioMessage() != nil:
		return "", entities.MessageAudio, msg.GetAudioMessage().GetMimetype(), ""

	case msg.GetDocumentMessage() != nil:
		document := msg.GetDocumentMessage()
		return document.GetCaption(), entities.MessageDocument, document.GetMimetype(), document.GetFileName()

	case msg.GetStickerMessage() != nil:
		return "", entities.MessageSticker, msg.GetStickerMessage().GetMimetype(), ""

	case msg.GetLocationMessage() != nil:
		location := msg.GetLocationMessage()
		return fmt.Sprintf("%f,%f", location.GetDegreesLatitude(), location.GetDegreesLongitude()),
			entities.MessageLocation, "", ""

	case msg.GetContactMessage() != nil:
		return msg.GetContactMessage().GetDisplayName(), entities.MessageContact, "", ""

	default:
		return unsupportedPlaceholder, entities.MessageText, "", ""
	}
}
