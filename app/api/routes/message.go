package routes

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zapdesk/pkg/constant"
	"github.com/zapdesk/pkg/domains/ingest"
	"github.com/zapdesk/pkg/domains/outbound"
	"github.com/zapdesk/pkg/domains/provider"
	"github.com/zapdesk/pkg/dtos"
	"github.com/zapdesk/pkg/entities"
	"github.com/zapdesk/pkg/middleware"
)

func MessageRoutes(r *gin.RouterGroup, out outbound.Service, ing ingest.Service) {
	authGroup := r.Group("", middleware.CheckAuth())
	{
		authGroup.POST("/send", sendMessage(out))
		authGroup.POST("/send-media", sendMediaMessage(out))
		authGroup.POST("/mark-read/:id", markConversationRead(ing))
		authGroup.POST("/marker", insertEventMarker(out))
	}
}

func sendMessage(out outbound.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		var req dtos.SendMessageDTO
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": constant.INVALID_REQUEST})
			return
		}

		message, err := out.Send(c, outbound.SendRequest{
			ConversationID:  req.ConversationID,
			Content:         req.Content,
			Type:            entities.MessageText,
			QuotedMessageID: req.QuotedMessageID,
			TemplateContext: req.TemplateContext,
		})
		if err != nil {
			c.JSON(500, gin.H{"error": err.Error()})
			return
		}

		c.JSON(200, gin.H{
			"message": constant.MESSAGE_SENT,
			"data":    message,
		})
	}
}

func sendMediaMessage(out outbound.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		conversationID, err := strconv.ParseUint(c.PostForm("conversation_id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "conversation_id is required"})
			return
		}
		mimeType := c.PostForm("mime_type")
		if mimeType == "" {
			c.JSON(400, gin.H{"error": "mime_type is required"})
			return
		}

		file, header, err := c.Request.FormFile("media")
		if err != nil {
			c.JSON(400, gin.H{"error": "Failed to get uploaded file"})
			return
		}
		defer file.Close()

		mediaData, err := io.ReadAll(file)
		if err != nil {
			c.JSON(500, gin.H{"error": constant.FILE_READ_FAILED})
			return
		}

		message, err := out.Send(c, outbound.SendRequest{
			ConversationID: uint(conversationID),
			Content:        c.PostForm("caption"),
			Type:           mediaMessageType(mimeType),
			Media: &provider.Media{
				Data:     mediaData,
				MimeType: mimeType,
				FileName: header.Filename,
				Caption:  c.PostForm("caption"),
			},
		})
		if err != nil {
			c.JSON(500, gin.H{"error": err.Error()})
			return
		}

		c.JSON(200, gin.H{
			"message": fmt.Sprintf("%s. File: %s", constant.MESSAGE_SENT, header.Filename),
			"data":    message,
		})
	}
}

func markConversationRead(ing ingest.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		if err := ing.MarkConversationRead(c, id); err != nil {
			c.JSON(500, gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"message": constant.MARKED_AS_READ})
	}
}

// insertEventMarker always stamps with the server clock; a
// client-supplied timestamp is never accepted.
func insertEventMarker(out outbound.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		var req dtos.EventMarkerDTO
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": constant.INVALID_REQUEST})
			return
		}

		marker, err := out.InsertMarker(c, req.ConversationID, entities.MarkerKind(req.Kind), req.Content)
		if err != nil {
			c.JSON(500, gin.H{"error": err.Error()})
			return
		}

		c.JSON(201, gin.H{
			"message": constant.MARKER_ADDED,
			"data":    marker,
		})
	}
}

func mediaMessageType(mimeType string) entities.MessageType {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return entities.MessageImage
	case strings.HasPrefix(mimeType, "video/"):
		return entities.MessageVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return entities.MessageAudio
	default:
		return entities.MessageDocument
	}
}
