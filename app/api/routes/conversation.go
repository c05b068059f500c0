package routes

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zapdesk/pkg/constant"
	"github.com/zapdesk/pkg/domains/conversation"
	"github.com/zapdesk/pkg/dtos"
	"github.com/zapdesk/pkg/entities"
	"github.com/zapdesk/pkg/middleware"
)

func ConversationRoutes(r *gin.RouterGroup, s conversation.Service) {
	authGroup := r.Group("", middleware.CheckAuth())
	{
		authGroup.GET("", listConversations(s))
		authGroup.GET("/:id", getConversation(s))
		authGroup.GET("/:id/messages", listConversationMessages(s))
		authGroup.PUT("/:id/assign", assignConversation(s))
		authGroup.PUT("/:id/mode", setConversationMode(s))
		authGroup.PUT("/:id/close", closeConversation(s))
	}
}

func listConversations(s conversation.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))

		var instanceID *uint
		if raw := c.Query("instance_id"); raw != "" {
			parsed, err := strconv.ParseUint(raw, 10, 32)
			if err != nil {
				c.JSON(400, gin.H{"error": constant.INVALID_REQUEST})
				return
			}
			id := uint(parsed)
			instanceID = &id
		}

		conversations, total, err := s.List(c, instanceID, c.Query("status"), page)
		if err != nil {
			c.JSON(500, gin.H{"error": err.Error()})
			return
		}

		c.JSON(200, gin.H{
			"data":  conversations,
			"total": total,
			"page":  page,
		})
	}
}

func getConversation(s conversation.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		conv, err := s.Get(c, id)
		if err != nil {
			c.JSON(404, gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"data": conv})
	}
}

func listConversationMessages(s conversation.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))

		messages, err := s.Messages(c, id, page)
		if err != nil {
			c.JSON(500, gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"data": messages, "page": page})
	}
}

func assignConversation(s conversation.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var req dtos.AssignConversationDTO
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": constant.INVALID_REQUEST})
			return
		}

		conv, err := s.Assign(c, id, req.UserID)
		if err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"message": constant.UPDATED, "data": conv})
	}
}

func closeConversation(s conversation.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		conv, err := s.Close(c, id)
		if err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"message": constant.UPDATED, "data": conv})
	}
}

func setConversationMode(s conversation.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var req dtos.SetConversationModeDTO
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": constant.INVALID_REQUEST})
			return
		}

		conv, err := s.SetMode(c, id, entities.ConversationMode(req.Mode))
		if err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"message": constant.UPDATED, "data": conv})
	}
}
