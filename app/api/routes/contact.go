package routes

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zapdesk/pkg/constant"
	"github.com/zapdesk/pkg/domains/contact"
	"github.com/zapdesk/pkg/dtos"
	"github.com/zapdesk/pkg/middleware"
)

func ContactRoutes(r *gin.RouterGroup, s contact.Service) {
	authGroup := r.Group("", middleware.CheckAuth())
	{
		authGroup.POST("", createContact(s))
		authGroup.GET("", listContacts(s))
		authGroup.GET("/:id", getContact(s))
	}
}

func createContact(s contact.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		var req dtos.CreateContactDTO
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": constant.INVALID_REQUEST})
			return
		}

		created, err := s.Create(c, req)
		if err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		c.JSON(201, gin.H{
			"message": "Contact created successfully",
			"data":    created,
		})
	}
}

func listContacts(s contact.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		instanceID, err := strconv.ParseUint(c.Query("instance_id"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": constant.INVALID_REQUEST})
			return
		}
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))

		contacts, totalPages, err := s.List(c, uint(instanceID), page)
		if err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		c.JSON(200, gin.H{
			"data":        contacts,
			"total_pages": totalPages,
			"page":        page,
		})
	}
}

func getContact(s contact.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		found, err := s.Get(c, id)
		if err != nil {
			c.JSON(404, gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"data": found})
	}
}
