package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/zapdesk/pkg/constant"
	"github.com/zapdesk/pkg/domains/sector"
	"github.com/zapdesk/pkg/dtos"
	"github.com/zapdesk/pkg/middleware"
)

// SectorRoutes exposes sector CRUD. Mutations are admin-only since
// sector templates and flags change behavior for every agent.
func SectorRoutes(r *gin.RouterGroup, s sector.Service) {
	authGroup := r.Group("", middleware.CheckAuth())
	{
		authGroup.GET("", listSectors(s))
		authGroup.GET("/:id", getSector(s))
	}
	adminGroup := r.Group("", middleware.CheckAuth(), middleware.Admin())
	{
		adminGroup.POST("", createSector(s))
		adminGroup.PUT("/:id", updateSector(s))
	}
}

func createSector(s sector.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		var req dtos.CreateSectorDTO
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": constant.INVALID_REQUEST})
			return
		}

		created, err := s.Create(c, req)
		if err != nil {
			c.JSON(500, gin.H{"error": err.Error()})
			return
		}

		c.JSON(201, gin.H{
			"message": "Sector created successfully",
			"data":    created,
		})
	}
}

func updateSector(s sector.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var req dtos.UpdateSectorDTO
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": constant.INVALID_REQUEST})
			return
		}

		updated, err := s.Update(c, id, req)
		if err != nil {
			c.JSON(404, gin.H{"error": err.Error()})
			return
		}

		c.JSON(200, gin.H{
			"message": constant.UPDATED,
			"data":    updated,
		})
	}
}

func listSectors(s sector.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		sectors, err := s.List(c)
		if err != nil {
			c.JSON(500, gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"data": sectors})
	}
}

func getSector(s sector.Service) func(c *gin.Context) {
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
