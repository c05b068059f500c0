package routes

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zapdesk/pkg/constant"
	"github.com/zapdesk/pkg/domains/instance"
	"github.com/zapdesk/pkg/domains/session"
	"github.com/zapdesk/pkg/dtos"
	"github.com/zapdesk/pkg/middleware"
)

func InstanceRoutes(r *gin.RouterGroup, s instance.Service, sessions *session.Manager) {
	authGroup := r.Group("", middleware.CheckAuth())
	{
		authGroup.POST("", createInstance(s))
		authGroup.GET("", listInstances(s))
		authGroup.GET("/:id", getInstance(s))
		authGroup.DELETE("/:id", deleteInstance(s))
		authGroup.POST("/:id/start", startInstance(sessions))
		authGroup.GET("/:id/qr", getInstanceQR(s))
		authGroup.POST("/:id/logout", logoutInstance(sessions))
	}
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(400, gin.H{"error": constant.INVALID_REQUEST})
		return 0, false
	}
	return uint(id), true
}

func createInstance(s instance.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		var req dtos.CreateInstanceDTO
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": constant.INVALID_REQUEST})
			return
		}

		inst, err := s.Create(c, req)
		if err != nil {
			c.JSON(500, gin.H{"error": err.Error()})
			return
		}

		c.JSON(201, gin.H{
			"message": "Instance created successfully",
			"data":    inst,
		})
	}
}

func listInstances(s instance.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		instances, err := s.List(c)
		if err != nil {
			c.JSON(500, gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"data": instances})
	}
}

func getInstance(s instance.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		inst, err := s.Get(c, id)
		if err != nil {
			c.JSON(404, gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"data": inst})
	}
}

func deleteInstance(s instance.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		if err := s.Delete(c, id); err != nil {
			c.JSON(500, gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"message": constant.DELETED})
	}
}

func startInstance(sessions *session.Manager) func(c *gin.Context) {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		inst, err := sessions.Start(c, id)
		if err != nil {
			c.JSON(500, gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, gin.H{
			"message": constant.INSTANCE_STARTED,
			"data": dtos.InstanceStatusDTO{
				InstanceID: inst.ID,
				Status:     string(inst.Status),
			},
		})
	}
}

func getInstanceQR(s instance.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		qrCode, err := s.QR(c, id)
		if err != nil {
			c.JSON(404, gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, gin.H{
			"message": "Scan this QR code with WhatsApp mobile app",
			"data":    dtos.QRCodeDTO{InstanceID: id, QRCode: qrCode},
		})
	}
}

func logoutInstance(sessions *session.Manager) func(c *gin.Context) {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		if err := sessions.Logout(c, id); err != nil {
			c.JSON(500, gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"message": constant.INSTANCE_DISCONNECTED})
	}
}
