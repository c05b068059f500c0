package routes

import (
	"crypto/subtle"
	"fmt"
	"log"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zapdesk/pkg/config"
	"github.com/zapdesk/pkg/constant"
	"github.com/zapdesk/pkg/domains/ingest"
	"github.com/zapdesk/pkg/domains/provider"
	"github.com/zapdesk/pkg/entities"
	"gorm.io/gorm"
)

// WebhookRoutes receives delivery callbacks from the hosted gateway.
// Authenticated by a shared secret header instead of user tokens.
func WebhookRoutes(r *gin.RouterGroup, db *gorm.DB, cfg config.Gateway, s ingest.Service) {
	r.POST("/:instanceId", receiveWebhook(db, cfg, s))
}

func receiveWebhook(db *gorm.DB, cfg config.Gateway, s ingest.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		secret := c.GetHeader("X-Webhook-Secret")
		if cfg.WebhookSecret == "" ||
			subtle.ConstantTimeCompare([]byte(secret), []byte(cfg.WebhookSecret)) != 1 {
			c.JSON(401, gin.H{"error": constant.UNAUTHORIZED_ACCESS})
			return
		}

		id, err := strconv.ParseUint(c.Param("instanceId"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": constant.INVALID_REQUEST})
			return
		}

		var instance entities.Instance
		if err := db.WithContext(c).First(&instance, uint(id)).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				c.JSON(404, gin.H{"error": fmt.Sprintf(constant.CANT_FIND, "Instance")})
				return
			}
			c.JSON(500, gin.H{"error": err.Error()})
			return
		}

		var payload provider.WebhookPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(400, gin.H{"error": constant.INVALID_REQUEST})
			return
		}

		if err := s.HandleWebhook(c, &instance, payload); err != nil {
			log.Printf("[error] webhook: instance %d event %s: %v", instance.ID, payload.Event, err)
			c.JSON(500, gin.H{"error": err.Error()})
			return
		}

		// Unknown event types are acknowledged so the gateway does not retry.
		c.JSON(200, gin.H{"status": "ok"})
	}
}
