package routes

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/zapdesk/pkg/hub"
	"github.com/zapdesk/pkg/middleware"
	"github.com/zapdesk/pkg/state"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WsRoutes upgrades authenticated agents onto the fan-out hub.
func WsRoutes(r *gin.RouterGroup, h *hub.Hub) {
	r.GET("", middleware.CheckAuth(), func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[error] ws: upgrade failed: %v", err)
			return
		}
		hub.NewClient(h, conn, state.CurrentUser(c))
	})
}
