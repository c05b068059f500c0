package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/Depado/ginprom"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/zapdesk/app/api/routes"
	"github.com/zapdesk/pkg/config"
	"github.com/zapdesk/pkg/database"
	"github.com/zapdesk/pkg/domains/contact"
	"github.com/zapdesk/pkg/domains/conversation"
	"github.com/zapdesk/pkg/domains/ingest"
	"github.com/zapdesk/pkg/domains/instance"
	"github.com/zapdesk/pkg/domains/outbound"
	"github.com/zapdesk/pkg/domains/provider"
	"github.com/zapdesk/pkg/domains/sector"
	"github.com/zapdesk/pkg/domains/session"
	"github.com/zapdesk/pkg/domains/ticket"
	"github.com/zapdesk/pkg/hub"
	"github.com/zapdesk/pkg/middleware"
	"github.com/zapdesk/pkg/utils"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func LaunchHttpServer(cfg *config.Config) {
	log.Println("Starting HTTP Server...")
	gin.SetMode(gin.DebugMode)

	custom := utils.NewCustomValidator()
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("isphone", custom.IsValidPhone)
	}

	app := gin.New()
	app.Use(gin.LoggerWithFormatter(func(log gin.LogFormatterParams) string {
		return fmt.Sprintf("[%s] - %s \"%s %s %s %d %s\"\n",
			log.TimeStamp.Format("2006-01-02 15:04:05"),
			log.ClientIP,
			log.Method,
			log.Path,
			log.Request.Proto,
			log.StatusCode,
			log.Latency,
		)
	}))
	app.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	app.Use(gin.Recovery())
	app.Use(otelgin.Middleware(cfg.App.Name))
	app.Use(middleware.ClaimIp())
	app.Use(cors.New(cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization", "X-Requested-With", "Origin", "Accept"},
		AllowOrigins:     []string{"*"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	p := ginprom.New(
		ginprom.Engine(app),
		ginprom.Subsystem("gin"),
		ginprom.Path("/metrics"),
		ginprom.Ignore("/swagger/*any"),
	)
	app.Use(p.Instrument())

	// Uploaded media is served back so the hosted gateway can fetch it.
	app.Static("/media", cfg.Media.Dir)

	db := database.DBClient()

	// Construction order follows the package dependency chain, the
	// embedded sender is attached after the session manager exists.
	eventHub := hub.New()
	gateway := provider.NewGatewayClient(cfg.Gateway)
	mediaStore, err := provider.NewLocalMediaStore(cfg.Media.Dir, cfg.App.PublicURL)
	if err != nil {
		log.Fatalf("[error] media store init failed: %v", err)
	}
	outboundService := outbound.NewService(db, eventHub, gateway, mediaStore)
	ticketService := ticket.NewService(db, outboundService, eventHub)
	ingestService := ingest.NewService(db, ticketService, outboundService, eventHub)
	sessionManager := session.NewManager(db, cfg.WhatsApp, ingestService, eventHub)
	outboundService.AttachEmbedded(sessionManager)
	instanceService := instance.NewService(db, gateway, sessionManager, cfg.App.PublicURL)
	conversationService := conversation.NewService(db, eventHub)
	contactService := contact.NewService(db)
	sectorService := sector.NewService(db)

	sessionManager.ResumeAll(context.Background())
	sweeper := ticket.StartSweeper(ticketService, cfg.Sla.SweepInterval())
	defer sweeper.Stop()

	api := app.Group("/api/v1")

	// Instance Routes
	routes.InstanceRoutes(api.Group("/instance"), instanceService, sessionManager)

	// Contact Routes
	routes.ContactRoutes(api.Group("/contact"), contactService)

	// Conversation Routes
	routes.ConversationRoutes(api.Group("/conversation"), conversationService)

	// Message Routes
	routes.MessageRoutes(api.Group("/message"), outboundService, ingestService)

	// Sector Routes
	routes.SectorRoutes(api.Group("/sector"), sectorService)

	// Ticket Routes
	routes.TicketRoutes(api.Group("/ticket"), ticketService)

	// Gateway Webhook Routes
	routes.WebhookRoutes(api.Group("/webhook"), db, cfg.Gateway, ingestService)

	// WebSocket Routes
	routes.WsRoutes(api.Group("/ws"), eventHub)

	fmt.Println("Server is running on port " + cfg.App.Port)
	if err := app.Run(net.JoinHostPort(cfg.App.Host, cfg.App.Port)); err != nil {
		sessionManager.Shutdown()
		log.Fatalf("Server failed to start: %v", err)
	}
}
