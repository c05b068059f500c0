package routes

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zapdesk/pkg/constant"
	"github.com/zapdesk/pkg/domains/ticket"
	"github.com/zapdesk/pkg/dtos"
	"github.com/zapdesk/pkg/entities"
	"github.com/zapdesk/pkg/middleware"
	"github.com/zapdesk/pkg/state"
)

func TicketRoutes(r *gin.RouterGroup, s ticket.Service) {
	authGroup := r.Group("", middleware.CheckAuth())
	{
		authGroup.POST("", createTicket(s))
		authGroup.GET("", listTickets(s))
		authGroup.GET("/:id", getTicket(s))
		authGroup.PUT("/:id/status", transitionTicket(s))

		authGroup.GET("/sla/config/:sectorId", getSlaConfig(s))
		authGroup.PUT("/sla/config/:sectorId", setSlaConfig(s))
		authGroup.GET("/sla/violations", listSlaViolations(s))
		authGroup.POST("/sla/sweep", triggerSlaSweep(s))
	}
}

func ticketErrorStatus(err error) int {
	switch {
	case errors.Is(err, ticket.ErrTicketNotFound):
		return 404
	case errors.Is(err, ticket.ErrInvalidTransition),
		errors.Is(err, ticket.ErrSectorNotFound),
		errors.Is(err, ticket.ErrSectorDisabled),
		errors.Is(err, ticket.ErrActiveTicketExists):
		return 400
	default:
		return 500
	}
}

func actor(c *gin.Context) *uint {
	userID := state.CurrentUser(c)
	if userID == 0 {
		return nil
	}
	return &userID
}

func createTicket(s ticket.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		var req dtos.CreateTicketDTO
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": constant.INVALID_REQUEST})
			return
		}

		created, err := s.Create(c, req.ConversationID, req.SectorID, actor(c))
		if err != nil {
			c.JSON(ticketErrorStatus(err), gin.H{"error": err.Error()})
			return
		}

		c.JSON(201, gin.H{
			"message": constant.TICKET_CREATED,
			"data":    created,
		})
	}
}

func listTickets(s ticket.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))

		tickets, total, err := s.List(c, c.Query("status"), page)
		if err != nil {
			c.JSON(500, gin.H{"error": err.Error()})
			return
		}

		c.JSON(200, gin.H{
			"data":  tickets,
			"total": total,
			"page":  page,
		})
	}
}

func getTicket(s ticket.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		found, err := s.Get(c, id)
		if err != nil {
			c.JSON(ticketErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"data": found})
	}
}

func transitionTicket(s ticket.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var req dtos.TransitionTicketDTO
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": constant.INVALID_REQUEST})
			return
		}

		updated, err := s.Transition(c, id, entities.TicketStatus(req.Status), actor(c))
		if err != nil {
			c.JSON(ticketErrorStatus(err), gin.H{"error": err.Error()})
			return
		}

		c.JSON(200, gin.H{
			"message": constant.TICKET_UPDATED,
			"data":    updated,
		})
	}
}

func sectorPathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("sectorId"), 10, 32)
	if err != nil {
		c.JSON(400, gin.H{"error": constant.INVALID_REQUEST})
		return 0, false
	}
	return uint(id), true
}

func getSlaConfig(s ticket.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		sectorID, ok := sectorPathID(c)
		if !ok {
			return
		}
		config, err := s.GetSlaConfig(c, sectorID)
		if err != nil {
			c.JSON(404, gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"data": config})
	}
}

func setSlaConfig(s ticket.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		sectorID, ok := sectorPathID(c)
		if !ok {
			return
		}
		var req dtos.SlaConfigDTO
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": constant.INVALID_REQUEST})
			return
		}

		config, err := s.SetSlaConfig(c, sectorID, req.FirstResponseMinutes, req.ResolutionMinutes)
		if err != nil {
			c.JSON(ticketErrorStatus(err), gin.H{"error": err.Error()})
			return
		}

		c.JSON(200, gin.H{
			"message": constant.SLA_CONFIG_SAVED,
			"data":    config,
		})
	}
}

func listSlaViolations(s ticket.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		var ticketID *uint
		if raw := c.Query("ticket_id"); raw != "" {
			parsed, err := strconv.ParseUint(raw, 10, 32)
			if err != nil {
				c.JSON(400, gin.H{"error": constant.INVALID_REQUEST})
				return
			}
			id := uint(parsed)
			ticketID = &id
		}

		violations, err := s.ListViolations(c, ticketID)
		if err != nil {
			c.JSON(500, gin.H{"error": err.Error()})
			return
		}

		c.JSON(200, gin.H{
			"message": constant.VIOLATIONS_RETRIEVED,
			"data":    violations,
		})
	}
}

func triggerSlaSweep(s ticket.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		recorded, err := s.Sweep(c)
		if err != nil {
			c.JSON(500, gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, gin.H{
			"message":  constant.SLA_SWEEP_TRIGGERED,
			"recorded": recorded,
		})
	}
}
