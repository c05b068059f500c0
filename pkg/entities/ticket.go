package entities

import (
	"time"

	"gorm.io/gorm"
)

// TicketStatus follows the attendance lifecycle. Reopened tickets go
// back through em_atendimento; finalizado is the only terminal state.
type TicketStatus string

const (
	TicketAberto        TicketStatus = "aberto"
	TicketEmAtendimento TicketStatus = "em_atendimento"
	TicketFinalizado    TicketStatus = "finalizado"
	TicketReaberto      TicketStatus = "reaberto"
)

// Terminal reports whether the status ends the ticket's lifecycle.
func (s TicketStatus) Terminal() bool {
	return s == TicketFinalizado
}

// Ticket is a bounded unit of support work tied to one conversation.
// At most one ticket per conversation is in a non-terminal state; the
// partial unique index backs that up against concurrent opens, and the
// unique number index keeps the global sequence collision-free.
type Ticket struct {
	gorm.Model
	ConversationID  uint         `json:"conversation_id" gorm:"not null;index;uniqueIndex:uniq_tickets_open,where:status <> 'finalizado'"`
	SectorID        uint         `json:"sector_id" gorm:"not null;index"`
	Number          int64        `json:"number" gorm:"not null;uniqueIndex"`
	Status          TicketStatus `json:"status" gorm:"type:varchar(20);not null;default:aberto"`
	AssignedUserID  *uint        `json:"assigned_user_id"`
	FirstResponseAt *time.Time   `json:"first_response_at"`
	ClosedAt        *time.Time   `json:"closed_at"`
	ClosedBy        *uint        `json:"closed_by"`

	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID"`
	Sector       Sector       `json:"-" gorm:"foreignKey:SectorID"`
}

// Sector carries per-team attendance configuration: whether inbound
// traffic opens tickets and which templates the automatic messages use.
type Sector struct {
	gorm.Model
	Name               string `json:"name" gorm:"type:varchar(255);not null"`
	GeraTicket         bool   `json:"gera_ticket" gorm:"default:true"`
	MensagemBoasVindas string `json:"mensagem_boas_vindas" gorm:"type:text"`
	MensagemReabertura string `json:"mensagem_reabertura" gorm:"type:text"`
}

// SlaConfig sets the sector's time budgets in minutes. A sector with no
// config opts out of SLA tracking entirely.
type SlaConfig struct {
	gorm.Model
	SectorID             uint `json:"sector_id" gorm:"not null;uniqueIndex"`
	FirstResponseMinutes int  `json:"first_response_minutes" gorm:"not null"`
	ResolutionMinutes    int  `json:"resolution_minutes" gorm:"not null"`

	Sector Sector `json:"-" gorm:"foreignKey:SectorID"`
}

type ViolationKind string

const (
	ViolationFirstResponse ViolationKind = "first_response"
	ViolationResolution    ViolationKind = "resolution"
)

// SlaViolation is an immutable fact recorded at most once per
// (ticket, kind); the unique index makes the sweep idempotent.
type SlaViolation struct {
	gorm.Model
	TicketID   uint          `json:"ticket_id" gorm:"not null;uniqueIndex:ux_violation_ticket_kind,priority:1"`
	Kind       ViolationKind `json:"kind" gorm:"type:varchar(20);not null;uniqueIndex:ux_violation_ticket_kind,priority:2"`
	ExceededBy int64         `json:"exceeded_by_seconds" gorm:"not null"`

	Ticket Ticket `json:"-" gorm:"foreignKey:TicketID"`
}
