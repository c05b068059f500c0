package dtos

type CreateTicketDTO struct {
	ConversationID uint  `json:"conversation_id" binding:"required"`
	SectorID       *uint `json:"sector_id"`
}

type TransitionTicketDTO struct {
	Status string `json:"status" binding:"required,oneof=aberto em_atendimento finalizado reaberto"`
}

type SlaConfigDTO struct {
	FirstResponseMinutes int `json:"first_response_minutes" binding:"required,min=1"`
	ResolutionMinutes    int `json:"resolution_minutes" binding:"required,min=1"`
}
