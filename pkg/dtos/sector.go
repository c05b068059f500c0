package dtos

type CreateSectorDTO struct {
	Name               string `json:"name" binding:"required"`
	GeraTicket         *bool  `json:"gera_ticket"`
	MensagemBoasVindas string `json:"mensagem_boas_vindas"`
	MensagemReabertura string `json:"mensagem_reabertura"`
}

type UpdateSectorDTO struct {
	Name               *string `json:"name"`
	GeraTicket         *bool   `json:"gera_ticket"`
	MensagemBoasVindas *string `json:"mensagem_boas_vindas"`
	MensagemReabertura *string `json:"mensagem_reabertura"`
}
