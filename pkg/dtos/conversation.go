package dtos

type AssignConversationDTO struct {
	UserID uint `json:"user_id" binding:"required"`
}

type SetConversationModeDTO struct {
	Mode string `json:"mode" binding:"required,oneof=ai human hybrid"`
}
