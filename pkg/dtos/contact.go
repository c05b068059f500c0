package dtos

type CreateContactDTO struct {
	InstanceID uint   `json:"instance_id" binding:"required"`
	Name       string `json:"name" binding:"required"`
	Phone      string `json:"phone" binding:"required,isphone"`
}
