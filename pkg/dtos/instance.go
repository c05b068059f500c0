package dtos

type CreateInstanceDTO struct {
	Name         string `json:"name" binding:"required"`
	ProviderKind string `json:"provider_kind" binding:"omitempty,oneof=embedded hosted"`
	SectorID     *uint  `json:"sector_id"`
}

type InstanceStatusDTO struct {
	InstanceID uint   `json:"instance_id"`
	Status     string `json:"status"`
}

type QRCodeDTO struct {
	InstanceID uint   `json:"instance_id"`
	QRCode     string `json:"qr_code"`
}
