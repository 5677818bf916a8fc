package dto

// ── 二维码模块 DTO ──

// LocationInput 二维码签发地点
// 指针字段区分"缺失"与合法的 0 坐标
type LocationInput struct {
	Longitude *float64 `json:"longitude" binding:"required,min=-180,max=180"`
	Latitude  *float64 `json:"latitude"  binding:"required,min=-90,max=90"`
	Name      string  `json:"name"      binding:"omitempty,max=100"`
	RadiusM   float64 `json:"radius_m"  binding:"omitempty,gt=0"`
}

// GenerateQRCodeRequest 生成（并开始轮换）二维码请求
// SectionID 与 SectionNumber 二选一，优先 SectionID
type GenerateQRCodeRequest struct {
	ClassID       string         `json:"class_id"       binding:"required,uuid"`
	SectionID     string         `json:"section_id"     binding:"omitempty,uuid"`
	SectionNumber int            `json:"section_number" binding:"omitempty,min=1"`
	DayNumber     int            `json:"day_number"     binding:"required,min=1"`
	Location      *LocationInput `json:"location"       binding:"required"`
}

// CloseQRCodeRequest 关闭小节请求
type CloseQRCodeRequest struct {
	SectionID string `json:"section_id" binding:"required,uuid"`
	DayNumber int    `json:"day_number" binding:"required,min=1"`
}

// QRCodeResponse 二维码响应
type QRCodeResponse struct {
	CodeID        string `json:"code_id"`
	QRImage       string `json:"qr_image"` // PNG data URL
	SectionID     string `json:"section_id"`
	SectionNumber int    `json:"section_number"`
	DayNumber     int    `json:"day_number"`
	ExpiresAt     string `json:"expires_at"`
	AlreadyActive bool   `json:"already_active"` // 该小节轮换已在运行，返回的是当前活跃码
}
