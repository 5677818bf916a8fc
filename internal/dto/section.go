package dto

// ── 小节模块 DTO ──

// CreateSectionRequest 创建小节请求
type CreateSectionRequest struct {
	ClassID       string   `json:"class_id"       binding:"required,uuid"`
	Name          string   `json:"name"           binding:"required,min=1,max=100"`
	SectionNumber int      `json:"section_number" binding:"required,min=1"`
	StudentCodes  []string `json:"student_codes"  binding:"omitempty,dive,required"`
}

// UpdateSectionRequest 更新小节请求
type UpdateSectionRequest struct {
	Name          *string `json:"name"           binding:"omitempty,min=1,max=100"`
	SectionNumber *int    `json:"section_number" binding:"omitempty,min=1"`
}

// SectionStudentsRequest 小节名册增删请求
type SectionStudentsRequest struct {
	StudentCodes []string `json:"student_codes" binding:"required,min=1,dive,required"`
}

// SectionResponse 小节信息响应
type SectionResponse struct {
	SectionID     string   `json:"section_id"`
	ClassID       string   `json:"class_id"`
	Name          string   `json:"name"`
	SectionNumber int      `json:"section_number"`
	StudentIDs    []string `json:"student_ids"`
	CreatedAt     string   `json:"created_at"`
}
