package dto

// ── 考勤模块 DTO ──

// LocationPoint 扫码端上报的坐标
// 指针字段区分"缺失"与合法的 0 坐标（赤道/本初子午线）
type LocationPoint struct {
	Longitude *float64 `json:"longitude" binding:"required,min=-180,max=180"`
	Latitude  *float64 `json:"latitude"  binding:"required,min=-90,max=90"`
}

// VerifyAttendanceRequest 扫码验证请求体（码的 token 取自 URL 路径）
type VerifyAttendanceRequest struct {
	Location    *LocationPoint `json:"location"    binding:"required"`
	Fingerprint string         `json:"fingerprint" binding:"omitempty,max=200"`
}

// ManualAttendanceRequest 教师手动录入/修正考勤
type ManualAttendanceRequest struct {
	StudentID string `json:"student_id" binding:"required,uuid"`
	ClassID   string `json:"class_id"   binding:"required,uuid"`
	SectionID string `json:"section_id" binding:"required,uuid"`
	DayNumber int    `json:"day_number" binding:"required,min=1"`
	Status    string `json:"status"     binding:"required,oneof=present absent late"`
}

// AttendanceListRequest 考勤列表查询参数
type AttendanceListRequest struct {
	ClassID   string `form:"class_id"   binding:"omitempty,uuid"`
	SectionID string `form:"section_id" binding:"omitempty,uuid"`
}

// StudentAttendanceRequest 学生查询自己考勤的参数
type StudentAttendanceRequest struct {
	ClassID string `form:"class_id" binding:"required,uuid"`
}

// AttendanceResponse 考勤记录响应
type AttendanceResponse struct {
	AttendanceID string  `json:"attendance_id"`
	StudentID    string  `json:"student_id"`
	CodeID       *string `json:"code_id,omitempty"`
	ClassID      string  `json:"class_id"`
	SectionID    string  `json:"section_id"`
	DayNumber    int     `json:"day_number"`
	Status       string  `json:"status"`
	RecordedAt   string  `json:"recorded_at"`
}
