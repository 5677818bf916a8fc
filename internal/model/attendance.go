package model

import "time"

// ── 考勤状态 ──

const (
	AttendanceStatusPresent = "present"
	AttendanceStatusAbsent  = "absent"
	AttendanceStatusLate    = "late"
)

// Attendance 考勤记录表 — 对应 attendances
// 扫码成功、教师手动录入、关闭小节补缺勤三条路径写入。
// 唯一性由两个部分唯一索引兜底：带指纹（扫码路径）与无指纹（手动/缺勤路径）
// 各自保证 (student, section, day) 唯一。
type Attendance struct {
	AttendanceID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"attendance_id"`
	StudentID    string    `gorm:"type:uuid;not null"                             json:"student_id"`
	CodeID       *string   `gorm:"type:uuid"                                      json:"code_id,omitempty"`
	ClassID      string    `gorm:"type:uuid;not null"                             json:"class_id"`
	SectionID    string    `gorm:"type:uuid;not null"                             json:"section_id"`
	DayNumber    int       `gorm:"not null"                                       json:"day_number"`
	LocLongitude *float64  `json:"loc_longitude,omitempty"`
	LocLatitude  *float64  `json:"loc_latitude,omitempty"`
	Fingerprint  *string   `gorm:"type:varchar(200)"                              json:"fingerprint,omitempty"`
	UserAgent    *string   `gorm:"type:varchar(500)"                              json:"user_agent,omitempty"`
	IP           *string   `gorm:"type:varchar(64)"                               json:"ip,omitempty"`
	Status       string    `gorm:"type:varchar(10);not null;default:'present'"    json:"status"`
	RecordedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"recorded_at"`
}

// TableName 指定表名
func (Attendance) TableName() string { return "attendances" }
