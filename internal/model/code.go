package model

import "time"

// Code 二维码表 — 对应 codes
// 一次性、带时限的签到凭证；只停用不删除，保留审计轨迹。
// 不变式：同一 (section, day) 任意时刻至多一个 is_active=true 的码。
type Code struct {
	CodeID       string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"code_id"`
	Code         string    `gorm:"type:varchar(64);not null;uniqueIndex"          json:"code"`
	ExpiresAt    time.Time `gorm:"not null"                                       json:"expires_at"`
	LocLongitude float64   `gorm:"not null"                                       json:"loc_longitude"`
	LocLatitude  float64   `gorm:"not null"                                       json:"loc_latitude"`
	LocName      string    `gorm:"type:varchar(100);not null"                     json:"loc_name"`
	LocRadiusM   float64   `gorm:"not null;default:50"                            json:"loc_radius_m"`
	ClassID      string    `gorm:"type:uuid;not null"                             json:"class_id"`
	SectionID    string    `gorm:"type:uuid;not null"                             json:"section_id"`
	DayNumber    int       `gorm:"not null"                                       json:"day_number"`
	CreatedBy    string    `gorm:"type:uuid;not null"                             json:"created_by"`
	IsActive     bool      `gorm:"not null;default:true"                          json:"is_active"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (Code) TableName() string { return "codes" }
