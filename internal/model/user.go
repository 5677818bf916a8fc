package model

// ── 角色常量 ──

const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
)

// User 用户表 — 对应 users
// 凭据管理不在本服务范围内，这里只承载名册身份
type User struct {
	UserID      string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"user_id"`
	Name        string  `gorm:"type:varchar(100);not null"                     json:"name"`
	Email       string  `gorm:"type:varchar(200);not null;uniqueIndex"         json:"email"`
	StudentCode *string `gorm:"type:varchar(50);uniqueIndex"                   json:"student_code,omitempty"`
	Role        string  `gorm:"type:varchar(20);not null"                      json:"role"`
	BaseModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }
