package model

// ── 班级状态 ──

const (
	ClassStatusActive = "active"
	ClassStatusEnded  = "ended"
)

// Class 班级表 — 对应 classes
// student_ids 为全班名册，是各小节名册的超集
type Class struct {
	ClassID    string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"class_id"`
	Name       string    `gorm:"type:varchar(200);not null"                     json:"name"`
	TeacherID  string    `gorm:"type:uuid;not null"                             json:"teacher_id"`
	Semester   string    `gorm:"type:varchar(50);not null"                      json:"semester"`
	Status     string    `gorm:"type:varchar(20);not null;default:'active'"     json:"status"`
	StudentIDs UUIDArray `gorm:"type:uuid[];not null;default:'{}'"              json:"student_ids"`
	BaseModel
}

// TableName 指定表名
func (Class) TableName() string { return "classes" }
