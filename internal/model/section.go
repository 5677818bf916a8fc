package model

// Section 小节表 — 对应 sections
// 二维码与考勤记录均以小节为作用域；同一班级内学生至多属于一个小节
type Section struct {
	SectionID     string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"section_id"`
	ClassID       string    `gorm:"type:uuid;not null"                             json:"class_id"`
	Name          string    `gorm:"type:varchar(100);not null"                     json:"name"`
	SectionNumber int       `gorm:"not null"                                       json:"section_number"`
	StudentIDs    UUIDArray `gorm:"type:uuid[];not null;default:'{}'"              json:"student_ids"`
	BaseModel
}

// TableName 指定表名
func (Section) TableName() string { return "sections" }
