package repository

import "gorm.io/gorm"

// Repository 所有 Repository 的聚合入口
type Repository struct {
	User       UserRepository
	Class      ClassRepository
	Section    SectionRepository
	Code       CodeRepository
	Attendance AttendanceRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		User:       NewUserRepo(db),
		Class:      NewClassRepo(db),
		Section:    NewSectionRepo(db),
		Code:       NewCodeRepo(db),
		Attendance: NewAttendanceRepo(db),
	}
}
