package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/internal/model"
)

// SectionRepository 小节数据访问接口
type SectionRepository interface {
	Create(ctx context.Context, section *model.Section) error
	GetByID(ctx context.Context, id string) (*model.Section, error)
	GetByClassAndNumber(ctx context.Context, classID string, number int) (*model.Section, error)
	ListByClass(ctx context.Context, classID string) ([]model.Section, error)
	// ListByClassAndStudent 学生在指定班级所属的小节
	ListByClassAndStudent(ctx context.Context, classID, studentID string) ([]model.Section, error)
	// ListContainingStudents 班级内（排除 excludeID）名册包含任一给定学生的小节，
	// 用于维持"同班同学至多属于一个小节"的不变式
	ListContainingStudents(ctx context.Context, classID, excludeID string, studentIDs []string) ([]model.Section, error)
	Update(ctx context.Context, section *model.Section) error
	Delete(ctx context.Context, id string) error
}

type sectionRepo struct {
	db *gorm.DB
}

// NewSectionRepo 创建 SectionRepository 实例
func NewSectionRepo(db *gorm.DB) SectionRepository {
	return &sectionRepo{db: db}
}

func (r *sectionRepo) Create(ctx context.Context, section *model.Section) error {
	return r.db.WithContext(ctx).Create(section).Error
}

func (r *sectionRepo) GetByID(ctx context.Context, id string) (*model.Section, error) {
	var section model.Section
	err := r.db.WithContext(ctx).
		Where("section_id = ?", id).
		First(&section).Error
	if err != nil {
		return nil, err
	}
	return &section, nil
}

func (r *sectionRepo) GetByClassAndNumber(ctx context.Context, classID string, number int) (*model.Section, error) {
	var section model.Section
	err := r.db.WithContext(ctx).
		Where("class_id = ? AND section_number = ?", classID, number).
		First(&section).Error
	if err != nil {
		return nil, err
	}
	return &section, nil
}

func (r *sectionRepo) ListByClass(ctx context.Context, classID string) ([]model.Section, error) {
	var sections []model.Section
	err := r.db.WithContext(ctx).
		Where("class_id = ?", classID).
		Order("section_number ASC").
		Find(&sections).Error
	return sections, err
}

func (r *sectionRepo) ListByClassAndStudent(ctx context.Context, classID, studentID string) ([]model.Section, error) {
	var sections []model.Section
	err := r.db.WithContext(ctx).
		Where("class_id = ? AND ? = ANY(student_ids)", classID, studentID).
		Order("section_number ASC").
		Find(&sections).Error
	return sections, err
}

func (r *sectionRepo) ListContainingStudents(ctx context.Context, classID, excludeID string, studentIDs []string) ([]model.Section, error) {
	var sections []model.Section
	if len(studentIDs) == 0 {
		return sections, nil
	}
	q := r.db.WithContext(ctx).
		Where("class_id = ? AND student_ids && ?", classID, model.UUIDArray(studentIDs))
	if excludeID != "" {
		q = q.Where("section_id <> ?", excludeID)
	}
	err := q.Find(&sections).Error
	return sections, err
}

func (r *sectionRepo) Update(ctx context.Context, section *model.Section) error {
	return r.db.WithContext(ctx).Save(section).Error
}

func (r *sectionRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("section_id = ?", id).
		Delete(&model.Section{}).Error
}
