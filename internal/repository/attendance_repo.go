package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/internal/model"
)

// AttendanceRepository 考勤数据访问接口
type AttendanceRepository interface {
	Create(ctx context.Context, att *model.Attendance) error
	// FindDuplicateSince 查找窗口内同 (student, section, day) 且
	// 指纹为空或与当前指纹一致的记录；无则返回 (nil, nil)。
	// 指纹为空也拦截：否则第二次扫码省略指纹即可绕过去重
	FindDuplicateSince(ctx context.Context, studentID, sectionID string, dayNumber int, fingerprint string, since time.Time) (*model.Attendance, error)
	// Exists 是否已存在 (student, section, day) 的任意记录（补缺勤用）
	Exists(ctx context.Context, studentID, sectionID string, dayNumber int) (bool, error)
	// Upsert 手动录入路径：无指纹键冲突时更新而非报重
	Upsert(ctx context.Context, att *model.Attendance) error
	ListByClass(ctx context.Context, classID string) ([]model.Attendance, error)
	ListByClassAndSections(ctx context.Context, classID string, sectionIDs []string) ([]model.Attendance, error)
	ListByStudent(ctx context.Context, classID, studentID string, sectionIDs []string) ([]model.Attendance, error)
	// DistinctDays 班级指定小节范围内出现过考勤活动的课次，升序
	DistinctDays(ctx context.Context, classID string, sectionIDs []string) ([]int, error)
}

type attendanceRepo struct {
	db *gorm.DB
}

// NewAttendanceRepo 创建 AttendanceRepository 实例
func NewAttendanceRepo(db *gorm.DB) AttendanceRepository {
	return &attendanceRepo{db: db}
}

func (r *attendanceRepo) Create(ctx context.Context, att *model.Attendance) error {
	return r.db.WithContext(ctx).Create(att).Error
}

func (r *attendanceRepo) FindDuplicateSince(ctx context.Context, studentID, sectionID string, dayNumber int, fingerprint string, since time.Time) (*model.Attendance, error) {
	var att model.Attendance
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND section_id = ? AND day_number = ? AND recorded_at >= ?",
			studentID, sectionID, dayNumber, since).
		Where("fingerprint IS NULL OR fingerprint = ?", fingerprint).
		First(&att).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &att, nil
}

func (r *attendanceRepo) Exists(ctx context.Context, studentID, sectionID string, dayNumber int) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Attendance{}).
		Where("student_id = ? AND section_id = ? AND day_number = ?", studentID, sectionID, dayNumber).
		Count(&count).Error
	return count > 0, err
}

func (r *attendanceRepo) Upsert(ctx context.Context, att *model.Attendance) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "student_id"}, {Name: "section_id"}, {Name: "day_number"},
			},
			TargetWhere: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "fingerprint IS NULL"},
			}},
			DoUpdates: clause.AssignmentColumns([]string{
				"class_id", "status", "recorded_at", "code_id",
				"loc_longitude", "loc_latitude", "user_agent", "ip",
			}),
		}).
		Create(att).Error
}

func (r *attendanceRepo) ListByClass(ctx context.Context, classID string) ([]model.Attendance, error) {
	var atts []model.Attendance
	err := r.db.WithContext(ctx).
		Where("class_id = ?", classID).
		Order("recorded_at ASC").
		Find(&atts).Error
	return atts, err
}

func (r *attendanceRepo) ListByClassAndSections(ctx context.Context, classID string, sectionIDs []string) ([]model.Attendance, error) {
	var atts []model.Attendance
	if len(sectionIDs) == 0 {
		return atts, nil
	}
	err := r.db.WithContext(ctx).
		Where("class_id = ? AND section_id IN ?", classID, sectionIDs).
		Order("recorded_at ASC").
		Find(&atts).Error
	return atts, err
}

func (r *attendanceRepo) ListByStudent(ctx context.Context, classID, studentID string, sectionIDs []string) ([]model.Attendance, error) {
	var atts []model.Attendance
	if len(sectionIDs) == 0 {
		return atts, nil
	}
	err := r.db.WithContext(ctx).
		Where("class_id = ? AND student_id = ? AND section_id IN ?", classID, studentID, sectionIDs).
		Order("day_number ASC").
		Find(&atts).Error
	return atts, err
}

func (r *attendanceRepo) DistinctDays(ctx context.Context, classID string, sectionIDs []string) ([]int, error) {
	var days []int
	if len(sectionIDs) == 0 {
		return days, nil
	}
	err := r.db.WithContext(ctx).
		Model(&model.Attendance{}).
		Where("class_id = ? AND section_id IN ?", classID, sectionIDs).
		Distinct("day_number").
		Order("day_number ASC").
		Pluck("day_number", &days).Error
	return days, err
}
