package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/internal/dto"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/internal/model"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/internal/repository"
)

// ── 班级模块业务错误 ──

var (
	ErrClassNotFound    = errors.New("班级不存在")
	ErrNotClassOwner    = errors.New("只能操作自己的班级")
	ErrTeacherInvalid   = errors.New("授课教师不存在或角色不符")
	ErrStudentsNotFound = errors.New("部分学号不存在")
)

// ClassService 班级业务接口
type ClassService interface {
	Create(ctx context.Context, req *dto.CreateClassRequest, callerID, callerRole string) (*dto.ClassResponse, error)
	GetByID(ctx context.Context, id string) (*dto.ClassResponse, error)
	// List 按角色返回可见班级：教师看自己授课的，学生看已加入的，管理员看全部
	List(ctx context.Context, callerID, callerRole string) ([]dto.ClassResponse, error)
	// EnrollStudents 按学号将学生批量加入班级名册，重复学号幂等
	EnrollStudents(ctx context.Context, classID string, req *dto.EnrollStudentsRequest, callerID, callerRole string) (*dto.ClassResponse, error)
	// RemoveStudents 按学号将学生批量移出班级名册，不在名册的学号幂等跳过
	RemoveStudents(ctx context.Context, classID string, req *dto.RemoveClassStudentsRequest, callerID, callerRole string) (*dto.ClassResponse, error)
	Delete(ctx context.Context, classID string) error
}

type classService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewClassService 创建 ClassService 实例
func NewClassService(repo *repository.Repository, logger *zap.Logger) ClassService {
	return &classService{repo: repo, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *classService) Create(ctx context.Context, req *dto.CreateClassRequest, callerID, callerRole string) (*dto.ClassResponse, error) {
	// 教师只能为自己建班，管理员可指定任意教师
	if callerRole == model.RoleInstructor && req.TeacherID != callerID {
		return nil, ErrNotClassOwner
	}

	teacher, err := s.repo.User.GetByID(ctx, req.TeacherID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTeacherInvalid
		}
		s.logger.Error("查询教师失败", zap.String("teacher_id", req.TeacherID), zap.Error(err))
		return nil, err
	}
	if teacher.Role != model.RoleInstructor {
		return nil, ErrTeacherInvalid
	}

	class := &model.Class{
		Name:       req.Name,
		TeacherID:  req.TeacherID,
		Semester:   req.Semester,
		Status:     model.ClassStatusActive,
		StudentIDs: model.UUIDArray{},
	}
	if err := s.repo.Class.Create(ctx, class); err != nil {
		s.logger.Error("创建班级失败", zap.Error(err))
		return nil, err
	}
	return toClassResponse(class), nil
}

// ────────────────────── GetByID ──────────────────────

func (s *classService) GetByID(ctx context.Context, id string) (*dto.ClassResponse, error) {
	class, err := s.repo.Class.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		s.logger.Error("查询班级失败", zap.String("class_id", id), zap.Error(err))
		return nil, err
	}
	return toClassResponse(class), nil
}

// ────────────────────── List ──────────────────────

func (s *classService) List(ctx context.Context, callerID, callerRole string) ([]dto.ClassResponse, error) {
	var (
		classes []model.Class
		err     error
	)
	switch callerRole {
	case model.RoleInstructor:
		classes, err = s.repo.Class.ListByTeacher(ctx, callerID)
	case model.RoleStudent:
		classes, err = s.repo.Class.ListByStudent(ctx, callerID)
	default:
		classes, err = s.repo.Class.ListAll(ctx)
	}
	if err != nil {
		s.logger.Error("查询班级列表失败", zap.Error(err))
		return nil, err
	}
	out := make([]dto.ClassResponse, 0, len(classes))
	for i := range classes {
		out = append(out, *toClassResponse(&classes[i]))
	}
	return out, nil
}

// ────────────────────── EnrollStudents ──────────────────────

func (s *classService) EnrollStudents(ctx context.Context, classID string, req *dto.EnrollStudentsRequest, callerID, callerRole string) (*dto.ClassResponse, error) {
	class, err := s.repo.Class.GetByID(ctx, classID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		s.logger.Error("查询班级失败", zap.String("class_id", classID), zap.Error(err))
		return nil, err
	}
	if callerRole == model.RoleInstructor && class.TeacherID != callerID {
		return nil, ErrNotClassOwner
	}

	students, err := s.repo.User.ListStudentsByCodes(ctx, req.StudentCodes)
	if err != nil {
		s.logger.Error("按学号查询学生失败", zap.Error(err))
		return nil, err
	}
	if len(students) != len(uniqueStrings(req.StudentCodes)) {
		return nil, ErrStudentsNotFound
	}

	for _, stu := range students {
		if !class.StudentIDs.Contains(stu.UserID) {
			class.StudentIDs = append(class.StudentIDs, stu.UserID)
		}
	}
	if err := s.repo.Class.Update(ctx, class); err != nil {
		s.logger.Error("更新班级名册失败", zap.String("class_id", classID), zap.Error(err))
		return nil, err
	}
	return toClassResponse(class), nil
}

// ────────────────────── RemoveStudents ──────────────────────

func (s *classService) RemoveStudents(ctx context.Context, classID string, req *dto.RemoveClassStudentsRequest, callerID, callerRole string) (*dto.ClassResponse, error) {
	class, err := s.repo.Class.GetByID(ctx, classID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		s.logger.Error("查询班级失败", zap.String("class_id", classID), zap.Error(err))
		return nil, err
	}
	if callerRole == model.RoleInstructor && class.TeacherID != callerID {
		return nil, ErrNotClassOwner
	}

	students, err := s.repo.User.ListStudentsByCodes(ctx, req.StudentCodes)
	if err != nil {
		s.logger.Error("按学号查询学生失败", zap.Error(err))
		return nil, err
	}
	if len(students) != len(uniqueStrings(req.StudentCodes)) {
		return nil, ErrStudentsNotFound
	}

	removing := make(map[string]struct{}, len(students))
	for _, stu := range students {
		removing[stu.UserID] = struct{}{}
	}
	kept := make(model.UUIDArray, 0, len(class.StudentIDs))
	for _, id := range class.StudentIDs {
		if _, ok := removing[id]; ok {
			continue
		}
		kept = append(kept, id)
	}
	class.StudentIDs = kept

	if err := s.repo.Class.Update(ctx, class); err != nil {
		s.logger.Error("更新班级名册失败", zap.String("class_id", classID), zap.Error(err))
		return nil, err
	}
	return toClassResponse(class), nil
}

// ────────────────────── Delete ──────────────────────

func (s *classService) Delete(ctx context.Context, classID string) error {
	if _, err := s.repo.Class.GetByID(ctx, classID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrClassNotFound
		}
		s.logger.Error("查询班级失败", zap.String("class_id", classID), zap.Error(err))
		return err
	}
	if err := s.repo.Class.Delete(ctx, classID); err != nil {
		s.logger.Error("删除班级失败", zap.String("class_id", classID), zap.Error(err))
		return err
	}
	s.logger.Info("班级已删除", zap.String("class_id", classID))
	return nil
}

// ────────────────────── 内部辅助 ──────────────────────

func toClassResponse(class *model.Class) *dto.ClassResponse {
	return &dto.ClassResponse{
		ClassID:    class.ClassID,
		Name:       class.Name,
		TeacherID:  class.TeacherID,
		Semester:   class.Semester,
		Status:     class.Status,
		StudentIDs: class.StudentIDs,
		CreatedAt:  class.CreatedAt.Format(time.RFC3339),
	}
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
