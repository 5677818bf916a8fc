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

// ── 小节模块业务错误 ──

var (
	ErrSectionNotFound        = errors.New("小节不存在")
	ErrSectionNumberTaken     = errors.New("该班级下小节编号已存在")
	ErrStudentsNotEnrolled    = errors.New("部分学生未加入班级名册")
	ErrStudentsInOtherSection = errors.New("部分学生已属于该班级其他小节")
)

// SectionService 小节业务接口
type SectionService interface {
	// Create 创建小节；名册学生必须已在班级名册且不属于班内其他小节
	Create(ctx context.Context, req *dto.CreateSectionRequest, callerID, callerRole string) (*dto.SectionResponse, error)
	GetByID(ctx context.Context, id string) (*dto.SectionResponse, error)
	ListByClass(ctx context.Context, classID string) ([]dto.SectionResponse, error)
	Update(ctx context.Context, sectionID string, req *dto.UpdateSectionRequest, callerID, callerRole string) (*dto.SectionResponse, error)
	AddStudents(ctx context.Context, sectionID string, req *dto.SectionStudentsRequest, callerID, callerRole string) (*dto.SectionResponse, error)
	RemoveStudents(ctx context.Context, sectionID string, req *dto.SectionStudentsRequest, callerID, callerRole string) (*dto.SectionResponse, error)
	// Delete 删除小节；正在运行的二维码轮换会在下一个周期自取消
	Delete(ctx context.Context, sectionID string, callerID, callerRole string) error
}

type sectionService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewSectionService 创建 SectionService 实例
func NewSectionService(repo *repository.Repository, logger *zap.Logger) SectionService {
	return &sectionService{repo: repo, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *sectionService) Create(ctx context.Context, req *dto.CreateSectionRequest, callerID, callerRole string) (*dto.SectionResponse, error) {
	class, err := s.getOwnedClass(ctx, req.ClassID, callerID, callerRole)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.Section.GetByClassAndNumber(ctx, req.ClassID, req.SectionNumber); err == nil {
		return nil, ErrSectionNumberTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询小节编号失败", zap.Error(err))
		return nil, err
	}

	studentIDs, err := s.resolveRosterStudents(ctx, class, req.StudentCodes)
	if err != nil {
		return nil, err
	}
	if err := s.checkCrossSection(ctx, req.ClassID, "", studentIDs); err != nil {
		return nil, err
	}

	section := &model.Section{
		ClassID:       req.ClassID,
		Name:          req.Name,
		SectionNumber: req.SectionNumber,
		StudentIDs:    studentIDs,
	}
	if err := s.repo.Section.Create(ctx, section); err != nil {
		s.logger.Error("创建小节失败", zap.Error(err))
		return nil, err
	}
	return toSectionResponse(section), nil
}

// ────────────────────── GetByID / ListByClass ──────────────────────

func (s *sectionService) GetByID(ctx context.Context, id string) (*dto.SectionResponse, error) {
	section, err := s.repo.Section.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSectionNotFound
		}
		s.logger.Error("查询小节失败", zap.String("section_id", id), zap.Error(err))
		return nil, err
	}
	return toSectionResponse(section), nil
}

func (s *sectionService) ListByClass(ctx context.Context, classID string) ([]dto.SectionResponse, error) {
	if _, err := s.repo.Class.GetByID(ctx, classID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, err
	}
	sections, err := s.repo.Section.ListByClass(ctx, classID)
	if err != nil {
		s.logger.Error("查询小节列表失败", zap.String("class_id", classID), zap.Error(err))
		return nil, err
	}
	out := make([]dto.SectionResponse, 0, len(sections))
	for i := range sections {
		out = append(out, *toSectionResponse(&sections[i]))
	}
	return out, nil
}

// ────────────────────── Update ──────────────────────

func (s *sectionService) Update(ctx context.Context, sectionID string, req *dto.UpdateSectionRequest, callerID, callerRole string) (*dto.SectionResponse, error) {
	section, err := s.getOwnedSection(ctx, sectionID, callerID, callerRole)
	if err != nil {
		return nil, err
	}

	if req.SectionNumber != nil && *req.SectionNumber != section.SectionNumber {
		if _, err := s.repo.Section.GetByClassAndNumber(ctx, section.ClassID, *req.SectionNumber); err == nil {
			return nil, ErrSectionNumberTaken
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error("查询小节编号失败", zap.Error(err))
			return nil, err
		}
		section.SectionNumber = *req.SectionNumber
	}
	if req.Name != nil {
		section.Name = *req.Name
	}

	if err := s.repo.Section.Update(ctx, section); err != nil {
		s.logger.Error("更新小节失败", zap.String("section_id", sectionID), zap.Error(err))
		return nil, err
	}
	return toSectionResponse(section), nil
}

// ────────────────────── AddStudents / RemoveStudents ──────────────────────

func (s *sectionService) AddStudents(ctx context.Context, sectionID string, req *dto.SectionStudentsRequest, callerID, callerRole string) (*dto.SectionResponse, error) {
	section, err := s.getOwnedSection(ctx, sectionID, callerID, callerRole)
	if err != nil {
		return nil, err
	}
	class, err := s.repo.Class.GetByID(ctx, section.ClassID)
	if err != nil {
		s.logger.Error("查询班级失败", zap.String("class_id", section.ClassID), zap.Error(err))
		return nil, err
	}

	studentIDs, err := s.resolveRosterStudents(ctx, class, req.StudentCodes)
	if err != nil {
		return nil, err
	}
	if err := s.checkCrossSection(ctx, section.ClassID, sectionID, studentIDs); err != nil {
		return nil, err
	}

	for _, id := range studentIDs {
		if !section.StudentIDs.Contains(id) {
			section.StudentIDs = append(section.StudentIDs, id)
		}
	}
	if err := s.repo.Section.Update(ctx, section); err != nil {
		s.logger.Error("更新小节名册失败", zap.String("section_id", sectionID), zap.Error(err))
		return nil, err
	}
	return toSectionResponse(section), nil
}

func (s *sectionService) RemoveStudents(ctx context.Context, sectionID string, req *dto.SectionStudentsRequest, callerID, callerRole string) (*dto.SectionResponse, error) {
	section, err := s.getOwnedSection(ctx, sectionID, callerID, callerRole)
	if err != nil {
		return nil, err
	}

	students, err := s.repo.User.ListStudentsByCodes(ctx, req.StudentCodes)
	if err != nil {
		s.logger.Error("按学号查询学生失败", zap.Error(err))
		return nil, err
	}
	removing := make(map[string]struct{}, len(students))
	for _, stu := range students {
		removing[stu.UserID] = struct{}{}
	}

	kept := make(model.UUIDArray, 0, len(section.StudentIDs))
	for _, id := range section.StudentIDs {
		if _, ok := removing[id]; !ok {
			kept = append(kept, id)
		}
	}
	section.StudentIDs = kept

	if err := s.repo.Section.Update(ctx, section); err != nil {
		s.logger.Error("更新小节名册失败", zap.String("section_id", sectionID), zap.Error(err))
		return nil, err
	}
	return toSectionResponse(section), nil
}

// ────────────────────── Delete ──────────────────────

func (s *sectionService) Delete(ctx context.Context, sectionID string, callerID, callerRole string) error {
	if _, err := s.getOwnedSection(ctx, sectionID, callerID, callerRole); err != nil {
		return err
	}
	if err := s.repo.Section.Delete(ctx, sectionID); err != nil {
		s.logger.Error("删除小节失败", zap.String("section_id", sectionID), zap.Error(err))
		return err
	}
	s.logger.Info("小节已删除", zap.String("section_id", sectionID))
	return nil
}

// ────────────────────── 内部辅助 ──────────────────────

// getOwnedClass 班级存在性 + 归属校验；管理员跳过归属校验
func (s *sectionService) getOwnedClass(ctx context.Context, classID, callerID, callerRole string) (*model.Class, error) {
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
	return class, nil
}

func (s *sectionService) getOwnedSection(ctx context.Context, sectionID, callerID, callerRole string) (*model.Section, error) {
	section, err := s.repo.Section.GetByID(ctx, sectionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSectionNotFound
		}
		s.logger.Error("查询小节失败", zap.String("section_id", sectionID), zap.Error(err))
		return nil, err
	}
	if _, err := s.getOwnedClass(ctx, section.ClassID, callerID, callerRole); err != nil {
		return nil, err
	}
	return section, nil
}

// resolveRosterStudents 学号 → 学生 ID，并校验全部在班级名册内
func (s *sectionService) resolveRosterStudents(ctx context.Context, class *model.Class, codes []string) (model.UUIDArray, error) {
	if len(codes) == 0 {
		return model.UUIDArray{}, nil
	}
	students, err := s.repo.User.ListStudentsByCodes(ctx, codes)
	if err != nil {
		s.logger.Error("按学号查询学生失败", zap.Error(err))
		return nil, err
	}
	if len(students) != len(uniqueStrings(codes)) {
		return nil, ErrStudentsNotFound
	}
	ids := make(model.UUIDArray, 0, len(students))
	for _, stu := range students {
		if !class.StudentIDs.Contains(stu.UserID) {
			return nil, ErrStudentsNotEnrolled
		}
		ids = append(ids, stu.UserID)
	}
	return ids, nil
}

// checkCrossSection 同班同学至多属于一个小节
func (s *sectionService) checkCrossSection(ctx context.Context, classID, excludeSectionID string, studentIDs []string) error {
	if len(studentIDs) == 0 {
		return nil
	}
	others, err := s.repo.Section.ListContainingStudents(ctx, classID, excludeSectionID, studentIDs)
	if err != nil {
		s.logger.Error("查询小节名册冲突失败", zap.Error(err))
		return err
	}
	if len(others) > 0 {
		return ErrStudentsInOtherSection
	}
	return nil
}

func toSectionResponse(section *model.Section) *dto.SectionResponse {
	return &dto.SectionResponse{
		SectionID:     section.SectionID,
		ClassID:       section.ClassID,
		Name:          section.Name,
		SectionNumber: section.SectionNumber,
		StudentIDs:    section.StudentIDs,
		CreatedAt:     section.CreatedAt.Format(time.RFC3339),
	}
}
