package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/config"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/internal/dto"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/internal/model"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/internal/repository"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/pkg/clock"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/pkg/geo"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/pkg/metrics"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/pkg/redis"
)

// ── 考勤模块业务错误 ──

var (
	ErrInvalidOrExpiredCode = errors.New("二维码无效或已过期")
	ErrOutOfRange           = errors.New("不在允许的签到范围内")
	ErrNotEnrolled          = errors.New("未加入该班级")
	ErrWrongSection         = errors.New("不属于该小节")
	ErrDuplicateSubmission  = errors.New("请勿重复签到")
)

// AttendanceService 考勤业务接口
type AttendanceService interface {
	// Verify 扫码签到：按 码→围栏→班级→小节→去重 顺序校验，全部通过才落库
	Verify(ctx context.Context, token, studentID string, req *dto.VerifyAttendanceRequest, userAgent, ip string) (*dto.AttendanceResponse, error)
	// RecordManual 教师手动录入/修正；同 (student, section, day) 已有无指纹记录时覆盖
	RecordManual(ctx context.Context, req *dto.ManualAttendanceRequest) (*dto.AttendanceResponse, error)
	List(ctx context.Context, req *dto.AttendanceListRequest) ([]dto.AttendanceResponse, error)
	ListForStudent(ctx context.Context, classID, studentID string) ([]dto.AttendanceResponse, error)
}

type attendanceService struct {
	cfg    *config.Config
	repo   *repository.Repository
	rdb    *redis.Client
	clk    clock.Clock
	logger *zap.Logger
}

// NewAttendanceService 创建 AttendanceService 实例
func NewAttendanceService(cfg *config.Config, repo *repository.Repository, rdb *redis.Client, clk clock.Clock, logger *zap.Logger) AttendanceService {
	return &attendanceService{cfg: cfg, repo: repo, rdb: rdb, clk: clk, logger: logger}
}

// ────────────────────── Verify ──────────────────────

func (s *attendanceService) Verify(ctx context.Context, token, studentID string, req *dto.VerifyAttendanceRequest, userAgent, ip string) (*dto.AttendanceResponse, error) {
	resp, err := s.verify(ctx, token, studentID, req, userAgent, ip)
	metrics.VerifyTotal.WithLabelValues(verifyResultLabel(err)).Inc()
	return resp, err
}

func (s *attendanceService) verify(ctx context.Context, token, studentID string, req *dto.VerifyAttendanceRequest, userAgent, ip string) (*dto.AttendanceResponse, error) {
	now := s.clk.Now()

	// 1. 码有效性：存在、活跃、未过期
	code, err := s.repo.Code.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidOrExpiredCode
		}
		s.logger.Error("查询二维码失败", zap.Error(err))
		return nil, err
	}
	if !code.IsActive || !code.ExpiresAt.After(now) {
		return nil, ErrInvalidOrExpiredCode
	}

	// 2. 地理围栏
	center := geo.Point{Longitude: code.LocLongitude, Latitude: code.LocLatitude}
	claimed := geo.Point{Longitude: *req.Location.Longitude, Latitude: *req.Location.Latitude}
	if !geo.WithinRadius(center, claimed, code.LocRadiusM) {
		return nil, ErrOutOfRange
	}

	// 3. 班级存在且学生在名册中
	class, err := s.repo.Class.GetByID(ctx, code.ClassID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		s.logger.Error("查询班级失败", zap.String("class_id", code.ClassID), zap.Error(err))
		return nil, err
	}
	if !class.StudentIDs.Contains(studentID) {
		return nil, ErrNotEnrolled
	}

	// 4. 小节存在且学生在小节名册中
	section, err := s.repo.Section.GetByID(ctx, code.SectionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSectionNotFound
		}
		s.logger.Error("查询小节失败", zap.String("section_id", code.SectionID), zap.Error(err))
		return nil, err
	}
	if !section.StudentIDs.Contains(studentID) {
		return nil, ErrWrongSection
	}

	// 5. 重复判定窗口：窗口内同 (student, section, day) 且指纹一致或缺失的记录视为重复
	since := now.Add(-s.cfg.QR.DuplicateWindow)
	dup, err := s.repo.Attendance.FindDuplicateSince(ctx, studentID, code.SectionID, code.DayNumber, req.Fingerprint, since)
	if err != nil {
		s.logger.Error("查询重复签到失败", zap.Error(err))
		return nil, err
	}
	if dup != nil {
		return nil, ErrDuplicateSubmission
	}

	// 6. 写入 present 记录
	att := &model.Attendance{
		StudentID:    studentID,
		CodeID:       &code.CodeID,
		ClassID:      code.ClassID,
		SectionID:    code.SectionID,
		DayNumber:    code.DayNumber,
		LocLongitude: req.Location.Longitude,
		LocLatitude:  req.Location.Latitude,
		Status:       model.AttendanceStatusPresent,
		RecordedAt:   now,
	}
	if req.Fingerprint != "" {
		att.Fingerprint = &req.Fingerprint
	}
	if userAgent != "" {
		att.UserAgent = &userAgent
	}
	if ip != "" {
		att.IP = &ip
	}
	if err := s.repo.Attendance.Create(ctx, att); err != nil {
		// 部分唯一索引兜底并发双写
		if isDuplicateKeyError(err) {
			return nil, ErrDuplicateSubmission
		}
		s.logger.Error("写入考勤记录失败", zap.Error(err))
		return nil, err
	}

	s.invalidateStats(ctx, code.ClassID)

	s.logger.Info("扫码签到成功",
		zap.String("student_id", studentID),
		zap.String("section_id", code.SectionID),
		zap.Int("day_number", code.DayNumber))
	return toAttendanceResponse(att), nil
}

// verifyResultLabel 验证结果到指标 label 的映射
func verifyResultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidOrExpiredCode):
		return "invalid_code"
	case errors.Is(err, ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, ErrClassNotFound), errors.Is(err, ErrSectionNotFound):
		return "not_found"
	case errors.Is(err, ErrNotEnrolled), errors.Is(err, ErrWrongSection):
		return "not_member"
	case errors.Is(err, ErrDuplicateSubmission):
		return "duplicate"
	default:
		return "error"
	}
}

func isDuplicateKeyError(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// ────────────────────── RecordManual ──────────────────────

func (s *attendanceService) RecordManual(ctx context.Context, req *dto.ManualAttendanceRequest) (*dto.AttendanceResponse, error) {
	class, err := s.repo.Class.GetByID(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		s.logger.Error("查询班级失败", zap.String("class_id", req.ClassID), zap.Error(err))
		return nil, err
	}
	if !class.StudentIDs.Contains(req.StudentID) {
		return nil, ErrNotEnrolled
	}

	section, err := s.repo.Section.GetByID(ctx, req.SectionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSectionNotFound
		}
		s.logger.Error("查询小节失败", zap.String("section_id", req.SectionID), zap.Error(err))
		return nil, err
	}
	if section.ClassID != req.ClassID {
		return nil, ErrSectionNotFound
	}
	if !section.StudentIDs.Contains(req.StudentID) {
		return nil, ErrWrongSection
	}

	att := &model.Attendance{
		StudentID:  req.StudentID,
		ClassID:    req.ClassID,
		SectionID:  req.SectionID,
		DayNumber:  req.DayNumber,
		Status:     req.Status,
		RecordedAt: s.clk.Now(),
	}
	if err := s.repo.Attendance.Upsert(ctx, att); err != nil {
		s.logger.Error("手动录入考勤失败", zap.Error(err))
		return nil, err
	}

	s.invalidateStats(ctx, req.ClassID)
	return toAttendanceResponse(att), nil
}

// ────────────────────── List ──────────────────────

func (s *attendanceService) List(ctx context.Context, req *dto.AttendanceListRequest) ([]dto.AttendanceResponse, error) {
	switch {
	case req.SectionID != "":
		section, err := s.repo.Section.GetByID(ctx, req.SectionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrSectionNotFound
			}
			return nil, err
		}
		atts, err := s.repo.Attendance.ListByClassAndSections(ctx, section.ClassID, []string{section.SectionID})
		if err != nil {
			s.logger.Error("查询小节考勤失败", zap.Error(err))
			return nil, err
		}
		return toAttendanceResponses(atts), nil
	case req.ClassID != "":
		if _, err := s.repo.Class.GetByID(ctx, req.ClassID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrClassNotFound
			}
			return nil, err
		}
		atts, err := s.repo.Attendance.ListByClass(ctx, req.ClassID)
		if err != nil {
			s.logger.Error("查询班级考勤失败", zap.Error(err))
			return nil, err
		}
		return toAttendanceResponses(atts), nil
	default:
		return []dto.AttendanceResponse{}, nil
	}
}

// ────────────────────── ListForStudent ──────────────────────

func (s *attendanceService) ListForStudent(ctx context.Context, classID, studentID string) ([]dto.AttendanceResponse, error) {
	class, err := s.repo.Class.GetByID(ctx, classID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, err
	}
	if !class.StudentIDs.Contains(studentID) {
		return nil, ErrNotEnrolled
	}

	sections, err := s.repo.Section.ListByClassAndStudent(ctx, classID, studentID)
	if err != nil {
		s.logger.Error("查询学生小节失败", zap.Error(err))
		return nil, err
	}
	sectionIDs := make([]string, 0, len(sections))
	for _, sec := range sections {
		sectionIDs = append(sectionIDs, sec.SectionID)
	}

	atts, err := s.repo.Attendance.ListByStudent(ctx, classID, studentID, sectionIDs)
	if err != nil {
		s.logger.Error("查询学生考勤失败", zap.Error(err))
		return nil, err
	}
	return toAttendanceResponses(atts), nil
}

// ────────────────────── 内部辅助 ──────────────────────

// invalidateStats 写路径后失效统计缓存；缓存不可用时静默降级
func (s *attendanceService) invalidateStats(ctx context.Context, classID string) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.InvalidateStatsCache(ctx, classID); err != nil {
		s.logger.Warn("失效统计缓存失败", zap.String("class_id", classID), zap.Error(err))
	}
}

func toAttendanceResponse(att *model.Attendance) *dto.AttendanceResponse {
	return &dto.AttendanceResponse{
		AttendanceID: att.AttendanceID,
		StudentID:    att.StudentID,
		CodeID:       att.CodeID,
		ClassID:      att.ClassID,
		SectionID:    att.SectionID,
		DayNumber:    att.DayNumber,
		Status:       att.Status,
		RecordedAt:   att.RecordedAt.Format(time.RFC3339),
	}
}

func toAttendanceResponses(atts []model.Attendance) []dto.AttendanceResponse {
	out := make([]dto.AttendanceResponse, 0, len(atts))
	for i := range atts {
		out = append(out, *toAttendanceResponse(&atts[i]))
	}
	return out
}
