package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/config"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/internal/dto"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/internal/model"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/internal/repository"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/pkg/clock"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/pkg/metrics"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/pkg/qrimage"
)

// ── 二维码模块业务错误 ──

var (
	ErrSectionClassMismatch = errors.New("小节不属于该班级")
)

// rotationTickTimeout 单次轮换落库的超时上限
const rotationTickTimeout = 10 * time.Second

// QRCodeService 二维码签发与轮换业务接口
type QRCodeService interface {
	// GenerateAndActivate 为小节签发二维码并启动周期轮换；
	// 轮换已在运行时幂等返回当前活跃码，不会叠加第二个定时器
	GenerateAndActivate(ctx context.Context, req *dto.GenerateQRCodeRequest, creatorID string) (*dto.QRCodeResponse, error)
	// Close 关闭小节当日签到：停用活跃码、停止轮换、为未签到学生补缺勤
	Close(ctx context.Context, req *dto.CloseQRCodeRequest) error
	// StartCleanup 启动过期码后台清理，ctx 取消时停止
	StartCleanup(ctx context.Context)
	// StopAll 停止全部轮换定时器（进程退出前调用）
	StopAll()
}

// rotationState 一个小节正在运行的轮换
type rotationState struct {
	stop      chan struct{}
	classID   string
	dayNumber int
	loc       codeLocation
	creatorID string
}

type codeLocation struct {
	longitude float64
	latitude  float64
	name      string
	radiusM   float64
}

type qrCodeService struct {
	cfg    *config.Config
	repo   *repository.Repository
	clk    clock.Clock
	logger *zap.Logger

	mu        sync.Mutex
	rotations map[string]*rotationState // sectionID → 轮换
	secLocks  map[string]*sync.Mutex    // sectionID → 串行化锁
}

// NewQRCodeService 创建 QRCodeService 实例
func NewQRCodeService(cfg *config.Config, repo *repository.Repository, clk clock.Clock, logger *zap.Logger) QRCodeService {
	return &qrCodeService{
		cfg:       cfg,
		repo:      repo,
		clk:       clk,
		logger:    logger,
		rotations: make(map[string]*rotationState),
		secLocks:  make(map[string]*sync.Mutex),
	}
}

// ────────────────────── GenerateAndActivate ──────────────────────

func (s *qrCodeService) GenerateAndActivate(ctx context.Context, req *dto.GenerateQRCodeRequest, creatorID string) (*dto.QRCodeResponse, error) {
	if _, err := s.repo.Class.GetByID(ctx, req.ClassID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		s.logger.Error("查询班级失败", zap.String("class_id", req.ClassID), zap.Error(err))
		return nil, err
	}

	section, err := s.resolveSection(ctx, req)
	if err != nil {
		return nil, err
	}

	loc := codeLocation{
		longitude: *req.Location.Longitude,
		latitude:  *req.Location.Latitude,
		name:      req.Location.Name,
		radiusM:   req.Location.RadiusM,
	}
	if loc.name == "" {
		loc.name = s.cfg.QR.DefaultLocationName
	}
	if loc.radiusM <= 0 {
		loc.radiusM = s.cfg.QR.DefaultRadiusM
	}

	lock := s.sectionLock(section.SectionID)
	lock.Lock()
	defer lock.Unlock()

	if s.isRunning(section.SectionID) {
		// 轮换已在运行：返回当前活跃码；活跃码恰好在换代间隙缺失时补发一个
		active, err := s.repo.Code.GetActiveBySection(ctx, section.SectionID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error("查询活跃二维码失败", zap.Error(err))
			return nil, err
		}
		if active == nil {
			active, err = s.issueCode(ctx, req.ClassID, section.SectionID, req.DayNumber, loc, creatorID)
			if err != nil {
				return nil, err
			}
		}
		return s.toQRCodeResponse(active, section, true)
	}

	code, err := s.issueCode(ctx, req.ClassID, section.SectionID, req.DayNumber, loc, creatorID)
	if err != nil {
		return nil, err
	}

	state := &rotationState{
		stop:      make(chan struct{}),
		classID:   req.ClassID,
		dayNumber: req.DayNumber,
		loc:       loc,
		creatorID: creatorID,
	}
	s.mu.Lock()
	s.rotations[section.SectionID] = state
	s.mu.Unlock()
	go s.runRotation(section.SectionID, state)

	s.logger.Info("二维码轮换已启动",
		zap.String("section_id", section.SectionID),
		zap.Int("day_number", req.DayNumber),
		zap.Duration("interval", s.cfg.QR.RotationInterval))
	return s.toQRCodeResponse(code, section, false)
}

// resolveSection 按 SectionID 或 (ClassID, SectionNumber) 定位小节
func (s *qrCodeService) resolveSection(ctx context.Context, req *dto.GenerateQRCodeRequest) (*model.Section, error) {
	if req.SectionID != "" {
		section, err := s.repo.Section.GetByID(ctx, req.SectionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrSectionNotFound
			}
			return nil, err
		}
		if section.ClassID != req.ClassID {
			return nil, ErrSectionClassMismatch
		}
		return section, nil
	}
	if req.SectionNumber <= 0 {
		return nil, ErrSectionNotFound
	}
	section, err := s.repo.Section.GetByClassAndNumber(ctx, req.ClassID, req.SectionNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSectionNotFound
		}
		return nil, err
	}
	return section, nil
}

// ────────────────────── 轮换循环 ──────────────────────

func (s *qrCodeService) runRotation(sectionID string, state *rotationState) {
	ticker := time.NewTicker(s.cfg.QR.RotationInterval)
	defer ticker.Stop()
	for {
		select {
		case <-state.stop:
			return
		case <-ticker.C:
			s.tick(sectionID, state)
		}
	}
}

// tick 单次轮换：小节仍存在则换新码，已删除则自取消
func (s *qrCodeService) tick(sectionID string, state *rotationState) {
	lock := s.sectionLock(sectionID)
	lock.Lock()
	defer lock.Unlock()

	// Close 可能赶在本 tick 前取消了轮换
	if !s.isRunning(sectionID) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), rotationTickTimeout)
	defer cancel()

	if _, err := s.repo.Section.GetByID(ctx, sectionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Info("小节已删除，轮换自取消", zap.String("section_id", sectionID))
			s.deregister(sectionID)
			return
		}
		// 瞬时故障：跳过本次，下个 tick 重试
		s.logger.Warn("轮换查询小节失败", zap.String("section_id", sectionID), zap.Error(err))
		return
	}

	if _, err := s.issueCode(ctx, state.classID, sectionID, state.dayNumber, state.loc, state.creatorID); err != nil {
		s.logger.Warn("轮换签发二维码失败", zap.String("section_id", sectionID), zap.Error(err))
	}
}

// issueCode 停用小节旧码并签发新码；调用方持有小节锁
func (s *qrCodeService) issueCode(ctx context.Context, classID, sectionID string, dayNumber int, loc codeLocation, creatorID string) (*model.Code, error) {
	if err := s.repo.Code.DeactivateBySection(ctx, sectionID); err != nil {
		s.logger.Error("停用旧二维码失败", zap.String("section_id", sectionID), zap.Error(err))
		return nil, err
	}
	code := &model.Code{
		Code:         uuid.NewString(),
		ExpiresAt:    s.clk.Now().Add(s.cfg.QR.RotationInterval),
		LocLongitude: loc.longitude,
		LocLatitude:  loc.latitude,
		LocName:      loc.name,
		LocRadiusM:   loc.radiusM,
		ClassID:      classID,
		SectionID:    sectionID,
		DayNumber:    dayNumber,
		CreatedBy:    creatorID,
		IsActive:     true,
	}
	if err := s.repo.Code.Create(ctx, code); err != nil {
		s.logger.Error("签发二维码失败", zap.String("section_id", sectionID), zap.Error(err))
		return nil, err
	}
	metrics.RotationsTotal.Inc()
	return code, nil
}

// ────────────────────── Close ──────────────────────

func (s *qrCodeService) Close(ctx context.Context, req *dto.CloseQRCodeRequest) error {
	section, err := s.repo.Section.GetByID(ctx, req.SectionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSectionNotFound
		}
		s.logger.Error("查询小节失败", zap.String("section_id", req.SectionID), zap.Error(err))
		return err
	}

	lock := s.sectionLock(req.SectionID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.repo.Code.DeactivateBySectionDay(ctx, req.SectionID, req.DayNumber); err != nil {
		s.logger.Error("停用二维码失败", zap.String("section_id", req.SectionID), zap.Error(err))
		return err
	}
	s.deregister(req.SectionID)

	filled, err := s.finalizeAbsences(ctx, section, req.DayNumber)
	if err != nil {
		return err
	}
	s.logger.Info("小节签到已关闭",
		zap.String("section_id", req.SectionID),
		zap.Int("day_number", req.DayNumber),
		zap.Int("absences_filled", filled))
	return nil
}

// finalizeAbsences 为小节名册中当日无任何记录的学生补缺勤。
// 逐学生幂等：已有记录（present/late/absent）一律跳过，重复调用不产生新行
func (s *qrCodeService) finalizeAbsences(ctx context.Context, section *model.Section, dayNumber int) (int, error) {
	now := s.clk.Now()
	filled := 0
	for _, studentID := range section.StudentIDs {
		exists, err := s.repo.Attendance.Exists(ctx, studentID, section.SectionID, dayNumber)
		if err != nil {
			s.logger.Error("查询考勤记录失败", zap.String("student_id", studentID), zap.Error(err))
			return filled, err
		}
		if exists {
			continue
		}
		att := &model.Attendance{
			StudentID:  studentID,
			ClassID:    section.ClassID,
			SectionID:  section.SectionID,
			DayNumber:  dayNumber,
			Status:     model.AttendanceStatusAbsent,
			RecordedAt: now,
		}
		if err := s.repo.Attendance.Create(ctx, att); err != nil {
			// 并发写入撞上兜底唯一索引：该学生已有记录，跳过即可
			if isDuplicateKeyError(err) {
				continue
			}
			s.logger.Error("补缺勤记录失败", zap.String("student_id", studentID), zap.Error(err))
			return filled, err
		}
		filled++
	}
	if filled > 0 {
		metrics.AbsencesFilledTotal.Add(float64(filled))
	}
	return filled, nil
}

// ────────────────────── 后台清理 ──────────────────────

func (s *qrCodeService) StartCleanup(ctx context.Context) {
	interval := s.cfg.QR.CleanupInterval
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := s.clk.Now().Add(-24 * time.Hour)
				n, err := s.repo.Code.DeactivateExpiredBefore(context.Background(), cutoff)
				if err != nil {
					s.logger.Warn("清理过期二维码失败", zap.Error(err))
					continue
				}
				if n > 0 {
					s.logger.Info("已清理过期二维码", zap.Int64("count", n))
				}
			}
		}
	}()
}

// ────────────────────── StopAll ──────────────────────

func (s *qrCodeService) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sectionID, state := range s.rotations {
		close(state.stop)
		delete(s.rotations, sectionID)
	}
}

// ────────────────────── 内部辅助 ──────────────────────

// sectionLock 取（或建）小节串行化锁，保证同一小节的签发/轮换/关闭互斥
func (s *qrCodeService) sectionLock(sectionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.secLocks[sectionID]
	if !ok {
		lock = &sync.Mutex{}
		s.secLocks[sectionID] = lock
	}
	return lock
}

func (s *qrCodeService) isRunning(sectionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rotations[sectionID]
	return ok
}

func (s *qrCodeService) deregister(sectionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.rotations[sectionID]; ok {
		close(state.stop)
		delete(s.rotations, sectionID)
	}
}

func (s *qrCodeService) toQRCodeResponse(code *model.Code, section *model.Section, alreadyActive bool) (*dto.QRCodeResponse, error) {
	verifyURL := fmt.Sprintf("%s/api/v1/attendance/verify/%s", s.cfg.Server.BaseURL, code.Code)
	img, err := qrimage.DataURL(verifyURL)
	if err != nil {
		s.logger.Error("生成二维码图片失败", zap.Error(err))
		return nil, err
	}
	return &dto.QRCodeResponse{
		CodeID:        code.CodeID,
		QRImage:       img,
		SectionID:     section.SectionID,
		SectionNumber: section.SectionNumber,
		DayNumber:     code.DayNumber,
		ExpiresAt:     code.ExpiresAt.Format(time.RFC3339),
		AlreadyActive: alreadyActive,
	}, nil
}
