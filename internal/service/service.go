package service

import (
	"go.uber.org/zap"

	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/config"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/internal/repository"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/pkg/clock"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/pkg/redis"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Class      ClassService
	Section    SectionService
	QRCode     QRCodeService
	Attendance AttendanceService
	Stats      StatsService
	Export     ExportService
}

// NewService 创建 Service 聚合
// rdb 允许为 nil：限流与统计缓存降级，核心功能不受影响
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	rdb *redis.Client,
	clk clock.Clock,
	logger *zap.Logger,
) *Service {
	stats := NewStatsService(repo, rdb, logger)
	return &Service{
		Class:      NewClassService(repo, logger),
		Section:    NewSectionService(repo, logger),
		QRCode:     NewQRCodeService(cfg, repo, clk, logger),
		Attendance: NewAttendanceService(cfg, repo, rdb, clk, logger),
		Stats:      stats,
		Export:     NewExportService(repo, stats, logger),
	}
}
