package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/internal/dto"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/internal/model"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/internal/repository"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/pkg/redis"
)

// statsCacheTTL 统计结果缓存时长；写路径会主动失效，TTL 只兜底
const statsCacheTTL = 30 * time.Second

// StatsService 出勤统计业务接口
type StatsService interface {
	// Aggregate 汇总班级全部学生的出勤：逐小节逐课次网格 + 出勤率。
	// 出勤率 = (出勤+迟到) / (学生所属小节数 × 课次数) × 100
	Aggregate(ctx context.Context, classID string) ([]dto.StudentStat, error)
}

type statsService struct {
	repo   *repository.Repository
	rdb    *redis.Client
	logger *zap.Logger
}

// NewStatsService 创建 StatsService 实例
func NewStatsService(repo *repository.Repository, rdb *redis.Client, logger *zap.Logger) StatsService {
	return &statsService{repo: repo, rdb: rdb, logger: logger}
}

func (s *statsService) Aggregate(ctx context.Context, classID string) ([]dto.StudentStat, error) {
	if cached, ok := s.fromCache(ctx, classID); ok {
		return cached, nil
	}

	class, err := s.repo.Class.GetByID(ctx, classID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		s.logger.Error("查询班级失败", zap.String("class_id", classID), zap.Error(err))
		return nil, err
	}

	sections, err := s.repo.Section.ListByClass(ctx, classID)
	if err != nil {
		s.logger.Error("查询小节列表失败", zap.String("class_id", classID), zap.Error(err))
		return nil, err
	}
	if len(sections) == 0 {
		return []dto.StudentStat{}, nil
	}

	sectionIDs := make([]string, 0, len(sections))
	sectionByID := make(map[string]*model.Section, len(sections))
	for i := range sections {
		sectionIDs = append(sectionIDs, sections[i].SectionID)
		sectionByID[sections[i].SectionID] = &sections[i]
	}

	days, err := s.repo.Attendance.DistinctDays(ctx, classID, sectionIDs)
	if err != nil {
		s.logger.Error("查询课次失败", zap.String("class_id", classID), zap.Error(err))
		return nil, err
	}
	// 尚无任何考勤活动时仍展示第 1 课次的空网格
	if len(days) == 0 {
		days = []int{1}
	}

	atts, err := s.repo.Attendance.ListByClassAndSections(ctx, classID, sectionIDs)
	if err != nil {
		s.logger.Error("查询考勤记录失败", zap.String("class_id", classID), zap.Error(err))
		return nil, err
	}

	// status[studentID][sectionID][day] = 状态；同键多条记录取最早一条
	status := make(map[string]map[string]map[int]string)
	for i := range atts {
		att := &atts[i]
		sec, ok := sectionByID[att.SectionID]
		if !ok || !sec.StudentIDs.Contains(att.StudentID) {
			// 学生已被移出小节名册的历史记录不计入统计
			continue
		}
		bySection, ok := status[att.StudentID]
		if !ok {
			bySection = make(map[string]map[int]string)
			status[att.StudentID] = bySection
		}
		byDay, ok := bySection[att.SectionID]
		if !ok {
			byDay = make(map[int]string)
			bySection[att.SectionID] = byDay
		}
		if _, ok := byDay[att.DayNumber]; !ok {
			byDay[att.DayNumber] = att.Status
		}
	}

	users, err := s.repo.User.ListByIDs(ctx, class.StudentIDs)
	if err != nil {
		s.logger.Error("查询学生信息失败", zap.String("class_id", classID), zap.Error(err))
		return nil, err
	}
	userByID := make(map[string]*model.User, len(users))
	for i := range users {
		userByID[users[i].UserID] = &users[i]
	}

	// 输出顺序跟随班级名册
	stats := make([]dto.StudentStat, 0, len(class.StudentIDs))
	for _, studentID := range class.StudentIDs {
		user, ok := userByID[studentID]
		if !ok {
			continue
		}

		var studentSections []*model.Section
		for i := range sections {
			if sections[i].StudentIDs.Contains(studentID) {
				studentSections = append(studentSections, &sections[i])
			}
		}

		stat := dto.StudentStat{
			StudentID:         studentID,
			Name:              user.Name,
			Email:             user.Email,
			SectionAttendance: make([]dto.SectionAttendance, 0, len(studentSections)),
		}
		if user.StudentCode != nil {
			stat.StudentCode = *user.StudentCode
		}

		for _, sec := range studentSections {
			grid := dto.SectionAttendance{
				SectionNumber: sec.SectionNumber,
				Days:          make([]dto.DayStatus, 0, len(days)),
			}
			for _, day := range days {
				mark := ""
				switch status[studentID][sec.SectionID][day] {
				case model.AttendanceStatusPresent:
					mark = "P"
					stat.TotalAttended++
				case model.AttendanceStatusLate:
					mark = "L"
					stat.TotalLate++
				case model.AttendanceStatusAbsent:
					stat.TotalAbsent++
				}
				grid.Days = append(grid.Days, dto.DayStatus{DayNumber: day, Status: mark})
			}
			stat.SectionAttendance = append(stat.SectionAttendance, grid)
		}

		stat.TotalSections = stat.TotalAttended + stat.TotalLate
		totalPossible := len(studentSections) * len(days)
		if totalPossible > 0 {
			pct := float64(stat.TotalSections) / float64(totalPossible) * 100
			stat.AttendancePercentage = fmt.Sprintf("%.2f", pct)
		} else {
			stat.AttendancePercentage = "0.00"
		}

		stats = append(stats, stat)
	}

	s.toCache(ctx, classID, stats)
	return stats, nil
}

// ────────────────────── 缓存 ──────────────────────

func (s *statsService) fromCache(ctx context.Context, classID string) ([]dto.StudentStat, bool) {
	if s.rdb == nil {
		return nil, false
	}
	payload, err := s.rdb.GetStatsCache(ctx, classID)
	if err != nil || payload == "" {
		return nil, false
	}
	var stats []dto.StudentStat
	if err := json.Unmarshal([]byte(payload), &stats); err != nil {
		s.logger.Warn("统计缓存反序列化失败", zap.String("class_id", classID), zap.Error(err))
		return nil, false
	}
	return stats, true
}

func (s *statsService) toCache(ctx context.Context, classID string, stats []dto.StudentStat) {
	if s.rdb == nil {
		return
	}
	payload, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := s.rdb.SetStatsCache(ctx, classID, string(payload), statsCacheTTL); err != nil {
		s.logger.Warn("写入统计缓存失败", zap.String("class_id", classID), zap.Error(err))
	}
}
