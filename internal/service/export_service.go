package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/internal/dto"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoSections = errors.New("班级下没有可导出的小节")
)

const exportSheet = "Attendance"

// ExportService 出勤表导出业务接口
type ExportService interface {
	// ExportClassAttendance 导出班级（或其中一个小节）的出勤表 xlsx。
	// 每个学生-小节组合一行，按小节编号、姓名排序
	ExportClassAttendance(ctx context.Context, classID, sectionID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	stats  StatsService
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, stats StatsService, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, stats: stats, logger: logger}
}

// exportRow 展开后的一行：一个学生在一个小节的出勤
type exportRow struct {
	stat dto.StudentStat
	grid *dto.SectionAttendance // nil 表示学生不属于任何小节
}

func (s *exportService) ExportClassAttendance(ctx context.Context, classID, sectionID string) (*bytes.Buffer, string, error) {
	class, err := s.repo.Class.GetByID(ctx, classID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrClassNotFound
		}
		s.logger.Error("查询班级失败", zap.String("class_id", classID), zap.Error(err))
		return nil, "", err
	}

	// 按小节导出时先定位小节，拿到编号做过滤
	filterNumber := 0
	if sectionID != "" {
		section, err := s.repo.Section.GetByID(ctx, sectionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, "", ErrSectionNotFound
			}
			return nil, "", err
		}
		if section.ClassID != classID {
			return nil, "", ErrSectionClassMismatch
		}
		filterNumber = section.SectionNumber
	}

	stats, err := s.stats.Aggregate(ctx, classID)
	if err != nil {
		return nil, "", err
	}

	rows, days := buildExportRows(stats, filterNumber)
	if sectionID != "" && len(rows) == 0 {
		return nil, "", ErrExportNoSections
	}

	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName(f.GetSheetName(0), exportSheet)

	if err := s.writeSheet(f, rows, days); err != nil {
		s.logger.Error("生成导出表失败", zap.String("class_id", classID), zap.Error(err))
		return nil, "", err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		s.logger.Error("序列化导出表失败", zap.Error(err))
		return nil, "", err
	}

	filename := fmt.Sprintf("attendance-%s.xlsx", class.Name)
	if filterNumber > 0 {
		filename = fmt.Sprintf("attendance-%s-section-%d.xlsx", class.Name, filterNumber)
	}
	return buf, filename, nil
}

// buildExportRows 统计结果展开为行并排序；返回行与课次列
func buildExportRows(stats []dto.StudentStat, filterNumber int) ([]exportRow, []int) {
	var rows []exportRow
	var days []int
	for i := range stats {
		stat := stats[i]
		if len(stat.SectionAttendance) == 0 {
			if filterNumber == 0 {
				rows = append(rows, exportRow{stat: stat})
			}
			continue
		}
		for j := range stat.SectionAttendance {
			grid := &stat.SectionAttendance[j]
			if filterNumber > 0 && grid.SectionNumber != filterNumber {
				continue
			}
			if days == nil {
				for _, d := range grid.Days {
					days = append(days, d.DayNumber)
				}
			}
			rows = append(rows, exportRow{stat: stat, grid: grid})
		}
	}
	if days == nil {
		days = []int{1}
	}

	sort.SliceStable(rows, func(a, b int) bool {
		na, nb := 0, 0
		if rows[a].grid != nil {
			na = rows[a].grid.SectionNumber
		}
		if rows[b].grid != nil {
			nb = rows[b].grid.SectionNumber
		}
		if na != nb {
			return na < nb
		}
		return rows[a].stat.Name < rows[b].stat.Name
	})
	return rows, days
}

func (s *exportService) writeSheet(f *excelize.File, rows []exportRow, days []int) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D9E1F2"}},
	})
	if err != nil {
		return err
	}
	presentStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "008000"},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return err
	}
	lateStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFA500"},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return err
	}

	// 第一行：两个合并的分组表头
	lastCol, err := excelize.ColumnNumberToName(4 + len(days) + 2)
	if err != nil {
		return err
	}
	if err := f.MergeCell(exportSheet, "A1", "D1"); err != nil {
		return err
	}
	if err := f.MergeCell(exportSheet, "E1", lastCol+"1"); err != nil {
		return err
	}
	f.SetCellValue(exportSheet, "A1", "Student Data")
	f.SetCellValue(exportSheet, "E1", "Class Attendance")

	// 第二行：列头
	headers := []string{"Student ID", "Name", "Email", "Section Number"}
	for _, day := range days {
		headers = append(headers, fmt.Sprintf("Day %d", day))
	}
	headers = append(headers, "Total", "Attendance %")
	for i, h := range headers {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		f.SetCellValue(exportSheet, col+"2", h)
	}
	if err := f.SetCellStyle(exportSheet, "A1", lastCol+"2", headerStyle); err != nil {
		return err
	}

	f.SetColWidth(exportSheet, "A", "A", 16)
	f.SetColWidth(exportSheet, "B", "B", 24)
	f.SetColWidth(exportSheet, "C", "C", 28)
	f.SetColWidth(exportSheet, "D", "D", 14)

	for i, row := range rows {
		r := i + 3
		f.SetCellValue(exportSheet, fmt.Sprintf("A%d", r), row.stat.StudentCode)
		f.SetCellValue(exportSheet, fmt.Sprintf("B%d", r), row.stat.Name)
		f.SetCellValue(exportSheet, fmt.Sprintf("C%d", r), row.stat.Email)

		if row.grid == nil {
			f.SetCellValue(exportSheet, fmt.Sprintf("D%d", r), "-")
		} else {
			f.SetCellValue(exportSheet, fmt.Sprintf("D%d", r), row.grid.SectionNumber)
			for j, day := range row.grid.Days {
				col, err := excelize.ColumnNumberToName(5 + j)
				if err != nil {
					return err
				}
				cell := col + fmt.Sprint(r)
				switch day.Status {
				case "P":
					f.SetCellValue(exportSheet, cell, "P")
					f.SetCellStyle(exportSheet, cell, cell, presentStyle)
				case "L":
					f.SetCellValue(exportSheet, cell, "L")
					f.SetCellStyle(exportSheet, cell, cell, lateStyle)
				}
			}
		}

		totalCol, err := excelize.ColumnNumberToName(4 + len(days) + 1)
		if err != nil {
			return err
		}
		pctCol, err := excelize.ColumnNumberToName(4 + len(days) + 2)
		if err != nil {
			return err
		}
		f.SetCellValue(exportSheet, totalCol+fmt.Sprint(r), row.stat.TotalSections)
		f.SetCellValue(exportSheet, pctCol+fmt.Sprint(r), row.stat.AttendancePercentage+"%")
	}

	// 冻结学生信息列与表头两行
	return f.SetPanes(exportSheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      4,
		YSplit:      2,
		TopLeftCell: "E3",
		ActivePane:  "bottomRight",
	})
}
