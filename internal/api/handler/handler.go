package handler

import "github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Class      *ClassHandler
	Section    *SectionHandler
	QRCode     *QRCodeHandler
	Attendance *AttendanceHandler
	Stats      *StatsHandler
	Export     *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Class:      NewClassHandler(svc.Class),
		Section:    NewSectionHandler(svc.Section),
		QRCode:     NewQRCodeHandler(svc.QRCode),
		Attendance: NewAttendanceHandler(svc.Attendance),
		Stats:      NewStatsHandler(svc.Stats),
		Export:     NewExportHandler(svc.Export),
	}
}
