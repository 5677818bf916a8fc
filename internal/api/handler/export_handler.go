package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/internal/service"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/pkg/response"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportAttendance 导出班级/小节出勤表
// GET /api/v1/export/attendance?class_id=xxx&section_id=xxx
func (h *ExportHandler) ExportAttendance(c *gin.Context) {
	classID := c.Query("class_id")
	if classID == "" {
		response.BadRequest(c, 10001, "class_id 不能为空")
		return
	}
	sectionID := c.Query("section_id")

	buf, filename, err := h.exportSvc.ExportClassAttendance(c.Request.Context(), classID, sectionID)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	// 设置下载响应头
	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrClassNotFound):
		response.NotFound(c, 21001, "班级不存在")
	case errors.Is(err, service.ErrSectionNotFound):
		response.NotFound(c, 22001, "小节不存在")
	case errors.Is(err, service.ErrSectionClassMismatch):
		response.BadRequest(c, 22005, "小节不属于该班级")
	case errors.Is(err, service.ErrExportNoSections):
		response.NotFound(c, 23001, "班级下没有可导出的小节")
	default:
		response.InternalError(c)
	}
}
