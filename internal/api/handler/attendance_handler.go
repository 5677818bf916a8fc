package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/internal/dto"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/internal/service"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/pkg/response"
)

// AttendanceHandler 考勤模块 HTTP 处理器
type AttendanceHandler struct {
	attendanceSvc service.AttendanceService
}

// NewAttendanceHandler 创建 AttendanceHandler
func NewAttendanceHandler(attendanceSvc service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendanceSvc: attendanceSvc}
}

// VerifyAttendance 扫码签到
// POST /api/v1/attendance/verify/:token
func (h *AttendanceHandler) VerifyAttendance(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		response.BadRequest(c, 10001, "二维码 token 不能为空")
		return
	}

	var req dto.VerifyAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	studentID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	att, err := h.attendanceSvc.Verify(c.Request.Context(), token, studentID, &req,
		c.Request.UserAgent(), c.ClientIP())
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.Created(c, att)
}

// RecordManual 教师手动录入/修正考勤
// POST /api/v1/attendance/manual
func (h *AttendanceHandler) RecordManual(c *gin.Context) {
	var req dto.ManualAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	att, err := h.attendanceSvc.RecordManual(c.Request.Context(), &req)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, att)
}

// ListAttendance 查询班级/小节的考勤记录
// GET /api/v1/attendance?class_id=xxx&section_id=xxx
func (h *AttendanceHandler) ListAttendance(c *gin.Context) {
	var req dto.AttendanceListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	if req.ClassID == "" && req.SectionID == "" {
		response.BadRequest(c, 10001, "class_id 与 section_id 必须提供其一")
		return
	}

	atts, err := h.attendanceSvc.List(c.Request.Context(), &req)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, gin.H{"list": atts})
}

// ListMyAttendance 学生查询自己在某班级的考勤
// GET /api/v1/attendance/me?class_id=xxx
func (h *AttendanceHandler) ListMyAttendance(c *gin.Context) {
	var req dto.StudentAttendanceRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	studentID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	atts, err := h.attendanceSvc.ListForStudent(c.Request.Context(), req.ClassID, studentID)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, gin.H{"list": atts})
}

func (h *AttendanceHandler) handleAttendanceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidOrExpiredCode):
		response.BadRequest(c, 20001, "二维码无效或已过期")
	case errors.Is(err, service.ErrOutOfRange):
		response.BadRequest(c, 20002, "不在允许的签到范围内")
	case errors.Is(err, service.ErrNotEnrolled):
		response.Forbidden(c, 20003, "未加入该班级")
	case errors.Is(err, service.ErrWrongSection):
		response.Forbidden(c, 20004, "不属于该小节")
	case errors.Is(err, service.ErrDuplicateSubmission):
		response.BadRequest(c, 20005, "请勿重复签到")
	case errors.Is(err, service.ErrClassNotFound):
		response.NotFound(c, 21001, "班级不存在")
	case errors.Is(err, service.ErrSectionNotFound):
		response.NotFound(c, 22001, "小节不存在")
	default:
		response.InternalError(c)
	}
}
