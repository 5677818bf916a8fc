package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/internal/dto"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/internal/service"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/pkg/response"
)

// SectionHandler 小节模块 HTTP 处理器
type SectionHandler struct {
	sectionSvc service.SectionService
}

// NewSectionHandler 创建 SectionHandler
func NewSectionHandler(sectionSvc service.SectionService) *SectionHandler {
	return &SectionHandler{sectionSvc: sectionSvc}
}

// CreateSection 创建小节
// POST /api/v1/sections
func (h *SectionHandler) CreateSection(c *gin.Context) {
	var req dto.CreateSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, callerRole, ok := mustGetCaller(c)
	if !ok {
		return
	}

	section, err := h.sectionSvc.Create(c.Request.Context(), &req, callerID, callerRole)
	if err != nil {
		h.handleSectionError(c, err)
		return
	}

	response.Created(c, section)
}

// GetSection 获取小节详情
// GET /api/v1/sections/:id
func (h *SectionHandler) GetSection(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "小节ID不能为空")
		return
	}

	section, err := h.sectionSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleSectionError(c, err)
		return
	}

	response.OK(c, section)
}

// ListSections 获取班级下的小节列表
// GET /api/v1/sections?class_id=xxx
func (h *SectionHandler) ListSections(c *gin.Context) {
	classID := c.Query("class_id")
	if classID == "" {
		response.BadRequest(c, 10001, "class_id 不能为空")
		return
	}

	sections, err := h.sectionSvc.ListByClass(c.Request.Context(), classID)
	if err != nil {
		h.handleSectionError(c, err)
		return
	}

	response.OK(c, gin.H{"list": sections})
}

// UpdateSection 更新小节
// PUT /api/v1/sections/:id
func (h *SectionHandler) UpdateSection(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "小节ID不能为空")
		return
	}

	var req dto.UpdateSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, callerRole, ok := mustGetCaller(c)
	if !ok {
		return
	}

	section, err := h.sectionSvc.Update(c.Request.Context(), id, &req, callerID, callerRole)
	if err != nil {
		h.handleSectionError(c, err)
		return
	}

	response.OK(c, section)
}

// AddSectionStudents 批量加入小节名册
// POST /api/v1/sections/:id/students
func (h *SectionHandler) AddSectionStudents(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "小节ID不能为空")
		return
	}

	var req dto.SectionStudentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, callerRole, ok := mustGetCaller(c)
	if !ok {
		return
	}

	section, err := h.sectionSvc.AddStudents(c.Request.Context(), id, &req, callerID, callerRole)
	if err != nil {
		h.handleSectionError(c, err)
		return
	}

	response.OK(c, section)
}

// RemoveSectionStudents 批量移出小节名册
// DELETE /api/v1/sections/:id/students
func (h *SectionHandler) RemoveSectionStudents(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "小节ID不能为空")
		return
	}

	var req dto.SectionStudentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, callerRole, ok := mustGetCaller(c)
	if !ok {
		return
	}

	section, err := h.sectionSvc.RemoveStudents(c.Request.Context(), id, &req, callerID, callerRole)
	if err != nil {
		h.handleSectionError(c, err)
		return
	}

	response.OK(c, section)
}

// DeleteSection 删除小节
// DELETE /api/v1/sections/:id
func (h *SectionHandler) DeleteSection(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "小节ID不能为空")
		return
	}

	callerID, callerRole, ok := mustGetCaller(c)
	if !ok {
		return
	}

	if err := h.sectionSvc.Delete(c.Request.Context(), id, callerID, callerRole); err != nil {
		h.handleSectionError(c, err)
		return
	}

	response.OK(c, nil)
}

func (h *SectionHandler) handleSectionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSectionNotFound):
		response.NotFound(c, 22001, "小节不存在")
	case errors.Is(err, service.ErrClassNotFound):
		response.NotFound(c, 21001, "班级不存在")
	case errors.Is(err, service.ErrNotClassOwner):
		response.Forbidden(c, 10003, "只能操作自己的班级")
	case errors.Is(err, service.ErrSectionNumberTaken):
		response.BadRequest(c, 22002, "该班级下小节编号已存在")
	case errors.Is(err, service.ErrStudentsNotFound):
		response.BadRequest(c, 21003, "部分学号不存在")
	case errors.Is(err, service.ErrStudentsNotEnrolled):
		response.BadRequest(c, 22003, "部分学生未加入班级名册")
	case errors.Is(err, service.ErrStudentsInOtherSection):
		response.BadRequest(c, 22004, "部分学生已属于该班级其他小节")
	default:
		response.InternalError(c)
	}
}

// mustGetCaller 提取 user_id 与 role，任一缺失时已写入 401
func mustGetCaller(c *gin.Context) (string, string, bool) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return "", "", false
	}
	callerRole, ok := MustGetRole(c)
	if !ok {
		return "", "", false
	}
	return callerID, callerRole, true
}
