package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/internal/dto"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/internal/service"
	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/pkg/response"
)

// QRCodeHandler 二维码模块 HTTP 处理器
type QRCodeHandler struct {
	qrSvc service.QRCodeService
}

// NewQRCodeHandler 创建 QRCodeHandler
func NewQRCodeHandler(qrSvc service.QRCodeService) *QRCodeHandler {
	return &QRCodeHandler{qrSvc: qrSvc}
}

// GenerateQRCode 生成二维码并启动轮换
// POST /api/v1/qrcodes/generate
func (h *QRCodeHandler) GenerateQRCode(c *gin.Context) {
	var req dto.GenerateQRCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	if req.SectionID == "" && req.SectionNumber <= 0 {
		response.BadRequest(c, 10001, "section_id 与 section_number 必须提供其一")
		return
	}

	creatorID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	qr, err := h.qrSvc.GenerateAndActivate(c.Request.Context(), &req, creatorID)
	if err != nil {
		h.handleQRCodeError(c, err)
		return
	}

	if qr.AlreadyActive {
		response.OK(c, qr)
		return
	}
	response.Created(c, qr)
}

// CloseQRCode 关闭小节签到并补缺勤
// POST /api/v1/qrcodes/close
func (h *QRCodeHandler) CloseQRCode(c *gin.Context) {
	var req dto.CloseQRCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	if err := h.qrSvc.Close(c.Request.Context(), &req); err != nil {
		h.handleQRCodeError(c, err)
		return
	}

	response.OK(c, nil)
}

func (h *QRCodeHandler) handleQRCodeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrClassNotFound):
		response.NotFound(c, 21001, "班级不存在")
	case errors.Is(err, service.ErrSectionNotFound):
		response.NotFound(c, 22001, "小节不存在")
	case errors.Is(err, service.ErrSectionClassMismatch):
		response.BadRequest(c, 22005, "小节不属于该班级")
	default:
		response.InternalError(c)
	}
}
