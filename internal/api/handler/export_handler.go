package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"labkeeper/internal/dto"
	"labkeeper/internal/service"
	"labkeeper/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler 报表导出 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportBorrowings 导出借用流水 xlsx（staff/admin）
// GET /api/v1/exports/borrowings
func (h *ExportHandler) ExportBorrowings(c *gin.Context) {
	var req dto.BorrowingListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	data, filename, err := h.exportSvc.ExportBorrowings(c.Request.Context(), &req)
	if err != nil {
		response.InternalError(c)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}
