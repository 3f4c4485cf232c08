package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/stitchquote/internal/quote/service"
)

type ImportHandler struct {
	imports *service.ImportService
	batch   *service.BatchService
}

func NewImportHandler(imports *service.ImportService, batch *service.BatchService) *ImportHandler {
	return &ImportHandler{imports: imports, batch: batch}
}

// ImportRequest 导入请求
type ImportRequest struct {
	Text     string `json:"text" binding:"required"`
	KeepData bool   `json:"keep_data"`
}

// DryRun 解析并定价单个订单文本，不落库
// POST /api/v1/imports/dry-run
func (h *ImportHandler) DryRun(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	report := h.imports.ProcessOrder(c.Request.Context(), req.Text, service.ProcessOptions{})
	Success(c, report)
}

// Run 执行完整导入流水线（落库 + 校验）
// POST /api/v1/imports
func (h *ImportHandler) Run(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	report := h.imports.ProcessOrder(c.Request.Context(), req.Text, service.ProcessOptions{
		Live:     true,
		KeepData: req.KeepData,
	})
	if report.Failed() {
		Error(c, 42200, report.Err)
		return
	}
	Created(c, report)
}

// RunBatch 执行批量导入流水线
// POST /api/v1/imports/batch
func (h *ImportHandler) RunBatch(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	report, err := h.batch.ProcessBatch(c.Request.Context(), req.Text, service.BatchOptions{
		Live:     true,
		KeepData: req.KeepData,
	})
	if err != nil {
		InternalError(c, "批量导入失败: "+err.Error())
		return
	}
	Created(c, report)
}
