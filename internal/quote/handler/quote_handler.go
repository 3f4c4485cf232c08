package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/stitchquote/internal/quote/entity"
	"github.com/bitfantasy/stitchquote/internal/quote/pricing"
	"github.com/bitfantasy/stitchquote/internal/quote/repository"
	"github.com/bitfantasy/stitchquote/internal/quote/service"
)

type QuoteHandler struct {
	quotes *service.QuoteService
	pricer service.QuotePricer
}

func NewQuoteHandler(quotes *service.QuoteService, pricer service.QuotePricer) *QuoteHandler {
	return &QuoteHandler{quotes: quotes, pricer: pricer}
}

// Get 按报价单号查询会话与明细
// GET /api/v1/quotes/:quoteId
func (h *QuoteHandler) Get(c *gin.Context) {
	quoteID := c.Param("quoteId")
	if quoteID == "" {
		BadRequest(c, "报价单号不能为空")
		return
	}

	session, err := h.quotes.GetQuote(c.Request.Context(), quoteID)
	if errors.Is(err, repository.ErrNotFound) {
		NotFound(c, "报价单不存在: "+quoteID)
		return
	}
	if err != nil {
		InternalError(c, "查询报价单失败: "+err.Error())
		return
	}
	Success(c, session)
}

// PriceRequest 试算请求
type PriceRequest struct {
	Products []entity.ProductLine       `json:"products" binding:"required"`
	Services []entity.AdditionalService `json:"services"`
	Plan     entity.LogoPlan            `json:"plan"`
}

// Price 试算一组产品与服务的报价（不落库）
// POST /api/v1/quotes/price
func (h *QuoteHandler) Price(c *gin.Context) {
	var req PriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if len(req.Products) == 0 {
		BadRequest(c, "产品列表不能为空")
		return
	}

	result, err := h.pricer.CalculateQuote(c.Request.Context(), req.Products, req.Services, req.Plan)
	if errors.Is(err, pricing.ErrConfigDegraded) {
		Error(c, 50300, "定价配置不可用: "+err.Error())
		return
	}
	if errors.Is(err, pricing.ErrCatalogPriceMissing) {
		BadRequest(c, "目录价格缺失: "+err.Error())
		return
	}
	if err != nil {
		InternalError(c, "定价失败: "+err.Error())
		return
	}
	Success(c, result)
}
