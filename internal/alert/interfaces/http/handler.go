// Package http 告警服务的 HTTP 接口层
package http

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/microfinance/internal/alert/application"
	"github.com/wyfcoding/microfinance/pkg/response"
	"github.com/wyfcoding/microfinance/pkg/utils"
)

// AlertHandler 告警服务 HTTP 处理器
type AlertHandler struct {
	service *application.AlertService
}

func NewAlertHandler(service *application.AlertService) *AlertHandler {
	return &AlertHandler{service: service}
}

// RegisterRoutes 注册路由
func (h *AlertHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/alerts", h.ListAlerts)
		api.POST("/alerts/scan", h.TriggerScan)
	}
}

// ListAlerts 分页列出投递日志。页码参数越界时回落到默认值
func (h *AlertHandler) ListAlerts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
	pag := utils.NewPagination(page, pageSize, 0)

	logs, total, err := h.service.ListLogs(c.Request.Context(), pag.Limit(), pag.Offset())
	if err != nil {
		response.Error(c, "failed to list alerts")
		return
	}
	response.Success(c, gin.H{
		"items":      logs,
		"pagination": utils.NewPagination(pag.Page, pag.PageSize, total),
	})
}

// TriggerScan 手工触发一次到期扫描, 供运维排障
func (h *AlertHandler) TriggerScan(c *gin.Context) {
	if err := h.service.RunScheduledScan(c.Request.Context()); err != nil {
		response.Error(c, err.Error())
		return
	}
	response.Success(c, gin.H{"status": "completed"})
}
