// Package http 贷款服务的 HTTP 接口层
package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/microfinance/internal/loan/application"
	"github.com/wyfcoding/microfinance/internal/loan/domain"
	"github.com/wyfcoding/microfinance/pkg/logger"
	"github.com/wyfcoding/microfinance/pkg/metrics"
	"github.com/wyfcoding/microfinance/pkg/response"
	"github.com/wyfcoding/microfinance/pkg/utils"
)

// LoanHandler 贷款服务 HTTP 处理器
type LoanHandler struct {
	loans    *application.LoanService
	payments *application.PaymentService
	schedule *application.ScheduleQueryService
	metrics  *metrics.Metrics
}

func NewLoanHandler(
	loans *application.LoanService,
	payments *application.PaymentService,
	schedule *application.ScheduleQueryService,
	m *metrics.Metrics,
) *LoanHandler {
	return &LoanHandler{loans: loans, payments: payments, schedule: schedule, metrics: m}
}

// RegisterRoutes 注册路由
func (h *LoanHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/customers", h.CreateCustomer)
		api.GET("/customers", h.ListCustomers)
		api.GET("/customers/:id", h.GetCustomer)
		api.PUT("/customers/:id", h.UpdateCustomer)

		api.POST("/loans", h.CreateLoan)
		api.GET("/loans", h.ListLoans)
		api.GET("/loans/:id", h.GetLoan)
		api.POST("/loans/:id/status", h.TransitionStatus)
		api.GET("/loans/:id/amortization", h.GetAmortization)
		api.POST("/loans/amortization/preview", h.PreviewAmortization)

		api.POST("/payments", h.ApplyPayment)
		api.GET("/payments", h.ListPayments)

		api.POST("/loans/:id/collateral", h.AddCollateral)
		api.GET("/loans/:id/collateral", h.ListCollateral)

		api.POST("/loans/:id/documents", h.AddDocument)
		api.GET("/loans/:id/documents", h.ListDocuments)
		api.POST("/documents/:id/verify", h.VerifyDocument)
	}
}

// writeError 领域错误到 HTTP 状态码的映射
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrLoanNotFound),
		errors.Is(err, domain.ErrCustomerNotFound),
		errors.Is(err, domain.ErrDocumentNotFound):
		response.ErrorWithStatus(c, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrLoanNotActive),
		errors.Is(err, domain.ErrAmountExceedsBalance),
		errors.Is(err, domain.ErrInvalidPayment),
		errors.Is(err, domain.ErrInvalidPaymentMethod),
		errors.Is(err, domain.ErrInvalidPrincipal),
		errors.Is(err, domain.ErrInvalidRate),
		errors.Is(err, domain.ErrInvalidTerm),
		errors.Is(err, domain.ErrInvalidPurpose),
		errors.Is(err, domain.ErrInvalidCollateralType),
		errors.Is(err, domain.ErrInvalidDocumentType):
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
	default:
		logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, "internal error", "")
	}
}

// CreateCustomer 登记客户
func (h *LoanHandler) CreateCustomer(c *gin.Context) {
	var cmd application.CreateCustomerCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	customer, err := h.loans.CreateCustomer(c.Request.Context(), cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, customer)
}

// UpdateCustomer 更新客户联系方式
func (h *LoanHandler) UpdateCustomer(c *gin.Context) {
	var cmd application.UpdateCustomerCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	cmd.CustomerID = c.Param("id")
	customer, err := h.loans.UpdateCustomer(c.Request.Context(), cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, customer)
}

// GetCustomer 查询客户
func (h *LoanHandler) GetCustomer(c *gin.Context) {
	customer, err := h.loans.GetCustomer(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, customer)
}

// ListCustomers 分页列出客户。页码参数越界时回落到默认值
func (h *LoanHandler) ListCustomers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	pag := utils.NewPagination(page, pageSize, 0)

	customers, total, err := h.loans.ListCustomers(c.Request.Context(), pag.Limit(), pag.Offset())
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{
		"items":      customers,
		"pagination": utils.NewPagination(pag.Page, pag.PageSize, total),
	})
}

// CreateLoan 创建贷款申请
func (h *LoanHandler) CreateLoan(c *gin.Context) {
	var cmd application.CreateLoanCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	loan, err := h.loans.CreateLoan(c.Request.Context(), cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.LoansCreatedTotal.Inc()
	}
	response.Created(c, loan)
}

// GetLoan 查询贷款
func (h *LoanHandler) GetLoan(c *gin.Context) {
	loan, err := h.loans.GetLoan(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, loan)
}

// ListLoans 按条件列出贷款
func (h *LoanHandler) ListLoans(c *gin.Context) {
	filter := domain.LoanFilter{
		Status:     domain.LoanStatus(c.Query("status")),
		CustomerID: c.Query("customer_id"),
	}
	loans, err := h.loans.ListLoans(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, loans)
}

type transitionRequest struct {
	Status     domain.LoanStatus `json:"status" binding:"required"`
	StartDate  *time.Time        `json:"start_date"`
	ApprovedBy string            `json:"approved_by"`
	Reason     string            `json:"reason"`
}

// TransitionStatus 贷款状态流转
func (h *LoanHandler) TransitionStatus(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	loan, err := h.loans.TransitionStatus(c.Request.Context(), application.TransitionCommand{
		LoanID:     c.Param("id"),
		Target:     req.Status,
		StartDate:  req.StartDate,
		ApprovedBy: req.ApprovedBy,
		Reason:     req.Reason,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	// 重新审批会重建计划表, 旧缓存必须失效
	if req.Status.RequiresSchedule() {
		h.schedule.Invalidate(c.Request.Context(), loan.ID)
		if h.metrics != nil {
			h.metrics.LoansApprovedTotal.Inc()
		}
	}
	response.Success(c, loan)
}

// GetAmortization 查询还款计划
func (h *LoanHandler) GetAmortization(c *gin.Context) {
	entries, err := h.schedule.Schedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, entries)
}

// PreviewAmortization 还款计划试算, 不落库
func (h *LoanHandler) PreviewAmortization(c *gin.Context) {
	var cmd application.CreateLoanCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	entries, err := h.schedule.Preview(c.Request.Context(), cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, entries)
}

// ApplyPayment 还款入账
func (h *LoanHandler) ApplyPayment(c *gin.Context) {
	var cmd application.ApplyPaymentCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if cmd.LoanID == "" {
		response.ErrorWithStatus(c, http.StatusBadRequest, "loan_id is required", "")
		return
	}

	result, err := h.payments.ApplyPayment(c.Request.Context(), cmd)
	if err != nil {
		writeError(c, err)
		return
	}

	h.schedule.Invalidate(c.Request.Context(), result.Loan.ID)
	if h.metrics != nil {
		h.metrics.PaymentsTotal.Inc()
		h.metrics.PaymentAmountTotal.Add(result.Payment.Amount.InexactFloat64())
		if result.LoanClosed {
			h.metrics.LoansClosedTotal.Inc()
		}
	}
	response.Created(c, result)
}

// ListPayments 查询还款流水
func (h *LoanHandler) ListPayments(c *gin.Context) {
	loanID := c.Query("loan_id")
	if loanID == "" {
		response.ErrorWithStatus(c, http.StatusBadRequest, "loan_id is required", "")
		return
	}
	payments, err := h.payments.PaymentsByLoan(c.Request.Context(), loanID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, payments)
}

// AddCollateral 登记抵押物
func (h *LoanHandler) AddCollateral(c *gin.Context) {
	var cmd application.AddCollateralCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	cmd.LoanID = c.Param("id")

	col, err := h.loans.AddCollateral(c.Request.Context(), cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, col)
}

// ListCollateral 列出抵押物
func (h *LoanHandler) ListCollateral(c *gin.Context) {
	items, err := h.loans.ListCollateral(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, items)
}

// AddDocument 登记贷款资料
func (h *LoanHandler) AddDocument(c *gin.Context) {
	var cmd application.AddDocumentCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	cmd.LoanID = c.Param("id")

	doc, err := h.loans.AddDocument(c.Request.Context(), cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, doc)
}

// ListDocuments 列出贷款资料
func (h *LoanHandler) ListDocuments(c *gin.Context) {
	docs, err := h.loans.ListDocuments(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, docs)
}

type verifyDocumentRequest struct {
	VerifiedBy string `json:"verified_by" binding:"required"`
}

// VerifyDocument 标记资料已核验
func (h *LoanHandler) VerifyDocument(c *gin.Context) {
	var req verifyDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	doc, err := h.loans.VerifyDocument(c.Request.Context(), c.Param("id"), req.VerifiedBy)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, doc)
}
