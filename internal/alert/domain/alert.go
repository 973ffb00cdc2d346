// Package domain 告警服务的领域模型：邮件提醒与投递日志
package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// AlertType 告警类型
type AlertType string

const (
	AlertTypeLoanApproved   AlertType = "LOAN_APPROVED"
	AlertTypeLoanRejected   AlertType = "LOAN_REJECTED"
	AlertTypePaymentReceipt AlertType = "PAYMENT_RECEIPT"
	AlertTypePaymentDue     AlertType = "PAYMENT_DUE"
	AlertTypePaymentOverdue AlertType = "PAYMENT_OVERDUE"
)

// AlertStatus 投递状态
type AlertStatus string

const (
	AlertStatusSent   AlertStatus = "SENT"
	AlertStatusFailed AlertStatus = "FAILED"
)

// AlertLog 投递日志。每次发送尝试各记一条, 成功失败都留痕。
type AlertLog struct {
	ID           string      `json:"id"`
	Type         AlertType   `json:"type"`
	LoanID       string      `json:"loan_id"`
	LoanNumber   string      `json:"loan_number"`
	Recipient    string      `json:"recipient"`
	Subject      string      `json:"subject"`
	Status       AlertStatus `json:"status"`
	ErrorMessage string      `json:"error_message,omitempty"`
	SentAt       time.Time   `json:"sent_at"`
}

// Sender 邮件出站通道
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// AlertLogRepository 投递日志仓储
type AlertLogRepository interface {
	Create(ctx context.Context, log *AlertLog) error
	List(ctx context.Context, limit, offset int) ([]*AlertLog, int64, error)
	// SentToday 当天是否已对同一贷款同一类型成功投递, 用于扫描去重
	SentToday(ctx context.Context, loanID string, alertType AlertType, day time.Time) (bool, error)
}

// DueInstallment 到期扫描命中的计划行, 带上联络所需的贷款与客户信息
type DueInstallment struct {
	LoanID        string
	LoanNumber    string
	CustomerName  string
	CustomerEmail string
	InstallmentNo int
	DueDate       time.Time
	TotalDue      decimal.Decimal
}

// ScheduleReader 跨服务只读查询。告警服务不拥有贷款数据,
// 只按到期窗口读取 ACTIVE 贷款的未还计划行。
type ScheduleReader interface {
	// DueWithin 今天起 days 天内到期的未还计划行
	DueWithin(ctx context.Context, days int) ([]*DueInstallment, error)
	// Overdue 截至今天已逾期的未还计划行
	Overdue(ctx context.Context) ([]*DueInstallment, error)
}
