package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// EventType 贷款领域事件类型
type EventType string

const (
	EventLoanApproved    EventType = "loan.approved"
	EventLoanRejected    EventType = "loan.rejected"
	EventPaymentReceived EventType = "payment.received"
	EventPaymentDue      EventType = "payment.due"
	EventPaymentOverdue  EventType = "payment.overdue"
)

// LoanEvent 贷款领域事件。只携带结构化事实，
// 邮件正文的拼装完全由告警服务负责。
type LoanEvent struct {
	EventID        string    `json:"event_id"`
	Type           EventType `json:"type"`
	LoanID         string    `json:"loan_id"`
	LoanNumber     string    `json:"loan_number"`
	RecipientEmail string    `json:"recipient_email"`
	RecipientName  string    `json:"recipient_name"`
	OccurredAt     time.Time `json:"occurred_at"`

	// loan.approved
	Principal      decimal.Decimal `json:"principal,omitempty"`
	TermMonths     int             `json:"term_months,omitempty"`
	MonthlyPayment decimal.Decimal `json:"monthly_payment,omitempty"`
	FirstDueDate   *time.Time      `json:"first_due_date,omitempty"`

	// loan.rejected
	Reason string `json:"reason,omitempty"`

	// payment.received
	ReceiptNumber string          `json:"receipt_number,omitempty"`
	Amount        decimal.Decimal `json:"amount,omitempty"`
	PaymentDate   *time.Time      `json:"payment_date,omitempty"`
	NewBalance    decimal.Decimal `json:"new_balance,omitempty"`

	// payment.due / payment.overdue
	TotalDue decimal.Decimal `json:"total_due,omitempty"`
	DueDate  *time.Time      `json:"due_date,omitempty"`
	Days     int             `json:"days,omitempty"`
}

// Notifier 出站通知通道。调用方在事务提交后以 fire-and-forget 方式触发，
// 发送失败由通知方记录，绝不回滚或阻塞已提交的业务状态。
type Notifier interface {
	Notify(ctx context.Context, event LoanEvent) error
}
