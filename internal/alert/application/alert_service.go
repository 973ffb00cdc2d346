package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/microfinance/internal/alert/domain"
	"github.com/wyfcoding/microfinance/pkg/metrics"
	"github.com/wyfcoding/microfinance/pkg/utils"
)

// LoanEvent 贷款服务发布的事件。字段与发布方的 JSON 契约一致,
// 告警服务只读取自己关心的部分。
type LoanEvent struct {
	EventID        string    `json:"event_id"`
	Type           string    `json:"type"`
	LoanID         string    `json:"loan_id"`
	LoanNumber     string    `json:"loan_number"`
	RecipientEmail string    `json:"recipient_email"`
	RecipientName  string    `json:"recipient_name"`
	OccurredAt     time.Time `json:"occurred_at"`

	Principal      decimal.Decimal `json:"principal"`
	TermMonths     int             `json:"term_months"`
	MonthlyPayment decimal.Decimal `json:"monthly_payment"`
	FirstDueDate   *time.Time      `json:"first_due_date"`

	Reason string `json:"reason"`

	ReceiptNumber string          `json:"receipt_number"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentDate   *time.Time      `json:"payment_date"`
	NewBalance    decimal.Decimal `json:"new_balance"`
}

const dateLayout = "2006-01-02"

// AlertService 告警应用服务。事件与定时扫描两条入口共用投递与留痕逻辑。
type AlertService struct {
	sender   domain.Sender
	logs     domain.AlertLogRepository
	schedule domain.ScheduleReader
	metrics  *metrics.Metrics
	logger   *slog.Logger

	upcomingDays int
}

func NewAlertService(
	sender domain.Sender,
	logs domain.AlertLogRepository,
	schedule domain.ScheduleReader,
	m *metrics.Metrics,
	logger *slog.Logger,
	upcomingDays int,
) *AlertService {
	if upcomingDays <= 0 {
		upcomingDays = 3
	}
	return &AlertService{
		sender:       sender,
		logs:         logs,
		schedule:     schedule,
		metrics:      m,
		logger:       logger,
		upcomingDays: upcomingDays,
	}
}

// HandleEvent 处理一条贷款事件。投递失败记入日志后吞掉,
// 消费位点照常推进, 不因单封邮件失败而阻塞分区。
func (s *AlertService) HandleEvent(ctx context.Context, event LoanEvent) error {
	var (
		alertType domain.AlertType
		subject   string
		body      string
	)

	switch event.Type {
	case "loan.approved":
		alertType = domain.AlertTypeLoanApproved
		subject = fmt.Sprintf("Loan %s approved", event.LoanNumber)
		firstDue := ""
		if event.FirstDueDate != nil {
			firstDue = event.FirstDueDate.Format(dateLayout)
		}
		body = fmt.Sprintf(
			"Dear %s,\n\nYour loan %s has been approved.\n\nPrincipal: %s\nTerm: %d months\nMonthly payment: %s\nFirst payment due: %s\n\nThank you.",
			event.RecipientName, event.LoanNumber,
			event.Principal.StringFixed(2), event.TermMonths,
			event.MonthlyPayment.StringFixed(2), firstDue)
	case "loan.rejected":
		alertType = domain.AlertTypeLoanRejected
		subject = fmt.Sprintf("Loan application %s", event.LoanNumber)
		body = fmt.Sprintf(
			"Dear %s,\n\nWe regret to inform you that your loan application %s was not approved.\n\nReason: %s\n\nThank you.",
			event.RecipientName, event.LoanNumber, event.Reason)
	case "payment.received":
		alertType = domain.AlertTypePaymentReceipt
		subject = fmt.Sprintf("Payment receipt %s", event.ReceiptNumber)
		paidOn := ""
		if event.PaymentDate != nil {
			paidOn = event.PaymentDate.Format(dateLayout)
		}
		body = fmt.Sprintf(
			"Dear %s,\n\nWe received your payment of %s on %s for loan %s.\n\nReceipt: %s\nOutstanding balance: %s\n\nThank you.",
			event.RecipientName, event.Amount.StringFixed(2), paidOn,
			event.LoanNumber, event.ReceiptNumber, event.NewBalance.StringFixed(2))
	default:
		s.logger.WarnContext(ctx, "unknown loan event type, skipping",
			"event_id", event.EventID, "type", event.Type)
		return nil
	}

	s.deliver(ctx, alertType, event.LoanID, event.LoanNumber, event.RecipientEmail, subject, body)
	return nil
}

// RunScheduledScan 到期扫描。对 ACTIVE 贷款的未还计划行发出
// 即将到期与逾期提醒, 同一贷款同一类型一天至多一封。
func (s *AlertService) RunScheduledScan(ctx context.Context) error {
	today := time.Now()

	upcoming, err := s.schedule.DueWithin(ctx, s.upcomingDays)
	if err != nil {
		return fmt.Errorf("scan upcoming installments: %w", err)
	}
	for _, due := range upcoming {
		s.remind(ctx, domain.AlertTypePaymentDue, due, today)
	}

	overdue, err := s.schedule.Overdue(ctx)
	if err != nil {
		return fmt.Errorf("scan overdue installments: %w", err)
	}
	for _, due := range overdue {
		s.remind(ctx, domain.AlertTypePaymentOverdue, due, today)
	}

	s.logger.InfoContext(ctx, "reminder scan finished",
		"upcoming", len(upcoming), "overdue", len(overdue))
	return nil
}

func (s *AlertService) remind(ctx context.Context, alertType domain.AlertType, due *domain.DueInstallment, today time.Time) {
	sent, err := s.logs.SentToday(ctx, due.LoanID, alertType, today)
	if err != nil {
		s.logger.WarnContext(ctx, "reminder dedupe check failed",
			"loan_id", due.LoanID, "type", string(alertType), "error", err)
		return
	}
	if sent {
		return
	}

	var subject, body string
	if alertType == domain.AlertTypePaymentDue {
		subject = fmt.Sprintf("Payment reminder for loan %s", due.LoanNumber)
		body = fmt.Sprintf(
			"Dear %s,\n\nInstallment %d of loan %s (%s) is due on %s.\n\nPlease make your payment on time.\n\nThank you.",
			due.CustomerName, due.InstallmentNo, due.LoanNumber,
			due.TotalDue.StringFixed(2), due.DueDate.Format(dateLayout))
	} else {
		subject = fmt.Sprintf("Overdue payment for loan %s", due.LoanNumber)
		body = fmt.Sprintf(
			"Dear %s,\n\nInstallment %d of loan %s (%s) was due on %s and is now overdue.\n\nPlease settle the amount as soon as possible.\n\nThank you.",
			due.CustomerName, due.InstallmentNo, due.LoanNumber,
			due.TotalDue.StringFixed(2), due.DueDate.Format(dateLayout))
	}

	s.deliver(ctx, alertType, due.LoanID, due.LoanNumber, due.CustomerEmail, subject, body)
}

// deliver 发送并留痕。日志写入失败只记 log, 不影响其余投递。
func (s *AlertService) deliver(ctx context.Context, alertType domain.AlertType, loanID, loanNumber, recipient, subject, body string) {
	entry := &domain.AlertLog{
		ID:         utils.GenIDString(),
		Type:       alertType,
		LoanID:     loanID,
		LoanNumber: loanNumber,
		Recipient:  recipient,
		Subject:    subject,
		Status:     domain.AlertStatusSent,
		SentAt:     time.Now(),
	}

	if err := s.sender.Send(ctx, recipient, subject, body); err != nil {
		entry.Status = domain.AlertStatusFailed
		entry.ErrorMessage = err.Error()
		s.logger.ErrorContext(ctx, "alert delivery failed",
			"loan_id", loanID, "type", string(alertType), "recipient", recipient, "error", err)
	}

	if s.metrics != nil {
		s.metrics.AlertsSentTotal.WithLabelValues(string(alertType), string(entry.Status)).Inc()
	}
	if err := s.logs.Create(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "alert log write failed",
			"loan_id", loanID, "type", string(alertType), "error", err)
	}
}

// ListLogs 分页列出投递日志
func (s *AlertService) ListLogs(ctx context.Context, limit, offset int) ([]*domain.AlertLog, int64, error) {
	return s.logs.List(ctx, limit, offset)
}
