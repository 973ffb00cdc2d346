package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/microfinance/internal/loan/domain"
	"github.com/wyfcoding/microfinance/pkg/utils"
)

// 允许的超缴容差。现金柜面凑整多收一个货币单位以内视为正常结清。
var overpayTolerance = decimal.NewFromInt(1)

// ApplyPaymentCommand 还款入账命令
type ApplyPaymentCommand struct {
	LoanID          string               `json:"loan_id" binding:"required"`
	Amount          decimal.Decimal      `json:"amount" binding:"required"`
	Method          domain.PaymentMethod `json:"payment_method" binding:"required"`
	PaymentDate     *time.Time           `json:"payment_date"`
	ReferenceNumber string               `json:"reference_number"`
	Notes           string               `json:"notes"`
}

// PaymentResult 还款入账结果
type PaymentResult struct {
	Payment    *domain.Payment `json:"payment"`
	Loan       *domain.Loan    `json:"loan"`
	LoanClosed bool            `json:"loan_closed"`
}

// PaymentService 还款引擎。一次入账在单个事务内完成:
// 锁贷款行、拆分本息、勾销至多一期计划、扣减余额、落还款记录。
type PaymentService struct {
	customers domain.CustomerRepository
	loans     domain.LoanRepository
	notifier  domain.Notifier
	logger    *slog.Logger
}

func NewPaymentService(customers domain.CustomerRepository, loans domain.LoanRepository, notifier domain.Notifier, logger *slog.Logger) *PaymentService {
	return &PaymentService{
		customers: customers,
		loans:     loans,
		notifier:  notifier,
		logger:    logger,
	}
}

// ApplyPayment 还款入账。
// 仅 ACTIVE 状态可入账; 金额超过未偿余额加容差时整笔拒绝, 不做部分入账。
// 余额清零时贷款在同一事务内自动转为 CLOSED。
func (s *PaymentService) ApplyPayment(ctx context.Context, cmd ApplyPaymentCommand) (*PaymentResult, error) {
	if !cmd.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidPayment)
	}
	if !cmd.Method.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidPaymentMethod, cmd.Method)
	}

	paymentDate := time.Now()
	if cmd.PaymentDate != nil {
		paymentDate = *cmd.PaymentDate
	}

	var result PaymentResult
	err := s.loans.InTx(ctx, func(repo domain.LoanRepository) error {
		loan, err := repo.FindByIDForUpdate(ctx, cmd.LoanID)
		if err != nil {
			return err
		}
		if loan.Status != domain.LoanStatusActive {
			return domain.ErrLoanNotActive
		}
		if cmd.Amount.GreaterThan(loan.OutstandingBalance.Add(overpayTolerance)) {
			return fmt.Errorf("%w: outstanding balance is %s",
				domain.ErrAmountExceedsBalance, loan.OutstandingBalance)
		}

		next, err := repo.NextUnpaidInstallment(ctx, loan.ID)
		if err != nil {
			return fmt.Errorf("next unpaid installment: %w", err)
		}

		principal, interest := domain.SplitPayment(cmd.Amount, next)

		seq, err := repo.NextSequence(ctx, domain.SequenceReceiptNumber)
		if err != nil {
			return fmt.Errorf("allocate receipt number: %w", err)
		}

		payment := &domain.Payment{
			ID:               utils.GenIDString(),
			LoanID:           loan.ID,
			ReceiptNumber:    fmt.Sprintf("RCP-%d-%04d", paymentDate.Year(), seq),
			Amount:           cmd.Amount,
			PrincipalPortion: principal,
			InterestPortion:  interest,
			PaymentDate:      paymentDate,
			Method:           cmd.Method,
			ReferenceNumber:  cmd.ReferenceNumber,
			Notes:            cmd.Notes,
			CreatedAt:        time.Now(),
		}
		if err := repo.CreatePayment(ctx, payment); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}

		// 无论金额覆盖几期, 每笔还款只勾销最近一期
		if next != nil {
			if err := repo.MarkInstallmentPaid(ctx, next.ID, paymentDate); err != nil {
				return fmt.Errorf("mark installment paid: %w", err)
			}
		}

		loan.ApplyPrincipal(principal)
		if err := repo.Update(ctx, loan); err != nil {
			return err
		}

		result.Payment = payment
		result.Loan = loan
		result.LoanClosed = loan.Status == domain.LoanStatusClosed
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "payment applied",
		"loan_id", result.Loan.ID, "receipt", result.Payment.ReceiptNumber,
		"amount", result.Payment.Amount.String(),
		"principal", result.Payment.PrincipalPortion.String(),
		"interest", result.Payment.InterestPortion.String(),
		"balance", result.Loan.OutstandingBalance.String(),
		"closed", result.LoanClosed)

	s.notifyPayment(ctx, result)
	return &result, nil
}

// notifyPayment 提交后发送收据通知。失败只记日志。
func (s *PaymentService) notifyPayment(ctx context.Context, result PaymentResult) {
	if s.notifier == nil {
		return
	}
	customer, err := s.customers.FindByID(ctx, result.Loan.CustomerID)
	if err != nil {
		s.logger.WarnContext(ctx, "skip payment notification, customer lookup failed",
			"loan_id", result.Loan.ID, "error", err)
		return
	}

	paymentDate := result.Payment.PaymentDate
	event := domain.LoanEvent{
		EventID:        utils.GenIDString(),
		Type:           domain.EventPaymentReceived,
		LoanID:         result.Loan.ID,
		LoanNumber:     result.Loan.LoanNumber,
		RecipientEmail: customer.Email,
		RecipientName:  customer.FullName(),
		OccurredAt:     time.Now(),
		ReceiptNumber:  result.Payment.ReceiptNumber,
		Amount:         result.Payment.Amount,
		PaymentDate:    &paymentDate,
		NewBalance:     result.Loan.OutstandingBalance,
	}

	go func() {
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.notifier.Notify(bg, event); err != nil {
			s.logger.Warn("payment notification dispatch failed",
				"loan_id", result.Loan.ID, "receipt", result.Payment.ReceiptNumber, "error", err)
		}
	}()
}

// PaymentsByLoan 查询贷款的还款流水
func (s *PaymentService) PaymentsByLoan(ctx context.Context, loanID string) ([]*domain.Payment, error) {
	if _, err := s.loans.FindByID(ctx, loanID); err != nil {
		return nil, err
	}
	return s.loans.PaymentsByLoan(ctx, loanID)
}
