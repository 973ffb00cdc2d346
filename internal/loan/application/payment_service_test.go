package application

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/microfinance/internal/loan/domain"
	"github.com/wyfcoding/microfinance/pkg/utils"
)

type paymentFixture struct {
	*loanServiceFixture
	payments *PaymentService
	loan     *domain.Loan
}

// newPaymentFixture 准备一笔已激活、计划表就绪的贷款
func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	base := newLoanServiceFixture(t)
	customer := base.createCustomer(t)

	loan, err := base.service.CreateLoan(context.Background(), CreateLoanCommand{
		CustomerID: customer.ID,
		Principal:  d("1200000"),
		AnnualRate: d("12"),
		TermMonths: 6,
		Purpose:    "working capital",
	})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = base.service.TransitionStatus(ctx, TransitionCommand{
		LoanID: loan.ID, Target: domain.LoanStatusUnderReview,
	})
	require.NoError(t, err)
	_, err = base.service.TransitionStatus(ctx, TransitionCommand{
		LoanID: loan.ID, Target: domain.LoanStatusApproved,
	})
	require.NoError(t, err)
	active, err := base.service.TransitionStatus(ctx, TransitionCommand{
		LoanID: loan.ID, Target: domain.LoanStatusActive,
	})
	require.NoError(t, err)

	return &paymentFixture{
		loanServiceFixture: base,
		payments:           NewPaymentService(base.customers, base.loans, base.notifier, testLogger()),
		loan:               active,
	}
}

// newZeroRatePaymentFixture 直接落库构造一笔零利率的已激活存量贷款。
// 进件校验要求年利率不低于 0.1, 零利率账本只会以存量迁移形式出现。
func newZeroRatePaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	base := newLoanServiceFixture(t)
	customer := base.createCustomer(t)
	ctx := context.Background()

	loan, err := domain.NewLoan(utils.GenIDString(),
		fmt.Sprintf("LN-%d-9001", time.Now().Year()),
		customer.ID, d("1200000"), d("0"), 6, "working capital", "")
	require.NoError(t, err)

	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, loan.SetStatus(domain.LoanStatusUnderReview))
	require.NoError(t, loan.Approve(domain.LoanStatusApproved, start, "jane.officer"))
	require.NoError(t, loan.SetStatus(domain.LoanStatusActive))
	require.NoError(t, base.loans.Create(ctx, loan))

	entries, err := domain.GenerateSchedule(loan.PrincipalAmount, loan.InterestRate, loan.TermMonths, start)
	require.NoError(t, err)
	rows := make([]*domain.AmortizationEntry, len(entries))
	for i, e := range entries {
		rows[i] = &domain.AmortizationEntry{
			ID:               utils.GenIDString(),
			LoanID:           loan.ID,
			InstallmentNo:    e.InstallmentNo,
			DueDate:          e.DueDate,
			PrincipalDue:     e.PrincipalDue,
			InterestDue:      e.InterestDue,
			TotalDue:         e.TotalDue,
			RemainingBalance: e.RemainingBalance,
		}
	}
	require.NoError(t, base.loans.ReplaceSchedule(ctx, loan.ID, rows))

	return &paymentFixture{
		loanServiceFixture: base,
		payments:           NewPaymentService(base.customers, base.loans, base.notifier, testLogger()),
		loan:               loan,
	}
}

func (f *paymentFixture) pay(t *testing.T, amount string) *PaymentResult {
	t.Helper()
	result, err := f.payments.ApplyPayment(context.Background(), ApplyPaymentCommand{
		LoanID: f.loan.ID,
		Amount: d(amount),
		Method: domain.PaymentMethodMobileMoney,
	})
	require.NoError(t, err)
	return result
}

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestApplyPaymentSplitsAgainstNextInstallment(t *testing.T) {
	f := newPaymentFixture(t)

	next, err := f.loans.NextUnpaidInstallment(context.Background(), f.loan.ID)
	require.NoError(t, err)
	require.NotNil(t, next)

	result := f.pay(t, next.TotalDue.String())

	assert.True(t, result.Payment.InterestPortion.Equal(next.InterestDue))
	assert.True(t, result.Payment.PrincipalPortion.Equal(next.TotalDue.Sub(next.InterestDue)))
	assert.True(t, result.Payment.Amount.Equal(result.Payment.PrincipalPortion.Add(result.Payment.InterestPortion)))
	assert.Equal(t, fmt.Sprintf("RCP-%d-0001", time.Now().Year()), result.Payment.ReceiptNumber)

	expected := f.loan.OutstandingBalance.Sub(result.Payment.PrincipalPortion).Round(2)
	assert.True(t, result.Loan.OutstandingBalance.Equal(expected))

	// 正好勾销第一期
	schedule, err := f.loans.ScheduleByLoan(context.Background(), f.loan.ID)
	require.NoError(t, err)
	assert.True(t, schedule[0].IsPaid)
	require.NotNil(t, schedule[0].PaidAt)
	assert.False(t, schedule[1].IsPaid)
}

func TestApplyPaymentMarksExactlyOneInstallment(t *testing.T) {
	f := newPaymentFixture(t)

	next, err := f.loans.NextUnpaidInstallment(context.Background(), f.loan.ID)
	require.NoError(t, err)

	// 金额覆盖三期, 仍只勾销一期, 超出部分全计入本金
	amount := next.TotalDue.Mul(decimal.NewFromInt(3))
	result := f.pay(t, amount.String())

	assert.True(t, result.Payment.InterestPortion.Equal(next.InterestDue))
	assert.True(t, result.Payment.PrincipalPortion.Equal(amount.Sub(next.InterestDue)))

	schedule, err := f.loans.ScheduleByLoan(context.Background(), f.loan.ID)
	require.NoError(t, err)
	paid := 0
	for _, e := range schedule {
		if e.IsPaid {
			paid++
		}
	}
	assert.Equal(t, 1, paid)
}

func TestApplyPaymentInterestOnly(t *testing.T) {
	f := newPaymentFixture(t)

	next, err := f.loans.NextUnpaidInstallment(context.Background(), f.loan.ID)
	require.NoError(t, err)

	// 金额不足应计利息: 全部入息, 本金不动
	small := next.InterestDue.Div(decimal.NewFromInt(2)).Round(2)
	result := f.pay(t, small.String())

	assert.True(t, result.Payment.InterestPortion.Equal(small))
	assert.True(t, result.Payment.PrincipalPortion.IsZero())
	assert.True(t, result.Loan.OutstandingBalance.Equal(f.loan.OutstandingBalance))

	// 即便本金未动, 这一期也被勾销
	schedule, err := f.loans.ScheduleByLoan(context.Background(), f.loan.ID)
	require.NoError(t, err)
	assert.True(t, schedule[0].IsPaid)
}

func TestApplyPaymentExactBalanceClosesLoan(t *testing.T) {
	// 零利率贷款: 整笔金额都是本金, 付清余额即自动结清
	f := newZeroRatePaymentFixture(t)

	result := f.pay(t, f.loan.OutstandingBalance.String())

	assert.True(t, result.LoanClosed)
	assert.Equal(t, domain.LoanStatusClosed, result.Loan.Status)
	assert.True(t, result.Loan.OutstandingBalance.IsZero())
}

func TestApplyPaymentExceedsBalance(t *testing.T) {
	f := newPaymentFixture(t)

	amount := f.loan.OutstandingBalance.Add(d("1.01"))
	_, err := f.payments.ApplyPayment(context.Background(), ApplyPaymentCommand{
		LoanID: f.loan.ID,
		Amount: amount,
		Method: domain.PaymentMethodCash,
	})
	assert.ErrorIs(t, err, domain.ErrAmountExceedsBalance)
	// 错误信息携带当前未偿余额
	assert.Contains(t, err.Error(), f.loan.OutstandingBalance.String())

	// 拒绝的还款不留任何痕迹
	got, err := f.loans.FindByID(context.Background(), f.loan.ID)
	require.NoError(t, err)
	assert.True(t, got.OutstandingBalance.Equal(f.loan.OutstandingBalance))
	payments, err := f.loans.PaymentsByLoan(context.Background(), f.loan.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)
	schedule, err := f.loans.ScheduleByLoan(context.Background(), f.loan.ID)
	require.NoError(t, err)
	assert.False(t, schedule[0].IsPaid)
}

func TestApplyPaymentWithinTolerance(t *testing.T) {
	// 柜面凑整: 超缴一个货币单位以内放行, 余额收敛到 0 并结清
	f := newZeroRatePaymentFixture(t)

	amount := f.loan.OutstandingBalance.Add(d("1"))
	result := f.pay(t, amount.String())
	assert.True(t, result.Loan.OutstandingBalance.IsZero())
	assert.True(t, result.LoanClosed)
}

func TestApplyPaymentRequiresActiveLoan(t *testing.T) {
	f := newLoanServiceFixture(t)
	customer := f.createCustomer(t)
	loan := f.createLoan(t, customer.ID)
	payments := NewPaymentService(f.customers, f.loans, f.notifier, testLogger())

	_, err := payments.ApplyPayment(context.Background(), ApplyPaymentCommand{
		LoanID: loan.ID,
		Amount: d("1000"),
		Method: domain.PaymentMethodCash,
	})
	assert.ErrorIs(t, err, domain.ErrLoanNotActive)
}

func TestApplyPaymentValidation(t *testing.T) {
	f := newPaymentFixture(t)

	_, err := f.payments.ApplyPayment(context.Background(), ApplyPaymentCommand{
		LoanID: f.loan.ID,
		Amount: d("0"),
		Method: domain.PaymentMethodCash,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPayment)

	_, err = f.payments.ApplyPayment(context.Background(), ApplyPaymentCommand{
		LoanID: f.loan.ID,
		Amount: d("100"),
		Method: domain.PaymentMethod("BARTER"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPaymentMethod)

	_, err = f.payments.ApplyPayment(context.Background(), ApplyPaymentCommand{
		LoanID: "missing",
		Amount: d("100"),
		Method: domain.PaymentMethodCash,
	})
	assert.ErrorIs(t, err, domain.ErrLoanNotFound)
}

func TestApplyPaymentAfterScheduleExhausted(t *testing.T) {
	f := newPaymentFixture(t)

	// 人为勾销全部计划行, 模拟计划耗尽但余额未清的情形
	schedule, err := f.loans.ScheduleByLoan(context.Background(), f.loan.ID)
	require.NoError(t, err)
	for _, e := range schedule {
		require.NoError(t, f.loans.MarkInstallmentPaid(context.Background(), e.ID, time.Now()))
	}

	result := f.pay(t, "50000")
	assert.True(t, result.Payment.InterestPortion.IsZero())
	assert.True(t, result.Payment.PrincipalPortion.Equal(d("50000")))
}

func TestApplyPaymentSendsReceiptEvent(t *testing.T) {
	f := newPaymentFixture(t)

	next, err := f.loans.NextUnpaidInstallment(context.Background(), f.loan.ID)
	require.NoError(t, err)
	result := f.pay(t, next.TotalDue.String())

	// 激活/审批各发一条, 收据事件异步送达故按类型查找
	events := waitForEvents(t, f.notifier, 3)
	var receipt *domain.LoanEvent
	for i := range events {
		if events[i].Type == domain.EventPaymentReceived {
			receipt = &events[i]
		}
	}
	require.NotNil(t, receipt)
	assert.Equal(t, result.Payment.ReceiptNumber, receipt.ReceiptNumber)
	assert.True(t, receipt.NewBalance.Equal(result.Loan.OutstandingBalance))
}
