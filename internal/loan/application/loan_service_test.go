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
)

type loanServiceFixture struct {
	customers *memoryCustomerRepo
	loans     *memoryLoanRepo
	notifier  *recordingNotifier
	service   *LoanService
}

func newLoanServiceFixture(t *testing.T) *loanServiceFixture {
	t.Helper()
	f := &loanServiceFixture{
		customers: newMemoryCustomerRepo(),
		loans:     newMemoryLoanRepo(),
		notifier:  &recordingNotifier{},
	}
	f.service = NewLoanService(f.customers, f.loans, newMemoryCollateralRepo(), newMemoryDocumentRepo(), f.notifier, testLogger())
	return f
}

func (f *loanServiceFixture) createCustomer(t *testing.T) *domain.Customer {
	t.Helper()
	customer, err := f.service.CreateCustomer(context.Background(), CreateCustomerCommand{
		FirstName:  "Asha",
		LastName:   "Mushi",
		Email:      "asha@example.com",
		Phone:      "+255700000001",
		NationalID: "19900101-00001",
	})
	require.NoError(t, err)
	return customer
}

func (f *loanServiceFixture) createLoan(t *testing.T, customerID string) *domain.Loan {
	t.Helper()
	loan, err := f.service.CreateLoan(context.Background(), CreateLoanCommand{
		CustomerID: customerID,
		Principal:  decimal.NewFromInt(1200000),
		AnnualRate: decimal.NewFromInt(12),
		TermMonths: 6,
		Purpose:    "working capital",
	})
	require.NoError(t, err)
	return loan
}

// waitForEvents 等待异步通知落地
func waitForEvents(t *testing.T, n *recordingNotifier, count int) []domain.LoanEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		events := n.Events()
		if len(events) >= count {
			return events
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d events, got %d", count, len(n.Events()))
	return nil
}

func TestCreateLoanAssignsSequentialNumbers(t *testing.T) {
	f := newLoanServiceFixture(t)
	customer := f.createCustomer(t)

	year := time.Now().Year()
	first := f.createLoan(t, customer.ID)
	second := f.createLoan(t, customer.ID)

	assert.Equal(t, fmt.Sprintf("LN-%d-0001", year), first.LoanNumber)
	assert.Equal(t, fmt.Sprintf("LN-%d-0002", year), second.LoanNumber)
	assert.Equal(t, domain.LoanStatusPending, first.Status)
	assert.True(t, first.OutstandingBalance.Equal(first.PrincipalAmount))
}

func TestUpdateCustomerContactDetails(t *testing.T) {
	f := newLoanServiceFixture(t)
	customer := f.createCustomer(t)

	updated, err := f.service.UpdateCustomer(context.Background(), UpdateCustomerCommand{
		CustomerID:       customer.ID,
		Email:            "asha.mushi@example.com",
		Phone:            "+255700000099",
		Address:          "Plot 12, Moshi",
		EmploymentStatus: "SELF_EMPLOYED",
		MonthlyIncome:    decimal.NewFromInt(850000),
	})
	require.NoError(t, err)
	assert.Equal(t, "asha.mushi@example.com", updated.Email)
	assert.Equal(t, "+255700000099", updated.Phone)

	stored, err := f.service.GetCustomer(context.Background(), customer.ID)
	require.NoError(t, err)
	assert.Equal(t, "Plot 12, Moshi", stored.Address)
	assert.Equal(t, customer.NationalID, stored.NationalID)

	_, err = f.service.UpdateCustomer(context.Background(), UpdateCustomerCommand{
		CustomerID: "missing",
		Email:      "x@example.com",
		Phone:      "+255700000000",
	})
	assert.ErrorIs(t, err, domain.ErrCustomerNotFound)
}

func TestCreateLoanUnknownCustomer(t *testing.T) {
	f := newLoanServiceFixture(t)
	_, err := f.service.CreateLoan(context.Background(), CreateLoanCommand{
		CustomerID: "missing",
		Principal:  decimal.NewFromInt(100000),
		AnnualRate: decimal.NewFromInt(10),
		TermMonths: 12,
		Purpose:    "school fees",
	})
	assert.ErrorIs(t, err, domain.ErrCustomerNotFound)
}

func TestCreateLoanRejectsInvalidTerms(t *testing.T) {
	f := newLoanServiceFixture(t)
	customer := f.createCustomer(t)

	valid := CreateLoanCommand{
		CustomerID: customer.ID,
		Principal:  decimal.NewFromInt(100000),
		AnnualRate: decimal.NewFromInt(10),
		TermMonths: 12,
		Purpose:    "school fees",
	}

	cases := []struct {
		name    string
		mutate  func(*CreateLoanCommand)
		wantErr error
	}{
		{"negative principal", func(c *CreateLoanCommand) { c.Principal = decimal.NewFromInt(-5) }, domain.ErrInvalidPrincipal},
		{"principal below minimum", func(c *CreateLoanCommand) { c.Principal = decimal.NewFromInt(50) }, domain.ErrInvalidPrincipal},
		{"rate below floor", func(c *CreateLoanCommand) { c.AnnualRate = decimal.NewFromFloat(0.05) }, domain.ErrInvalidRate},
		{"rate above ceiling", func(c *CreateLoanCommand) { c.AnnualRate = decimal.NewFromInt(150) }, domain.ErrInvalidRate},
		{"zero term", func(c *CreateLoanCommand) { c.TermMonths = 0 }, domain.ErrInvalidTerm},
		{"term above ceiling", func(c *CreateLoanCommand) { c.TermMonths = 600 }, domain.ErrInvalidTerm},
		{"blank purpose", func(c *CreateLoanCommand) { c.Purpose = "  " }, domain.ErrInvalidPurpose},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := valid
			tc.mutate(&cmd)
			_, err := f.service.CreateLoan(context.Background(), cmd)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	// 边界值本身可进件
	_, err := f.service.CreateLoan(context.Background(), valid)
	assert.NoError(t, err)
}

func TestApprovalGeneratesSchedule(t *testing.T) {
	f := newLoanServiceFixture(t)
	customer := f.createCustomer(t)
	loan := f.createLoan(t, customer.ID)

	_, err := f.service.TransitionStatus(context.Background(), TransitionCommand{
		LoanID: loan.ID, Target: domain.LoanStatusUnderReview,
	})
	require.NoError(t, err)

	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	approved, err := f.service.TransitionStatus(context.Background(), TransitionCommand{
		LoanID:     loan.ID,
		Target:     domain.LoanStatusApproved,
		StartDate:  &start,
		ApprovedBy: "jane.officer",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusApproved, approved.Status)

	schedule, err := f.loans.ScheduleByLoan(context.Background(), loan.ID)
	require.NoError(t, err)
	require.Len(t, schedule, 6)
	assert.Equal(t, 1, schedule[0].InstallmentNo)
	assert.True(t, schedule[5].RemainingBalance.IsZero())

	events := waitForEvents(t, f.notifier, 1)
	assert.Equal(t, domain.EventLoanApproved, events[0].Type)
	assert.Equal(t, "asha@example.com", events[0].RecipientEmail)
	require.NotNil(t, events[0].FirstDueDate)
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), *events[0].FirstDueDate)
}

func TestActivationNotifiesLikeApproval(t *testing.T) {
	f := newLoanServiceFixture(t)
	customer := f.createCustomer(t)
	loan := f.createLoan(t, customer.ID)

	_, err := f.service.TransitionStatus(context.Background(), TransitionCommand{
		LoanID: loan.ID, Target: domain.LoanStatusUnderReview,
	})
	require.NoError(t, err)

	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	_, err = f.service.TransitionStatus(context.Background(), TransitionCommand{
		LoanID: loan.ID, Target: domain.LoanStatusApproved, StartDate: &start,
	})
	require.NoError(t, err)

	activation := time.Date(2026, 9, 20, 0, 0, 0, 0, time.UTC)
	_, err = f.service.TransitionStatus(context.Background(), TransitionCommand{
		LoanID: loan.ID, Target: domain.LoanStatusActive, StartDate: &activation,
	})
	require.NoError(t, err)

	// 激活与批准走同一通知路径, 通知异步送达故不依赖顺序
	events := waitForEvents(t, f.notifier, 2)
	var activationSeen bool
	for _, ev := range events {
		assert.Equal(t, domain.EventLoanApproved, ev.Type)
		if ev.FirstDueDate != nil && ev.FirstDueDate.Equal(time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)) {
			activationSeen = true
		}
	}
	assert.True(t, activationSeen, "activation should notify with its own first due date")
}

func TestReApprovalReplacesSchedule(t *testing.T) {
	f := newLoanServiceFixture(t)
	customer := f.createCustomer(t)
	loan := f.createLoan(t, customer.ID)

	_, err := f.service.TransitionStatus(context.Background(), TransitionCommand{
		LoanID: loan.ID, Target: domain.LoanStatusUnderReview,
	})
	require.NoError(t, err)

	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	_, err = f.service.TransitionStatus(context.Background(), TransitionCommand{
		LoanID: loan.ID, Target: domain.LoanStatusApproved, StartDate: &start,
	})
	require.NoError(t, err)

	before, err := f.loans.ScheduleByLoan(context.Background(), loan.ID)
	require.NoError(t, err)

	// 激活时整表重建, 旧行不保留
	activation := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	_, err = f.service.TransitionStatus(context.Background(), TransitionCommand{
		LoanID: loan.ID, Target: domain.LoanStatusActive, StartDate: &activation,
	})
	require.NoError(t, err)

	after, err := f.loans.ScheduleByLoan(context.Background(), loan.ID)
	require.NoError(t, err)
	require.Len(t, after, 6)
	assert.NotEqual(t, before[0].ID, after[0].ID)
	assert.Equal(t, time.Date(2026, 11, 15, 0, 0, 0, 0, time.UTC), after[0].DueDate)
}

func TestInvalidTransitionRejected(t *testing.T) {
	f := newLoanServiceFixture(t)
	customer := f.createCustomer(t)
	loan := f.createLoan(t, customer.ID)

	_, err := f.service.TransitionStatus(context.Background(), TransitionCommand{
		LoanID: loan.ID, Target: domain.LoanStatusActive,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	// 失败的流转不留痕
	got, err := f.loans.FindByID(context.Background(), loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusPending, got.Status)
	schedule, err := f.loans.ScheduleByLoan(context.Background(), loan.ID)
	require.NoError(t, err)
	assert.Empty(t, schedule)
}

func TestRejectionNotifiesWithReason(t *testing.T) {
	f := newLoanServiceFixture(t)
	customer := f.createCustomer(t)
	loan := f.createLoan(t, customer.ID)

	rejected, err := f.service.TransitionStatus(context.Background(), TransitionCommand{
		LoanID: loan.ID, Target: domain.LoanStatusRejected, Reason: "insufficient income",
	})
	require.NoError(t, err)
	assert.Equal(t, "insufficient income", rejected.RejectionReason)

	events := waitForEvents(t, f.notifier, 1)
	assert.Equal(t, domain.EventLoanRejected, events[0].Type)
	assert.Equal(t, "insufficient income", events[0].Reason)
}

func TestRejectionDefaultReason(t *testing.T) {
	f := newLoanServiceFixture(t)
	customer := f.createCustomer(t)
	loan := f.createLoan(t, customer.ID)

	rejected, err := f.service.TransitionStatus(context.Background(), TransitionCommand{
		LoanID: loan.ID, Target: domain.LoanStatusRejected,
	})
	require.NoError(t, err)
	assert.Equal(t, "No reason provided", rejected.RejectionReason)
}

func TestAddCollateralValidatesType(t *testing.T) {
	f := newLoanServiceFixture(t)
	customer := f.createCustomer(t)
	loan := f.createLoan(t, customer.ID)

	_, err := f.service.AddCollateral(context.Background(), AddCollateralCommand{
		LoanID:         loan.ID,
		Type:           domain.CollateralType("SPACESHIP"),
		Description:    "not a thing",
		EstimatedValue: decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidCollateralType)

	col, err := f.service.AddCollateral(context.Background(), AddCollateralCommand{
		LoanID:         loan.ID,
		Type:           domain.CollateralTypeVehicle,
		Description:    "2019 Toyota Hiace",
		EstimatedValue: decimal.NewFromInt(25000000),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, col.ID)

	items, err := f.service.ListCollateral(context.Background(), loan.ID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestDocumentLifecycle(t *testing.T) {
	f := newLoanServiceFixture(t)
	customer := f.createCustomer(t)
	loan := f.createLoan(t, customer.ID)

	doc, err := f.service.AddDocument(context.Background(), AddDocumentCommand{
		LoanID:   loan.ID,
		Type:     domain.DocumentTypeNationalID,
		FileName: "national-id.pdf",
	})
	require.NoError(t, err)
	assert.False(t, doc.Verified)

	verified, err := f.service.VerifyDocument(context.Background(), doc.ID, "jane.officer")
	require.NoError(t, err)
	assert.True(t, verified.Verified)
	assert.Equal(t, "jane.officer", verified.VerifiedBy)
	require.NotNil(t, verified.VerifiedAt)
}
