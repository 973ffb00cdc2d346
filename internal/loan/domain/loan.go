// Package domain 贷款服务的领域模型：客户、贷款、还款计划、还款记录
package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidPrincipal     = errors.New("principal must be positive")
	ErrInvalidRate          = errors.New("interest rate must not be negative")
	ErrInvalidTerm          = errors.New("term months must be positive")
	ErrInvalidPurpose       = errors.New("purpose is required")
	ErrCustomerNotFound     = errors.New("customer not found")
	ErrLoanNotFound         = errors.New("loan not found")
	ErrDocumentNotFound     = errors.New("document not found")
	ErrInvalidTransition    = errors.New("status transition not allowed")
	ErrLoanNotActive        = errors.New("loan is not active")
	ErrAmountExceedsBalance = errors.New("amount exceeds outstanding balance")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrInvalidPayment       = errors.New("invalid payment")

	ErrInvalidCollateralType = errors.New("invalid collateral type")
	ErrInvalidDocumentType   = errors.New("invalid document type")
)

// LoanStatus 贷款状态
type LoanStatus string

const (
	LoanStatusPending     LoanStatus = "PENDING"
	LoanStatusUnderReview LoanStatus = "UNDER_REVIEW"
	LoanStatusApproved    LoanStatus = "APPROVED"
	LoanStatusActive      LoanStatus = "ACTIVE"
	LoanStatusClosed      LoanStatus = "CLOSED"
	LoanStatusRejected    LoanStatus = "REJECTED"
	LoanStatusDefaulted   LoanStatus = "DEFAULTED"
)

// allowedTransitions 状态机：当前状态允许进入的目标状态。
// CLOSED 除手工流转外，也会在还款引擎将余额清零时自动进入。
var allowedTransitions = map[LoanStatus][]LoanStatus{
	LoanStatusPending:     {LoanStatusUnderReview, LoanStatusRejected},
	LoanStatusUnderReview: {LoanStatusApproved, LoanStatusRejected},
	LoanStatusApproved:    {LoanStatusActive},
	LoanStatusActive:      {LoanStatusClosed, LoanStatusDefaulted},
}

// CanTransition 判断从当前状态是否允许流转到 target
func (s LoanStatus) CanTransition(target LoanStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// RequiresSchedule 进入该状态时是否需要生成还款计划
func (s LoanStatus) RequiresSchedule() bool {
	return s == LoanStatusApproved || s == LoanStatusActive
}

// Loan 贷款聚合根
type Loan struct {
	ID              string          `json:"id"`
	LoanNumber      string          `json:"loan_number"`
	CustomerID      string          `json:"customer_id"`
	PrincipalAmount decimal.Decimal `json:"principal_amount"`
	InterestRate    decimal.Decimal `json:"interest_rate"`
	TermMonths      int             `json:"term_months"`
	Purpose         string          `json:"purpose"`
	Notes           string          `json:"notes,omitempty"`
	Status          LoanStatus      `json:"status"`
	MonthlyPayment  decimal.Decimal `json:"monthly_payment"`
	TotalInterest   decimal.Decimal `json:"total_interest"`
	// OutstandingBalance 未偿本金，仅由还款引擎的本金部分递减
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	DisbursementDate   *time.Time      `json:"disbursement_date,omitempty"`
	MaturityDate       *time.Time      `json:"maturity_date,omitempty"`
	ApprovedBy         string          `json:"approved_by,omitempty"`
	ApprovedAt         *time.Time      `json:"approved_at,omitempty"`
	RejectionReason    string          `json:"rejection_reason,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// NewLoan 创建贷款申请，初始状态 PENDING，未偿余额等于本金
func NewLoan(id, loanNumber, customerID string, principal, rate decimal.Decimal, termMonths int, purpose, notes string) (*Loan, error) {
	monthly, err := MonthlyPayment(principal, rate, termMonths)
	if err != nil {
		return nil, err
	}
	totalInterest, err := TotalInterest(principal, rate, termMonths)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &Loan{
		ID:                 id,
		LoanNumber:         loanNumber,
		CustomerID:         customerID,
		PrincipalAmount:    principal,
		InterestRate:       rate,
		TermMonths:         termMonths,
		Purpose:            purpose,
		Notes:              notes,
		Status:             LoanStatusPending,
		MonthlyPayment:     monthly,
		TotalInterest:      totalInterest,
		OutstandingBalance: principal,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// Approve 进入 APPROVED/ACTIVE 时设置放款与到期信息
func (l *Loan) Approve(target LoanStatus, startDate time.Time, approvedBy string) error {
	if !target.RequiresSchedule() {
		return ErrInvalidTransition
	}
	if !l.Status.CanTransition(target) {
		return ErrInvalidTransition
	}
	if approvedBy == "" {
		approvedBy = "System"
	}
	now := time.Now()
	maturity := AddMonths(startDate, l.TermMonths)

	l.Status = target
	l.DisbursementDate = &startDate
	l.MaturityDate = &maturity
	l.ApprovedBy = approvedBy
	l.ApprovedAt = &now
	l.UpdatedAt = now
	return nil
}

// Reject 拒绝贷款申请
func (l *Loan) Reject(reason string) error {
	if !l.Status.CanTransition(LoanStatusRejected) {
		return ErrInvalidTransition
	}
	if reason == "" {
		reason = "No reason provided"
	}
	l.Status = LoanStatusRejected
	l.RejectionReason = reason
	l.UpdatedAt = time.Now()
	return nil
}

// SetStatus 无附加副作用的状态变更
func (l *Loan) SetStatus(target LoanStatus) error {
	if !l.Status.CanTransition(target) {
		return ErrInvalidTransition
	}
	l.Status = target
	l.UpdatedAt = time.Now()
	return nil
}

// ApplyPrincipal 扣减未偿余额，余额清零时自动结清
func (l *Loan) ApplyPrincipal(principalPortion decimal.Decimal) {
	newBalance := l.OutstandingBalance.Sub(principalPortion).Round(2)
	if newBalance.IsNegative() {
		newBalance = decimal.Zero
	}
	l.OutstandingBalance = newBalance
	if newBalance.LessThanOrEqual(decimal.Zero) {
		l.Status = LoanStatusClosed
	}
	l.UpdatedAt = time.Now()
}

// Customer 客户档案。核心流程只关心身份与联系方式。
type Customer struct {
	ID               string          `json:"id"`
	FirstName        string          `json:"first_name"`
	LastName         string          `json:"last_name"`
	Email            string          `json:"email"`
	Phone            string          `json:"phone"`
	NationalID       string          `json:"national_id"`
	Address          string          `json:"address,omitempty"`
	EmploymentStatus string          `json:"employment_status,omitempty"`
	MonthlyIncome    decimal.Decimal `json:"monthly_income"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// FullName 客户全名
func (c *Customer) FullName() string {
	return c.FirstName + " " + c.LastName
}
