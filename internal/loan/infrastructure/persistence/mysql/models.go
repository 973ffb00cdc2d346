// Package mysql 贷款服务的 MySQL 持久化实现
package mysql

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/microfinance/internal/loan/domain"
)

// CustomerModel MySQL 客户表映射
type CustomerModel struct {
	ID               string          `gorm:"primaryKey;type:varchar(32);column:id"`
	FirstName        string          `gorm:"column:first_name;type:varchar(64);not null"`
	LastName         string          `gorm:"column:last_name;type:varchar(64);not null"`
	Email            string          `gorm:"column:email;type:varchar(128);uniqueIndex;not null"`
	Phone            string          `gorm:"column:phone;type:varchar(32);not null"`
	NationalID       string          `gorm:"column:national_id;type:varchar(64);uniqueIndex;not null"`
	Address          string          `gorm:"column:address;type:varchar(255)"`
	EmploymentStatus string          `gorm:"column:employment_status;type:varchar(32)"`
	MonthlyIncome    decimal.Decimal `gorm:"column:monthly_income;type:decimal(18,2);default:0"`
	CreatedAt        time.Time       `gorm:"column:created_at"`
	UpdatedAt        time.Time       `gorm:"column:updated_at"`
}

func (CustomerModel) TableName() string { return "customers" }

// LoanModel MySQL 贷款表映射
type LoanModel struct {
	ID                 string          `gorm:"primaryKey;type:varchar(32);column:id"`
	LoanNumber         string          `gorm:"column:loan_number;type:varchar(32);uniqueIndex;not null"`
	CustomerID         string          `gorm:"column:customer_id;type:varchar(32);index;not null"`
	PrincipalAmount    decimal.Decimal `gorm:"column:principal_amount;type:decimal(18,2);not null"`
	InterestRate       decimal.Decimal `gorm:"column:interest_rate;type:decimal(8,4);not null"`
	TermMonths         int             `gorm:"column:term_months;not null"`
	Purpose            string          `gorm:"column:purpose;type:varchar(255)"`
	Notes              string          `gorm:"column:notes;type:text"`
	Status             string          `gorm:"column:status;type:varchar(20);index;default:'PENDING'"`
	MonthlyPayment     decimal.Decimal `gorm:"column:monthly_payment;type:decimal(18,2);default:0"`
	TotalInterest      decimal.Decimal `gorm:"column:total_interest;type:decimal(18,2);default:0"`
	OutstandingBalance decimal.Decimal `gorm:"column:outstanding_balance;type:decimal(18,2);default:0"`
	DisbursementDate   *time.Time      `gorm:"column:disbursement_date"`
	MaturityDate       *time.Time      `gorm:"column:maturity_date"`
	ApprovedBy         string          `gorm:"column:approved_by;type:varchar(64)"`
	ApprovedAt         *time.Time      `gorm:"column:approved_at"`
	RejectionReason    string          `gorm:"column:rejection_reason;type:varchar(255)"`
	CreatedAt          time.Time       `gorm:"column:created_at"`
	UpdatedAt          time.Time       `gorm:"column:updated_at"`
}

func (LoanModel) TableName() string { return "loans" }

// AmortizationEntryModel MySQL 还款计划表映射
type AmortizationEntryModel struct {
	ID               string          `gorm:"primaryKey;type:varchar(32);column:id"`
	LoanID           string          `gorm:"column:loan_id;type:varchar(32);index:idx_loan_installment,unique;not null"`
	InstallmentNo    int             `gorm:"column:installment_no;index:idx_loan_installment,unique;not null"`
	DueDate          time.Time       `gorm:"column:due_date;index;not null"`
	PrincipalDue     decimal.Decimal `gorm:"column:principal_due;type:decimal(18,2);not null"`
	InterestDue      decimal.Decimal `gorm:"column:interest_due;type:decimal(18,2);not null"`
	TotalDue         decimal.Decimal `gorm:"column:total_due;type:decimal(18,2);not null"`
	RemainingBalance decimal.Decimal `gorm:"column:remaining_balance;type:decimal(18,2);not null"`
	IsPaid           bool            `gorm:"column:is_paid;default:false"`
	PaidAt           *time.Time      `gorm:"column:paid_at"`
}

func (AmortizationEntryModel) TableName() string { return "amortization_entries" }

// PaymentModel MySQL 还款记录表映射
type PaymentModel struct {
	ID               string          `gorm:"primaryKey;type:varchar(32);column:id"`
	LoanID           string          `gorm:"column:loan_id;type:varchar(32);index;not null"`
	ReceiptNumber    string          `gorm:"column:receipt_number;type:varchar(32);uniqueIndex;not null"`
	Amount           decimal.Decimal `gorm:"column:amount;type:decimal(18,2);not null"`
	PrincipalPortion decimal.Decimal `gorm:"column:principal_portion;type:decimal(18,2);not null"`
	InterestPortion  decimal.Decimal `gorm:"column:interest_portion;type:decimal(18,2);not null"`
	PaymentDate      time.Time       `gorm:"column:payment_date;index;not null"`
	Method           string          `gorm:"column:payment_method;type:varchar(20);not null"`
	ReferenceNumber  string          `gorm:"column:reference_number;type:varchar(64)"`
	Notes            string          `gorm:"column:notes;type:varchar(255)"`
	CreatedAt        time.Time       `gorm:"column:created_at"`
}

func (PaymentModel) TableName() string { return "payments" }

// CollateralModel MySQL 抵押物表映射
type CollateralModel struct {
	ID             string          `gorm:"primaryKey;type:varchar(32);column:id"`
	LoanID         string          `gorm:"column:loan_id;type:varchar(32);index;not null"`
	Type           string          `gorm:"column:type;type:varchar(20);not null"`
	Description    string          `gorm:"column:description;type:varchar(255);not null"`
	EstimatedValue decimal.Decimal `gorm:"column:estimated_value;type:decimal(18,2);not null"`
	CreatedAt      time.Time       `gorm:"column:created_at"`
}

func (CollateralModel) TableName() string { return "collaterals" }

// DocumentModel MySQL 贷款资料表映射
type DocumentModel struct {
	ID         string     `gorm:"primaryKey;type:varchar(32);column:id"`
	LoanID     string     `gorm:"column:loan_id;type:varchar(32);index;not null"`
	Type       string     `gorm:"column:type;type:varchar(32);not null"`
	FileName   string     `gorm:"column:file_name;type:varchar(255);not null"`
	Notes      string     `gorm:"column:notes;type:varchar(255)"`
	Verified   bool       `gorm:"column:verified;default:false"`
	VerifiedBy string     `gorm:"column:verified_by;type:varchar(64)"`
	VerifiedAt *time.Time `gorm:"column:verified_at"`
	CreatedAt  time.Time  `gorm:"column:created_at"`
}

func (DocumentModel) TableName() string { return "documents" }

// SequenceModel 命名计数器表。编号分配依赖行锁递增，不允许从业务表计数推导。
type SequenceModel struct {
	Name      string    `gorm:"primaryKey;type:varchar(32);column:name"`
	Value     int64     `gorm:"column:value;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (SequenceModel) TableName() string { return "sequences" }

// --- mapping helpers ---

func toCustomerModel(c *domain.Customer) *CustomerModel {
	return &CustomerModel{
		ID:               c.ID,
		FirstName:        c.FirstName,
		LastName:         c.LastName,
		Email:            c.Email,
		Phone:            c.Phone,
		NationalID:       c.NationalID,
		Address:          c.Address,
		EmploymentStatus: c.EmploymentStatus,
		MonthlyIncome:    c.MonthlyIncome,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

func toCustomer(m *CustomerModel) *domain.Customer {
	return &domain.Customer{
		ID:               m.ID,
		FirstName:        m.FirstName,
		LastName:         m.LastName,
		Email:            m.Email,
		Phone:            m.Phone,
		NationalID:       m.NationalID,
		Address:          m.Address,
		EmploymentStatus: m.EmploymentStatus,
		MonthlyIncome:    m.MonthlyIncome,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func toLoanModel(l *domain.Loan) *LoanModel {
	return &LoanModel{
		ID:                 l.ID,
		LoanNumber:         l.LoanNumber,
		CustomerID:         l.CustomerID,
		PrincipalAmount:    l.PrincipalAmount,
		InterestRate:       l.InterestRate,
		TermMonths:         l.TermMonths,
		Purpose:            l.Purpose,
		Notes:              l.Notes,
		Status:             string(l.Status),
		MonthlyPayment:     l.MonthlyPayment,
		TotalInterest:      l.TotalInterest,
		OutstandingBalance: l.OutstandingBalance,
		DisbursementDate:   l.DisbursementDate,
		MaturityDate:       l.MaturityDate,
		ApprovedBy:         l.ApprovedBy,
		ApprovedAt:         l.ApprovedAt,
		RejectionReason:    l.RejectionReason,
		CreatedAt:          l.CreatedAt,
		UpdatedAt:          l.UpdatedAt,
	}
}

func toLoan(m *LoanModel) *domain.Loan {
	return &domain.Loan{
		ID:                 m.ID,
		LoanNumber:         m.LoanNumber,
		CustomerID:         m.CustomerID,
		PrincipalAmount:    m.PrincipalAmount,
		InterestRate:       m.InterestRate,
		TermMonths:         m.TermMonths,
		Purpose:            m.Purpose,
		Notes:              m.Notes,
		Status:             domain.LoanStatus(m.Status),
		MonthlyPayment:     m.MonthlyPayment,
		TotalInterest:      m.TotalInterest,
		OutstandingBalance: m.OutstandingBalance,
		DisbursementDate:   m.DisbursementDate,
		MaturityDate:       m.MaturityDate,
		ApprovedBy:         m.ApprovedBy,
		ApprovedAt:         m.ApprovedAt,
		RejectionReason:    m.RejectionReason,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func toEntryModel(e *domain.AmortizationEntry) *AmortizationEntryModel {
	return &AmortizationEntryModel{
		ID:               e.ID,
		LoanID:           e.LoanID,
		InstallmentNo:    e.InstallmentNo,
		DueDate:          e.DueDate,
		PrincipalDue:     e.PrincipalDue,
		InterestDue:      e.InterestDue,
		TotalDue:         e.TotalDue,
		RemainingBalance: e.RemainingBalance,
		IsPaid:           e.IsPaid,
		PaidAt:           e.PaidAt,
	}
}

func toEntry(m *AmortizationEntryModel) *domain.AmortizationEntry {
	return &domain.AmortizationEntry{
		ID:               m.ID,
		LoanID:           m.LoanID,
		InstallmentNo:    m.InstallmentNo,
		DueDate:          m.DueDate,
		PrincipalDue:     m.PrincipalDue,
		InterestDue:      m.InterestDue,
		TotalDue:         m.TotalDue,
		RemainingBalance: m.RemainingBalance,
		IsPaid:           m.IsPaid,
		PaidAt:           m.PaidAt,
	}
}

func toPaymentModel(p *domain.Payment) *PaymentModel {
	return &PaymentModel{
		ID:               p.ID,
		LoanID:           p.LoanID,
		ReceiptNumber:    p.ReceiptNumber,
		Amount:           p.Amount,
		PrincipalPortion: p.PrincipalPortion,
		InterestPortion:  p.InterestPortion,
		PaymentDate:      p.PaymentDate,
		Method:           string(p.Method),
		ReferenceNumber:  p.ReferenceNumber,
		Notes:            p.Notes,
		CreatedAt:        p.CreatedAt,
	}
}

func toPayment(m *PaymentModel) *domain.Payment {
	return &domain.Payment{
		ID:               m.ID,
		LoanID:           m.LoanID,
		ReceiptNumber:    m.ReceiptNumber,
		Amount:           m.Amount,
		PrincipalPortion: m.PrincipalPortion,
		InterestPortion:  m.InterestPortion,
		PaymentDate:      m.PaymentDate,
		Method:           domain.PaymentMethod(m.Method),
		ReferenceNumber:  m.ReferenceNumber,
		Notes:            m.Notes,
		CreatedAt:        m.CreatedAt,
	}
}

func toCollateralModel(c *domain.Collateral) *CollateralModel {
	return &CollateralModel{
		ID:             c.ID,
		LoanID:         c.LoanID,
		Type:           string(c.Type),
		Description:    c.Description,
		EstimatedValue: c.EstimatedValue,
		CreatedAt:      c.CreatedAt,
	}
}

func toCollateral(m *CollateralModel) *domain.Collateral {
	return &domain.Collateral{
		ID:             m.ID,
		LoanID:         m.LoanID,
		Type:           domain.CollateralType(m.Type),
		Description:    m.Description,
		EstimatedValue: m.EstimatedValue,
		CreatedAt:      m.CreatedAt,
	}
}

func toDocumentModel(d *domain.Document) *DocumentModel {
	return &DocumentModel{
		ID:         d.ID,
		LoanID:     d.LoanID,
		Type:       string(d.Type),
		FileName:   d.FileName,
		Notes:      d.Notes,
		Verified:   d.Verified,
		VerifiedBy: d.VerifiedBy,
		VerifiedAt: d.VerifiedAt,
		CreatedAt:  d.CreatedAt,
	}
}

func toDocument(m *DocumentModel) *domain.Document {
	return &domain.Document{
		ID:         m.ID,
		LoanID:     m.LoanID,
		Type:       domain.DocumentType(m.Type),
		FileName:   m.FileName,
		Notes:      m.Notes,
		Verified:   m.Verified,
		VerifiedBy: m.VerifiedBy,
		VerifiedAt: m.VerifiedAt,
		CreatedAt:  m.CreatedAt,
	}
}
