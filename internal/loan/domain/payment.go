package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod 还款方式
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodMobileMoney  PaymentMethod = "MOBILE_MONEY"
	PaymentMethodCheque       PaymentMethod = "CHEQUE"
)

// Valid 校验还款方式枚举值
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodMobileMoney, PaymentMethodCheque:
		return true
	}
	return false
}

// Payment 还款记录。创建后不可修改，核心不提供冲正。
// 不变量：Amount == PrincipalPortion + InterestPortion（精确相等）。
type Payment struct {
	ID               string          `json:"id"`
	LoanID           string          `json:"loan_id"`
	ReceiptNumber    string          `json:"receipt_number"`
	Amount           decimal.Decimal `json:"amount"`
	PrincipalPortion decimal.Decimal `json:"principal_portion"`
	InterestPortion  decimal.Decimal `json:"interest_portion"`
	PaymentDate      time.Time       `json:"payment_date"`
	Method           PaymentMethod   `json:"payment_method"`
	ReferenceNumber  string          `json:"reference_number,omitempty"`
	Notes            string          `json:"notes,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// SplitPayment 将一笔现金按最近一期未还计划拆分本息。
// 只参照最近一期的应计利息：超额覆盖多期时，超出部分全部计入本金，
// 且每笔还款至多勾销一期计划行。计划已耗尽时整笔计入本金。
func SplitPayment(amount decimal.Decimal, next *AmortizationEntry) (principal, interest decimal.Decimal) {
	if next == nil {
		return amount, decimal.Zero
	}

	interest = decimal.Min(next.InterestDue, amount)
	principal = amount.Sub(interest)
	if principal.IsNegative() {
		principal = decimal.Zero
	}
	return principal, interest
}

// CollateralType 抵押物类型
type CollateralType string

const (
	CollateralTypeRealEstate CollateralType = "REAL_ESTATE"
	CollateralTypeVehicle    CollateralType = "VEHICLE"
	CollateralTypeEquipment  CollateralType = "EQUIPMENT"
	CollateralTypeSavings    CollateralType = "SAVINGS"
	CollateralTypeOther      CollateralType = "OTHER"
)

// Valid 校验抵押物类型枚举值
func (t CollateralType) Valid() bool {
	switch t {
	case CollateralTypeRealEstate, CollateralTypeVehicle, CollateralTypeEquipment, CollateralTypeSavings, CollateralTypeOther:
		return true
	}
	return false
}

// Collateral 抵押物登记
type Collateral struct {
	ID             string          `json:"id"`
	LoanID         string          `json:"loan_id"`
	Type           CollateralType  `json:"type"`
	Description    string          `json:"description"`
	EstimatedValue decimal.Decimal `json:"estimated_value"`
	CreatedAt      time.Time       `json:"created_at"`
}

// DocumentType 贷款资料类型
type DocumentType string

const (
	DocumentTypeNationalID       DocumentType = "NATIONAL_ID"
	DocumentTypeProofOfIncome    DocumentType = "PROOF_OF_INCOME"
	DocumentTypeBankStatement    DocumentType = "BANK_STATEMENT"
	DocumentTypeEmploymentLetter DocumentType = "EMPLOYMENT_LETTER"
	DocumentTypeUtilityBill      DocumentType = "UTILITY_BILL"
	DocumentTypeCollateralPhoto  DocumentType = "COLLATERAL_PHOTO"
	DocumentTypeOther            DocumentType = "OTHER"
)

// Valid 校验资料类型枚举值
func (t DocumentType) Valid() bool {
	switch t {
	case DocumentTypeNationalID, DocumentTypeProofOfIncome, DocumentTypeBankStatement,
		DocumentTypeEmploymentLetter, DocumentTypeUtilityBill, DocumentTypeCollateralPhoto, DocumentTypeOther:
		return true
	}
	return false
}

// Document 贷款资料的元数据登记。文件本体的存储不在本服务范围内。
type Document struct {
	ID         string       `json:"id"`
	LoanID     string       `json:"loan_id"`
	Type       DocumentType `json:"type"`
	FileName   string       `json:"file_name"`
	Notes      string       `json:"notes,omitempty"`
	Verified   bool         `json:"verified"`
	VerifiedBy string       `json:"verified_by,omitempty"`
	VerifiedAt *time.Time   `json:"verified_at,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Verify 标记资料已核验
func (d *Document) Verify(by string) {
	now := time.Now()
	d.Verified = true
	d.VerifiedBy = by
	d.VerifiedAt = &now
}
