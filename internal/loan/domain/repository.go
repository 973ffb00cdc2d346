package domain

import (
	"context"
	"time"
)

// LoanFilter 贷款列表过滤条件
type LoanFilter struct {
	Status     LoanStatus
	CustomerID string
}

// CustomerRepository 客户仓储
type CustomerRepository interface {
	Create(ctx context.Context, customer *Customer) error
	Update(ctx context.Context, customer *Customer) error
	FindByID(ctx context.Context, id string) (*Customer, error)
	List(ctx context.Context, limit, offset int) ([]*Customer, int64, error)
}

// LoanRepository 贷款聚合仓储。还款计划与还款记录由贷款独占持有，
// 统一挂在同一仓储下以便在单个事务内操作。
type LoanRepository interface {
	Create(ctx context.Context, loan *Loan) error
	Update(ctx context.Context, loan *Loan) error
	FindByID(ctx context.Context, id string) (*Loan, error)
	// FindByIDForUpdate 行级锁读取，仅在 InTx 内有效。
	// 同一贷款同一时刻至多一笔还款事务在途。
	FindByIDForUpdate(ctx context.Context, id string) (*Loan, error)
	List(ctx context.Context, filter LoanFilter) ([]*Loan, error)

	// ReplaceSchedule 全量替换还款计划：删除旧行后插入新行。
	// 重新审批不保留任何旧计划行。
	ReplaceSchedule(ctx context.Context, loanID string, entries []*AmortizationEntry) error
	ScheduleByLoan(ctx context.Context, loanID string) ([]*AmortizationEntry, error)
	// NextUnpaidInstallment 期数最小的未还计划行，不存在时返回 (nil, nil)
	NextUnpaidInstallment(ctx context.Context, loanID string) (*AmortizationEntry, error)
	MarkInstallmentPaid(ctx context.Context, entryID string, paidAt time.Time) error

	CreatePayment(ctx context.Context, payment *Payment) error
	PaymentsByLoan(ctx context.Context, loanID string) ([]*Payment, error)

	// NextSequence 返回命名计数器的下一个值。必须在 InTx 内调用，
	// 计数器行与业务插入同属一个事务，保证编号不重复、不跳号。
	NextSequence(ctx context.Context, name string) (int64, error)

	// InTx 在单个数据库事务中执行 fn，fn 收到的仓储绑定该事务
	InTx(ctx context.Context, fn func(repo LoanRepository) error) error
}

// CollateralRepository 抵押物仓储
type CollateralRepository interface {
	Create(ctx context.Context, collateral *Collateral) error
	FindByLoanID(ctx context.Context, loanID string) ([]*Collateral, error)
}

// DocumentRepository 贷款资料仓储
type DocumentRepository interface {
	Create(ctx context.Context, document *Document) error
	Update(ctx context.Context, document *Document) error
	FindByID(ctx context.Context, id string) (*Document, error)
	FindByLoanID(ctx context.Context, loanID string) ([]*Document, error)
}

// 计数器名称
const (
	SequenceLoanNumber    = "loan_number"
	SequenceReceiptNumber = "receipt_number"
)
