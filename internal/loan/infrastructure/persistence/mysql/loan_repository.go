package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wyfcoding/microfinance/internal/loan/domain"
)

type loanRepository struct{ db *gorm.DB }

// NewLoanRepository 创建贷款仓储
func NewLoanRepository(db *gorm.DB) domain.LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	return r.db.WithContext(ctx).Create(toLoanModel(loan)).Error
}

func (r *loanRepository) Update(ctx context.Context, loan *domain.Loan) error {
	return r.db.WithContext(ctx).Save(toLoanModel(loan)).Error
}

func (r *loanRepository) FindByID(ctx context.Context, id string) (*domain.Loan, error) {
	var m LoanModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrLoanNotFound
	}
	if err != nil {
		return nil, err
	}
	return toLoan(&m), nil
}

func (r *loanRepository) FindByIDForUpdate(ctx context.Context, id string) (*domain.Loan, error) {
	var m LoanModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrLoanNotFound
	}
	if err != nil {
		return nil, err
	}
	return toLoan(&m), nil
}

func (r *loanRepository) List(ctx context.Context, filter domain.LoanFilter) ([]*domain.Loan, error) {
	q := r.db.WithContext(ctx).Model(&LoanModel{})
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if filter.CustomerID != "" {
		q = q.Where("customer_id = ?", filter.CustomerID)
	}

	var models []*LoanModel
	if err := q.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	loans := make([]*domain.Loan, len(models))
	for i, m := range models {
		loans[i] = toLoan(m)
	}
	return loans, nil
}

func (r *loanRepository) ReplaceSchedule(ctx context.Context, loanID string, entries []*domain.AmortizationEntry) error {
	if err := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Delete(&AmortizationEntryModel{}).Error; err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	models := make([]*AmortizationEntryModel, len(entries))
	for i, e := range entries {
		models[i] = toEntryModel(e)
	}
	return r.db.WithContext(ctx).CreateInBatches(models, 100).Error
}

func (r *loanRepository) ScheduleByLoan(ctx context.Context, loanID string) ([]*domain.AmortizationEntry, error) {
	var models []*AmortizationEntryModel
	err := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("installment_no ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	entries := make([]*domain.AmortizationEntry, len(models))
	for i, m := range models {
		entries[i] = toEntry(m)
	}
	return entries, nil
}

func (r *loanRepository) NextUnpaidInstallment(ctx context.Context, loanID string) (*domain.AmortizationEntry, error) {
	var m AmortizationEntryModel
	err := r.db.WithContext(ctx).
		Where("loan_id = ? AND is_paid = ?", loanID, false).
		Order("installment_no ASC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toEntry(&m), nil
}

func (r *loanRepository) MarkInstallmentPaid(ctx context.Context, entryID string, paidAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&AmortizationEntryModel{}).
		Where("id = ? AND is_paid = ?", entryID, false).
		Updates(map[string]any{"is_paid": true, "paid_at": paidAt})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("installment %s already paid", entryID)
	}
	return nil
}

func (r *loanRepository) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	return r.db.WithContext(ctx).Create(toPaymentModel(payment)).Error
}

func (r *loanRepository) PaymentsByLoan(ctx context.Context, loanID string) ([]*domain.Payment, error) {
	var models []*PaymentModel
	err := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("payment_date DESC, created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	payments := make([]*domain.Payment, len(models))
	for i, m := range models {
		payments[i] = toPayment(m)
	}
	return payments, nil
}

// NextSequence 命名计数器递增。先用 INSERT IGNORE 保证计数器行存在,
// 再锁行读取并加一。编号的唯一性由锁与事务保证, 与业务表行数无关。
func (r *loanRepository) NextSequence(ctx context.Context, name string) (int64, error) {
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&SequenceModel{Name: name, Value: 0, UpdatedAt: time.Now()}).Error; err != nil {
		return 0, err
	}

	var seq SequenceModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("name = ?", name).First(&seq).Error; err != nil {
		return 0, err
	}

	next := seq.Value + 1
	if err := r.db.WithContext(ctx).Model(&SequenceModel{}).
		Where("name = ?", name).
		Updates(map[string]any{"value": next, "updated_at": time.Now()}).Error; err != nil {
		return 0, err
	}
	return next, nil
}

// InTx 在单个事务内执行 fn。fn 收到的仓储绑定事务连接,
// 其上的行锁与计数器操作在事务提交前一直持有。
func (r *loanRepository) InTx(ctx context.Context, fn func(repo domain.LoanRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&loanRepository{db: tx})
	})
}
