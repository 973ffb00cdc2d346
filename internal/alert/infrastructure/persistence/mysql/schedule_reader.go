package mysql

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wyfcoding/microfinance/internal/alert/domain"
)

// scheduleReader 贷款库的只读视图。告警服务与贷款服务共用一个 MySQL 实例,
// 这里只做 SELECT, 任何写入都留在贷款服务。
type scheduleReader struct{ db *gorm.DB }

// NewScheduleReader 创建到期扫描的只读查询
func NewScheduleReader(db *gorm.DB) domain.ScheduleReader {
	return &scheduleReader{db: db}
}

type dueRow struct {
	LoanID        string          `gorm:"column:loan_id"`
	LoanNumber    string          `gorm:"column:loan_number"`
	FirstName     string          `gorm:"column:first_name"`
	LastName      string          `gorm:"column:last_name"`
	Email         string          `gorm:"column:email"`
	InstallmentNo int             `gorm:"column:installment_no"`
	DueDate       time.Time       `gorm:"column:due_date"`
	TotalDue      decimal.Decimal `gorm:"column:total_due"`
}

const dueQuery = `
SELECT e.loan_id, l.loan_number, c.first_name, c.last_name, c.email,
       e.installment_no, e.due_date, e.total_due
FROM amortization_entries e
JOIN loans l ON l.id = e.loan_id
JOIN customers c ON c.id = l.customer_id
WHERE l.status = 'ACTIVE' AND e.is_paid = 0 AND e.due_date >= ? AND e.due_date < ?
ORDER BY e.due_date ASC, e.installment_no ASC`

const overdueQuery = `
SELECT e.loan_id, l.loan_number, c.first_name, c.last_name, c.email,
       e.installment_no, e.due_date, e.total_due
FROM amortization_entries e
JOIN loans l ON l.id = e.loan_id
JOIN customers c ON c.id = l.customer_id
WHERE l.status = 'ACTIVE' AND e.is_paid = 0 AND e.due_date < ?
ORDER BY e.due_date ASC, e.installment_no ASC`

func (r *scheduleReader) DueWithin(ctx context.Context, days int) ([]*domain.DueInstallment, error) {
	now := time.Now()
	start := startOfDay(now)
	end := start.AddDate(0, 0, days+1)

	var rows []dueRow
	if err := r.db.WithContext(ctx).Raw(dueQuery, start, end).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return toDueInstallments(rows), nil
}

func (r *scheduleReader) Overdue(ctx context.Context) ([]*domain.DueInstallment, error) {
	start := startOfDay(time.Now())

	var rows []dueRow
	if err := r.db.WithContext(ctx).Raw(overdueQuery, start).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return toDueInstallments(rows), nil
}

func toDueInstallments(rows []dueRow) []*domain.DueInstallment {
	out := make([]*domain.DueInstallment, len(rows))
	for i, row := range rows {
		out[i] = &domain.DueInstallment{
			LoanID:        row.LoanID,
			LoanNumber:    row.LoanNumber,
			CustomerName:  row.FirstName + " " + row.LastName,
			CustomerEmail: row.Email,
			InstallmentNo: row.InstallmentNo,
			DueDate:       row.DueDate,
			TotalDue:      row.TotalDue,
		}
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
