// Package mysql 告警服务的 MySQL 持久化实现
package mysql

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/wyfcoding/microfinance/internal/alert/domain"
)

// AlertLogModel MySQL 投递日志表映射
type AlertLogModel struct {
	ID           string    `gorm:"primaryKey;type:varchar(32);column:id"`
	Type         string    `gorm:"column:type;type:varchar(20);index:idx_loan_type_day;not null"`
	LoanID       string    `gorm:"column:loan_id;type:varchar(32);index:idx_loan_type_day;not null"`
	LoanNumber   string    `gorm:"column:loan_number;type:varchar(32)"`
	Recipient    string    `gorm:"column:recipient;type:varchar(128);not null"`
	Subject      string    `gorm:"column:subject;type:varchar(255)"`
	Status       string    `gorm:"column:status;type:varchar(10);not null"`
	ErrorMessage string    `gorm:"column:error_message;type:text"`
	SentAt       time.Time `gorm:"column:sent_at;index:idx_loan_type_day;not null"`
}

func (AlertLogModel) TableName() string { return "alert_logs" }

func toAlertLogModel(a *domain.AlertLog) *AlertLogModel {
	return &AlertLogModel{
		ID:           a.ID,
		Type:         string(a.Type),
		LoanID:       a.LoanID,
		LoanNumber:   a.LoanNumber,
		Recipient:    a.Recipient,
		Subject:      a.Subject,
		Status:       string(a.Status),
		ErrorMessage: a.ErrorMessage,
		SentAt:       a.SentAt,
	}
}

func toAlertLog(m *AlertLogModel) *domain.AlertLog {
	return &domain.AlertLog{
		ID:           m.ID,
		Type:         domain.AlertType(m.Type),
		LoanID:       m.LoanID,
		LoanNumber:   m.LoanNumber,
		Recipient:    m.Recipient,
		Subject:      m.Subject,
		Status:       domain.AlertStatus(m.Status),
		ErrorMessage: m.ErrorMessage,
		SentAt:       m.SentAt,
	}
}

type alertLogRepository struct{ db *gorm.DB }

// NewAlertLogRepository 创建投递日志仓储
func NewAlertLogRepository(db *gorm.DB) domain.AlertLogRepository {
	return &alertLogRepository{db: db}
}

func (r *alertLogRepository) Create(ctx context.Context, log *domain.AlertLog) error {
	return r.db.WithContext(ctx).Create(toAlertLogModel(log)).Error
}

func (r *alertLogRepository) List(ctx context.Context, limit, offset int) ([]*domain.AlertLog, int64, error) {
	var total int64
	q := r.db.WithContext(ctx).Model(&AlertLogModel{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []*AlertLogModel
	if err := q.Order("sent_at DESC").Limit(limit).Offset(offset).Find(&models).Error; err != nil {
		return nil, 0, err
	}
	logs := make([]*domain.AlertLog, len(models))
	for i, m := range models {
		logs[i] = toAlertLog(m)
	}
	return logs, total, nil
}

func (r *alertLogRepository) SentToday(ctx context.Context, loanID string, alertType domain.AlertType, day time.Time) (bool, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)

	var count int64
	err := r.db.WithContext(ctx).Model(&AlertLogModel{}).
		Where("loan_id = ? AND type = ? AND status = ? AND sent_at >= ? AND sent_at < ?",
			loanID, string(alertType), string(domain.AlertStatusSent), start, end).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
