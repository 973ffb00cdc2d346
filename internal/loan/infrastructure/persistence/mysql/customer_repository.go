package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/wyfcoding/microfinance/internal/loan/domain"
)

type customerRepository struct{ db *gorm.DB }

// NewCustomerRepository 创建客户仓储
func NewCustomerRepository(db *gorm.DB) domain.CustomerRepository {
	return &customerRepository{db: db}
}

func (r *customerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	return r.db.WithContext(ctx).Create(toCustomerModel(customer)).Error
}

func (r *customerRepository) Update(ctx context.Context, customer *domain.Customer) error {
	return r.db.WithContext(ctx).Save(toCustomerModel(customer)).Error
}

func (r *customerRepository) FindByID(ctx context.Context, id string) (*domain.Customer, error) {
	var m CustomerModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrCustomerNotFound
	}
	if err != nil {
		return nil, err
	}
	return toCustomer(&m), nil
}

func (r *customerRepository) List(ctx context.Context, limit, offset int) ([]*domain.Customer, int64, error) {
	var total int64
	q := r.db.WithContext(ctx).Model(&CustomerModel{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []*CustomerModel
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&models).Error; err != nil {
		return nil, 0, err
	}
	customers := make([]*domain.Customer, len(models))
	for i, m := range models {
		customers[i] = toCustomer(m)
	}
	return customers, total, nil
}
