package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/wyfcoding/microfinance/internal/loan/domain"
)

type collateralRepository struct{ db *gorm.DB }

// NewCollateralRepository 创建抵押物仓储
func NewCollateralRepository(db *gorm.DB) domain.CollateralRepository {
	return &collateralRepository{db: db}
}

func (r *collateralRepository) Create(ctx context.Context, collateral *domain.Collateral) error {
	return r.db.WithContext(ctx).Create(toCollateralModel(collateral)).Error
}

func (r *collateralRepository) FindByLoanID(ctx context.Context, loanID string) ([]*domain.Collateral, error) {
	var models []*CollateralModel
	err := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Collateral, len(models))
	for i, m := range models {
		out[i] = toCollateral(m)
	}
	return out, nil
}

type documentRepository struct{ db *gorm.DB }

// NewDocumentRepository 创建贷款资料仓储
func NewDocumentRepository(db *gorm.DB) domain.DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(ctx context.Context, document *domain.Document) error {
	return r.db.WithContext(ctx).Create(toDocumentModel(document)).Error
}

func (r *documentRepository) Update(ctx context.Context, document *domain.Document) error {
	return r.db.WithContext(ctx).Save(toDocumentModel(document)).Error
}

func (r *documentRepository) FindByID(ctx context.Context, id string) (*domain.Document, error) {
	var m DocumentModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return toDocument(&m), nil
}

func (r *documentRepository) FindByLoanID(ctx context.Context, loanID string) ([]*domain.Document, error) {
	var models []*DocumentModel
	err := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Document, len(models))
	for i, m := range models {
		out[i] = toDocument(m)
	}
	return out, nil
}
