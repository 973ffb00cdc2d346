package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/microfinance/internal/loan/domain"
	"github.com/wyfcoding/microfinance/pkg/utils"
)

// CreateCustomerCommand 创建客户命令
type CreateCustomerCommand struct {
	FirstName        string          `json:"first_name" binding:"required"`
	LastName         string          `json:"last_name" binding:"required"`
	Email            string          `json:"email" binding:"required,email"`
	Phone            string          `json:"phone" binding:"required"`
	NationalID       string          `json:"national_id" binding:"required"`
	Address          string          `json:"address"`
	EmploymentStatus string          `json:"employment_status"`
	MonthlyIncome    decimal.Decimal `json:"monthly_income"`
}

// UpdateCustomerCommand 更新客户联系方式命令
type UpdateCustomerCommand struct {
	CustomerID       string
	Email            string          `json:"email" binding:"required,email"`
	Phone            string          `json:"phone" binding:"required"`
	Address          string          `json:"address"`
	EmploymentStatus string          `json:"employment_status"`
	MonthlyIncome    decimal.Decimal `json:"monthly_income"`
}

// CreateLoanCommand 创建贷款申请命令
type CreateLoanCommand struct {
	CustomerID string          `json:"customer_id" binding:"required"`
	Principal  decimal.Decimal `json:"principal" binding:"required"`
	AnnualRate decimal.Decimal `json:"annual_rate" binding:"required"`
	TermMonths int             `json:"term_months" binding:"required"`
	Purpose    string          `json:"purpose"`
	Notes      string          `json:"notes"`
}

// 进件政策区间, 与信贷审批口径一致
var (
	minLoanPrincipal = decimal.NewFromInt(100000)
	minAnnualRate    = decimal.NewFromFloat(0.1)
	maxAnnualRate    = decimal.NewFromInt(100)
)

const maxTermMonths = 360

// Validate 进件校验。利率区间只约束新申请, 计划表算法本身支持零利率。
func (c CreateLoanCommand) Validate() error {
	if c.Principal.LessThan(minLoanPrincipal) {
		return fmt.Errorf("%w: minimum principal is %s", domain.ErrInvalidPrincipal, minLoanPrincipal)
	}
	if c.AnnualRate.LessThan(minAnnualRate) || c.AnnualRate.GreaterThan(maxAnnualRate) {
		return fmt.Errorf("%w: annual rate must be between %s and %s",
			domain.ErrInvalidRate, minAnnualRate, maxAnnualRate)
	}
	if c.TermMonths < 1 || c.TermMonths > maxTermMonths {
		return fmt.Errorf("%w: term must be between 1 and %d months", domain.ErrInvalidTerm, maxTermMonths)
	}
	if strings.TrimSpace(c.Purpose) == "" {
		return domain.ErrInvalidPurpose
	}
	return nil
}

// TransitionCommand 贷款状态流转命令
type TransitionCommand struct {
	LoanID     string
	Target     domain.LoanStatus
	StartDate  *time.Time // APPROVED 时的放款起始日, 缺省为当天
	ApprovedBy string
	Reason     string // REJECTED 时的拒绝原因
}

// AddCollateralCommand 登记抵押物命令
type AddCollateralCommand struct {
	LoanID         string
	Type           domain.CollateralType `json:"type" binding:"required"`
	Description    string                `json:"description" binding:"required"`
	EstimatedValue decimal.Decimal       `json:"estimated_value" binding:"required"`
}

// AddDocumentCommand 登记贷款资料元数据命令
type AddDocumentCommand struct {
	LoanID   string
	Type     domain.DocumentType `json:"type" binding:"required"`
	FileName string              `json:"file_name" binding:"required"`
	Notes    string              `json:"notes"`
}

// LoanService 贷款生命周期应用服务。
// 负责编排领域对象与仓储事务，状态机规则全部下沉在领域层。
type LoanService struct {
	customers   domain.CustomerRepository
	loans       domain.LoanRepository
	collaterals domain.CollateralRepository
	documents   domain.DocumentRepository
	notifier    domain.Notifier
	logger      *slog.Logger
}

func NewLoanService(
	customers domain.CustomerRepository,
	loans domain.LoanRepository,
	collaterals domain.CollateralRepository,
	documents domain.DocumentRepository,
	notifier domain.Notifier,
	logger *slog.Logger,
) *LoanService {
	return &LoanService{
		customers:   customers,
		loans:       loans,
		collaterals: collaterals,
		documents:   documents,
		notifier:    notifier,
		logger:      logger,
	}
}

// CreateCustomer 登记新客户
func (s *LoanService) CreateCustomer(ctx context.Context, cmd CreateCustomerCommand) (*domain.Customer, error) {
	now := time.Now()
	customer := &domain.Customer{
		ID:               utils.GenIDString(),
		FirstName:        cmd.FirstName,
		LastName:         cmd.LastName,
		Email:            cmd.Email,
		Phone:            cmd.Phone,
		NationalID:       cmd.NationalID,
		Address:          cmd.Address,
		EmploymentStatus: cmd.EmploymentStatus,
		MonthlyIncome:    cmd.MonthlyIncome,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.customers.Create(ctx, customer); err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	s.logger.InfoContext(ctx, "customer registered", "customer_id", customer.ID, "email", customer.Email)
	return customer, nil
}

// UpdateCustomer 更新客户联系方式与收入信息, 身份字段不可变更
func (s *LoanService) UpdateCustomer(ctx context.Context, cmd UpdateCustomerCommand) (*domain.Customer, error) {
	customer, err := s.customers.FindByID(ctx, cmd.CustomerID)
	if err != nil {
		return nil, err
	}
	customer.Email = cmd.Email
	customer.Phone = cmd.Phone
	customer.Address = cmd.Address
	customer.EmploymentStatus = cmd.EmploymentStatus
	customer.MonthlyIncome = cmd.MonthlyIncome
	customer.UpdatedAt = time.Now()
	if err := s.customers.Update(ctx, customer); err != nil {
		return nil, fmt.Errorf("update customer: %w", err)
	}
	return customer, nil
}

// GetCustomer 查询客户档案
func (s *LoanService) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return s.customers.FindByID(ctx, id)
}

// ListCustomers 分页列出客户
func (s *LoanService) ListCustomers(ctx context.Context, limit, offset int) ([]*domain.Customer, int64, error) {
	return s.customers.List(ctx, limit, offset)
}

// CreateLoan 创建贷款申请。
// 贷款编号在插入同一事务内通过计数器表分配, 避免并发下的编号冲突。
func (s *LoanService) CreateLoan(ctx context.Context, cmd CreateLoanCommand) (*domain.Loan, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.customers.FindByID(ctx, cmd.CustomerID); err != nil {
		return nil, err
	}

	var loan *domain.Loan
	err := s.loans.InTx(ctx, func(repo domain.LoanRepository) error {
		seq, err := repo.NextSequence(ctx, domain.SequenceLoanNumber)
		if err != nil {
			return fmt.Errorf("allocate loan number: %w", err)
		}
		number := fmt.Sprintf("LN-%d-%04d", time.Now().Year(), seq)

		loan, err = domain.NewLoan(utils.GenIDString(), number, cmd.CustomerID,
			cmd.Principal, cmd.AnnualRate, cmd.TermMonths, cmd.Purpose, cmd.Notes)
		if err != nil {
			return err
		}
		return repo.Create(ctx, loan)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "loan application created",
		"loan_id", loan.ID, "loan_number", loan.LoanNumber,
		"principal", loan.PrincipalAmount.String(), "term_months", loan.TermMonths)
	return loan, nil
}

// GetLoan 查询贷款
func (s *LoanService) GetLoan(ctx context.Context, id string) (*domain.Loan, error) {
	return s.loans.FindByID(ctx, id)
}

// ListLoans 按条件列出贷款
func (s *LoanService) ListLoans(ctx context.Context, filter domain.LoanFilter) ([]*domain.Loan, error) {
	return s.loans.List(ctx, filter)
}

// TransitionStatus 执行贷款状态流转。
// 进入 APPROVED 或 ACTIVE 时在同一事务内重建还款计划表,
// 旧计划行无论是否已还都被整体替换。事务提交后异步发出客户通知。
func (s *LoanService) TransitionStatus(ctx context.Context, cmd TransitionCommand) (*domain.Loan, error) {
	var loan *domain.Loan
	err := s.loans.InTx(ctx, func(repo domain.LoanRepository) error {
		var err error
		loan, err = repo.FindByIDForUpdate(ctx, cmd.LoanID)
		if err != nil {
			return err
		}

		switch cmd.Target {
		case domain.LoanStatusApproved, domain.LoanStatusActive:
			start := time.Now()
			if cmd.StartDate != nil {
				start = *cmd.StartDate
			}
			if err := loan.Approve(cmd.Target, start, cmd.ApprovedBy); err != nil {
				return err
			}
			entries, err := domain.GenerateSchedule(loan.PrincipalAmount, loan.InterestRate, loan.TermMonths, start)
			if err != nil {
				return err
			}
			rows := make([]*domain.AmortizationEntry, len(entries))
			for i, e := range entries {
				rows[i] = &domain.AmortizationEntry{
					ID:               utils.GenIDString(),
					LoanID:           loan.ID,
					InstallmentNo:    e.InstallmentNo,
					DueDate:          e.DueDate,
					PrincipalDue:     e.PrincipalDue,
					InterestDue:      e.InterestDue,
					TotalDue:         e.TotalDue,
					RemainingBalance: e.RemainingBalance,
				}
			}
			if err := repo.ReplaceSchedule(ctx, loan.ID, rows); err != nil {
				return fmt.Errorf("replace schedule: %w", err)
			}
		case domain.LoanStatusRejected:
			if err := loan.Reject(cmd.Reason); err != nil {
				return err
			}
		default:
			if err := loan.SetStatus(cmd.Target); err != nil {
				return err
			}
		}
		return repo.Update(ctx, loan)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "loan status changed",
		"loan_id", loan.ID, "loan_number", loan.LoanNumber, "status", loan.Status)
	s.notifyTransition(ctx, loan, cmd.Target)
	return loan, nil
}

// notifyTransition 提交后通知。失败只记日志, 不影响已提交的状态。
func (s *LoanService) notifyTransition(ctx context.Context, loan *domain.Loan, target domain.LoanStatus) {
	if s.notifier == nil {
		return
	}
	if !target.RequiresSchedule() && target != domain.LoanStatusRejected {
		return
	}
	customer, err := s.customers.FindByID(ctx, loan.CustomerID)
	if err != nil {
		s.logger.WarnContext(ctx, "skip notification, customer lookup failed",
			"loan_id", loan.ID, "error", err)
		return
	}

	event := domain.LoanEvent{
		EventID:        utils.GenIDString(),
		LoanID:         loan.ID,
		LoanNumber:     loan.LoanNumber,
		RecipientEmail: customer.Email,
		RecipientName:  customer.FullName(),
		OccurredAt:     time.Now(),
	}
	if target.RequiresSchedule() {
		event.Type = domain.EventLoanApproved
		event.Principal = loan.PrincipalAmount
		event.TermMonths = loan.TermMonths
		event.MonthlyPayment = loan.MonthlyPayment
		if loan.DisbursementDate != nil {
			first := domain.AddMonths(*loan.DisbursementDate, 1)
			event.FirstDueDate = &first
		}
	} else {
		event.Type = domain.EventLoanRejected
		event.Reason = loan.RejectionReason
	}

	go func() {
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.notifier.Notify(bg, event); err != nil {
			s.logger.Warn("notification dispatch failed",
				"loan_id", loan.ID, "event", string(event.Type), "error", err)
		}
	}()
}

// AddCollateral 为贷款登记抵押物
func (s *LoanService) AddCollateral(ctx context.Context, cmd AddCollateralCommand) (*domain.Collateral, error) {
	if !cmd.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCollateralType, cmd.Type)
	}
	if _, err := s.loans.FindByID(ctx, cmd.LoanID); err != nil {
		return nil, err
	}
	col := &domain.Collateral{
		ID:             utils.GenIDString(),
		LoanID:         cmd.LoanID,
		Type:           cmd.Type,
		Description:    cmd.Description,
		EstimatedValue: cmd.EstimatedValue,
		CreatedAt:      time.Now(),
	}
	if err := s.collaterals.Create(ctx, col); err != nil {
		return nil, fmt.Errorf("create collateral: %w", err)
	}
	return col, nil
}

// ListCollateral 列出贷款名下的抵押物
func (s *LoanService) ListCollateral(ctx context.Context, loanID string) ([]*domain.Collateral, error) {
	if _, err := s.loans.FindByID(ctx, loanID); err != nil {
		return nil, err
	}
	return s.collaterals.FindByLoanID(ctx, loanID)
}

// AddDocument 登记贷款资料元数据。文件本体存放在外部系统, 这里只记录指针。
func (s *LoanService) AddDocument(ctx context.Context, cmd AddDocumentCommand) (*domain.Document, error) {
	if !cmd.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidDocumentType, cmd.Type)
	}
	if _, err := s.loans.FindByID(ctx, cmd.LoanID); err != nil {
		return nil, err
	}
	doc := &domain.Document{
		ID:        utils.GenIDString(),
		LoanID:    cmd.LoanID,
		Type:      cmd.Type,
		FileName:  cmd.FileName,
		Notes:     cmd.Notes,
		CreatedAt: time.Now(),
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	return doc, nil
}

// ListDocuments 列出贷款名下的资料
func (s *LoanService) ListDocuments(ctx context.Context, loanID string) ([]*domain.Document, error) {
	if _, err := s.loans.FindByID(ctx, loanID); err != nil {
		return nil, err
	}
	return s.documents.FindByLoanID(ctx, loanID)
}

// VerifyDocument 标记资料已核验
func (s *LoanService) VerifyDocument(ctx context.Context, documentID, verifiedBy string) (*domain.Document, error) {
	doc, err := s.documents.FindByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	doc.Verify(verifiedBy)
	if err := s.documents.Update(ctx, doc); err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}
	return doc, nil
}
