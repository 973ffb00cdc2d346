package application

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/wyfcoding/microfinance/internal/loan/domain"
)

// 内存仓储, 单测专用。事务语义退化为同一把锁下的顺序执行。

type memoryCustomerRepo struct {
	mu        sync.Mutex
	customers map[string]*domain.Customer
}

func newMemoryCustomerRepo() *memoryCustomerRepo {
	return &memoryCustomerRepo{customers: make(map[string]*domain.Customer)}
}

func (r *memoryCustomerRepo) Create(_ context.Context, c *domain.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.customers[c.ID] = &cp
	return nil
}

func (r *memoryCustomerRepo) Update(_ context.Context, c *domain.Customer) error {
	return r.Create(context.Background(), c)
}

func (r *memoryCustomerRepo) FindByID(_ context.Context, id string) (*domain.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.customers[id]
	if !ok {
		return nil, domain.ErrCustomerNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memoryCustomerRepo) List(_ context.Context, limit, offset int) ([]*domain.Customer, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Customer, 0, len(r.customers))
	for _, c := range r.customers {
		cp := *c
		out = append(out, &cp)
	}
	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], total, nil
}

type memoryLoanRepo struct {
	mu        sync.Mutex
	loans     map[string]*domain.Loan
	entries   map[string][]*domain.AmortizationEntry
	payments  map[string][]*domain.Payment
	sequences map[string]int64
}

func newMemoryLoanRepo() *memoryLoanRepo {
	return &memoryLoanRepo{
		loans:     make(map[string]*domain.Loan),
		entries:   make(map[string][]*domain.AmortizationEntry),
		payments:  make(map[string][]*domain.Payment),
		sequences: make(map[string]int64),
	}
}

func (r *memoryLoanRepo) Create(_ context.Context, loan *domain.Loan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *loan
	r.loans[loan.ID] = &cp
	return nil
}

func (r *memoryLoanRepo) Update(_ context.Context, loan *domain.Loan) error {
	return r.Create(context.Background(), loan)
}

func (r *memoryLoanRepo) FindByID(_ context.Context, id string) (*domain.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loan, ok := r.loans[id]
	if !ok {
		return nil, domain.ErrLoanNotFound
	}
	cp := *loan
	return &cp, nil
}

func (r *memoryLoanRepo) FindByIDForUpdate(ctx context.Context, id string) (*domain.Loan, error) {
	return r.FindByID(ctx, id)
}

func (r *memoryLoanRepo) List(_ context.Context, filter domain.LoanFilter) ([]*domain.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Loan
	for _, loan := range r.loans {
		if filter.Status != "" && loan.Status != filter.Status {
			continue
		}
		if filter.CustomerID != "" && loan.CustomerID != filter.CustomerID {
			continue
		}
		cp := *loan
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memoryLoanRepo) ReplaceSchedule(_ context.Context, loanID string, entries []*domain.AmortizationEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := make([]*domain.AmortizationEntry, len(entries))
	for i, e := range entries {
		cp := *e
		copied[i] = &cp
	}
	r.entries[loanID] = copied
	return nil
}

func (r *memoryLoanRepo) ScheduleByLoan(_ context.Context, loanID string) ([]*domain.AmortizationEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.entries[loanID]
	out := make([]*domain.AmortizationEntry, len(entries))
	for i, e := range entries {
		cp := *e
		out[i] = &cp
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstallmentNo < out[j].InstallmentNo })
	return out, nil
}

func (r *memoryLoanRepo) NextUnpaidInstallment(_ context.Context, loanID string) (*domain.AmortizationEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var next *domain.AmortizationEntry
	for _, e := range r.entries[loanID] {
		if e.IsPaid {
			continue
		}
		if next == nil || e.InstallmentNo < next.InstallmentNo {
			next = e
		}
	}
	if next == nil {
		return nil, nil
	}
	cp := *next
	return &cp, nil
}

func (r *memoryLoanRepo) MarkInstallmentPaid(_ context.Context, entryID string, paidAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entries := range r.entries {
		for _, e := range entries {
			if e.ID == entryID {
				e.IsPaid = true
				t := paidAt
				e.PaidAt = &t
				return nil
			}
		}
	}
	return domain.ErrLoanNotFound
}

func (r *memoryLoanRepo) CreatePayment(_ context.Context, payment *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *payment
	r.payments[payment.LoanID] = append(r.payments[payment.LoanID], &cp)
	return nil
}

func (r *memoryLoanRepo) PaymentsByLoan(_ context.Context, loanID string) ([]*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	payments := r.payments[loanID]
	out := make([]*domain.Payment, len(payments))
	for i, p := range payments {
		cp := *p
		out[i] = &cp
	}
	return out, nil
}

func (r *memoryLoanRepo) NextSequence(_ context.Context, name string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sequences[name]++
	return r.sequences[name], nil
}

func (r *memoryLoanRepo) InTx(_ context.Context, fn func(repo domain.LoanRepository) error) error {
	return fn(r)
}

type memoryCollateralRepo struct {
	mu    sync.Mutex
	items map[string][]*domain.Collateral
}

func newMemoryCollateralRepo() *memoryCollateralRepo {
	return &memoryCollateralRepo{items: make(map[string][]*domain.Collateral)}
}

func (r *memoryCollateralRepo) Create(_ context.Context, c *domain.Collateral) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.items[c.LoanID] = append(r.items[c.LoanID], &cp)
	return nil
}

func (r *memoryCollateralRepo) FindByLoanID(_ context.Context, loanID string) ([]*domain.Collateral, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.Collateral(nil), r.items[loanID]...), nil
}

type memoryDocumentRepo struct {
	mu   sync.Mutex
	docs map[string]*domain.Document
}

func newMemoryDocumentRepo() *memoryDocumentRepo {
	return &memoryDocumentRepo{docs: make(map[string]*domain.Document)}
}

func (r *memoryDocumentRepo) Create(_ context.Context, doc *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *doc
	r.docs[doc.ID] = &cp
	return nil
}

func (r *memoryDocumentRepo) Update(_ context.Context, doc *domain.Document) error {
	return r.Create(context.Background(), doc)
}

func (r *memoryDocumentRepo) FindByID(_ context.Context, id string) (*domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	cp := *doc
	return &cp, nil
}

func (r *memoryDocumentRepo) FindByLoanID(_ context.Context, loanID string) ([]*domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Document
	for _, doc := range r.docs {
		if doc.LoanID == loanID {
			cp := *doc
			out = append(out, &cp)
		}
	}
	return out, nil
}

// recordingNotifier 记录发出的事件, 供断言
type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.LoanEvent
}

func (n *recordingNotifier) Notify(_ context.Context, event domain.LoanEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) Events() []domain.LoanEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.LoanEvent(nil), n.events...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
