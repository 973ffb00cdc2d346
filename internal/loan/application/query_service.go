package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wyfcoding/microfinance/internal/loan/domain"
	"github.com/wyfcoding/microfinance/pkg/cache"
)

const scheduleCacheTTL = 10 * time.Minute

// ScheduleQueryService 还款计划读取服务。
// 计划表在审批后基本不变, 适合短周期缓存; 重新审批或还款后由调用方失效。
type ScheduleQueryService struct {
	loans  domain.LoanRepository
	cache  *cache.RedisCache
	logger *slog.Logger
}

func NewScheduleQueryService(loans domain.LoanRepository, c *cache.RedisCache, logger *slog.Logger) *ScheduleQueryService {
	return &ScheduleQueryService{loans: loans, cache: c, logger: logger}
}

func scheduleCacheKey(loanID string) string {
	return "loan:schedule:" + loanID
}

// Schedule 返回贷款的还款计划, 按期数升序。优先走缓存, 缓存故障降级直查库。
func (s *ScheduleQueryService) Schedule(ctx context.Context, loanID string) ([]*domain.AmortizationEntry, error) {
	if _, err := s.loans.FindByID(ctx, loanID); err != nil {
		return nil, err
	}

	key := scheduleCacheKey(loanID)
	if s.cache != nil {
		var cached []*domain.AmortizationEntry
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.logger.WarnContext(ctx, "schedule cache read failed", "loan_id", loanID, "error", err)
		} else if hit {
			return cached, nil
		}
	}

	entries, err := s.loans.ScheduleByLoan(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}

	if s.cache != nil && len(entries) > 0 {
		if err := s.cache.SetJSON(ctx, key, entries, scheduleCacheTTL); err != nil {
			s.logger.WarnContext(ctx, "schedule cache write failed", "loan_id", loanID, "error", err)
		}
	}
	return entries, nil
}

// Invalidate 清除计划缓存。重新审批与还款勾销后调用。
func (s *ScheduleQueryService) Invalidate(ctx context.Context, loanID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, scheduleCacheKey(loanID)); err != nil {
		s.logger.WarnContext(ctx, "schedule cache invalidation failed", "loan_id", loanID, "error", err)
	}
}

// Preview 不落库的还款计划试算, 供前台在申请阶段展示
func (s *ScheduleQueryService) Preview(ctx context.Context, cmd CreateLoanCommand) ([]domain.ScheduleEntry, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	return domain.GenerateSchedule(cmd.Principal, cmd.AnnualRate, cmd.TermMonths, start)
}
