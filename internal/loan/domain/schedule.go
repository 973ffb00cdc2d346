package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
	one     = decimal.NewFromInt(1)
)

// ScheduleEntry 还款计划中的一期，由计算器生成，尚未落库
type ScheduleEntry struct {
	InstallmentNo    int             `json:"installment_no"`
	DueDate          time.Time       `json:"due_date"`
	PrincipalDue     decimal.Decimal `json:"principal_due"`
	InterestDue      decimal.Decimal `json:"interest_due"`
	TotalDue         decimal.Decimal `json:"total_due"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
}

// AmortizationEntry 已落库的还款计划行，只有还款引擎会修改 paid 标记
type AmortizationEntry struct {
	ID               string          `json:"id"`
	LoanID           string          `json:"loan_id"`
	InstallmentNo    int             `json:"installment_no"`
	DueDate          time.Time       `json:"due_date"`
	PrincipalDue     decimal.Decimal `json:"principal_due"`
	InterestDue      decimal.Decimal `json:"interest_due"`
	TotalDue         decimal.Decimal `json:"total_due"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	IsPaid           bool            `json:"is_paid"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
}

func validateTerms(principal, annualRate decimal.Decimal, termMonths int) error {
	if termMonths <= 0 {
		return ErrInvalidTerm
	}
	if annualRate.IsNegative() {
		return ErrInvalidRate
	}
	if !principal.IsPositive() {
		return ErrInvalidPrincipal
	}
	return nil
}

// monthlyRate 月利率 r = 年利率% / 100 / 12
func monthlyRate(annualRate decimal.Decimal) decimal.Decimal {
	return annualRate.Div(hundred).Div(twelve)
}

// MonthlyPayment 等额本息月供。零利率退化为本金平均摊还。
// 仅对最终结果做两位小数的四舍五入，中间项保留精度。
func MonthlyPayment(principal, annualRate decimal.Decimal, termMonths int) (decimal.Decimal, error) {
	if err := validateTerms(principal, annualRate, termMonths); err != nil {
		return decimal.Zero, err
	}

	r := monthlyRate(annualRate)
	if r.IsZero() {
		return principal.Div(decimal.NewFromInt(int64(termMonths))).Round(2), nil
	}

	// payment = P * r * (1+r)^n / ((1+r)^n - 1)
	compound := one.Add(r).Pow(decimal.NewFromInt(int64(termMonths)))
	payment := principal.Mul(r).Mul(compound).Div(compound.Sub(one))
	return payment.Round(2), nil
}

// TotalInterest 按月供推算的总利息。与计划表逐期利息之和可能相差几分钱，
// 两者的舍入路径是独立的，属于既定行为而非缺陷。
func TotalInterest(principal, annualRate decimal.Decimal, termMonths int) (decimal.Decimal, error) {
	monthly, err := MonthlyPayment(principal, annualRate, termMonths)
	if err != nil {
		return decimal.Zero, err
	}
	total := monthly.Mul(decimal.NewFromInt(int64(termMonths)))
	return total.Sub(principal).Round(2), nil
}

// GenerateSchedule 生成完整的还款计划，长度恰好等于期数。
// 末期本金以剩余余额覆盖，吸收全部舍入误差，保证计划表精确清零。
func GenerateSchedule(principal, annualRate decimal.Decimal, termMonths int, startDate time.Time) ([]ScheduleEntry, error) {
	monthly, err := MonthlyPayment(principal, annualRate, termMonths)
	if err != nil {
		return nil, err
	}

	r := monthlyRate(annualRate)
	balance := principal
	schedule := make([]ScheduleEntry, 0, termMonths)

	for i := 1; i <= termMonths; i++ {
		dueDate := AddMonths(startDate, i)

		interestDue := balance.Mul(r).Round(2)
		principalDue := monthly.Sub(interestDue).Round(2)

		// 末期用剩余余额结清
		if i == termMonths {
			principalDue = balance.Round(2)
		}

		totalDue := principalDue.Add(interestDue).Round(2)

		balance = balance.Sub(principalDue).Round(2)
		if balance.IsNegative() {
			balance = decimal.Zero
		}

		schedule = append(schedule, ScheduleEntry{
			InstallmentNo:    i,
			DueDate:          dueDate,
			PrincipalDue:     principalDue,
			InterestDue:      interestDue,
			TotalDue:         totalDue,
			RemainingBalance: balance,
		})
	}

	return schedule, nil
}

// AddMonths 按日历月推进日期，日号超出目标月时收敛到该月最后一天。
// 例如 1 月 31 日加一个月得到 2 月 28/29 日，而不是溢出到 3 月。
func AddMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	target := time.Date(year, month+time.Month(months), 1, hour, minute, sec, t.Nanosecond(), t.Location())
	lastDay := daysInMonth(target.Year(), target.Month())
	if day > lastDay {
		day = lastDay
	}
	return time.Date(target.Year(), target.Month(), day, hour, minute, sec, t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	// 下月零日即本月最后一天
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
