package domain

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// 浮点参考实现, 用于对照定点计算的结果
func refMonthlyPayment(principal, annualRate float64, termMonths int) float64 {
	r := annualRate / 100 / 12
	if r == 0 {
		return principal / float64(termMonths)
	}
	compound := math.Pow(1+r, float64(termMonths))
	return principal * r * compound / (compound - 1)
}

func TestMonthlyPayment(t *testing.T) {
	cases := []struct {
		name      string
		principal string
		rate      string
		term      int
	}{
		{"small short loan", "1200000", "12", 6},
		{"one year", "500000", "15", 12},
		{"three years", "2000000", "18", 36},
		{"five years low rate", "10000000", "9.5", 60},
		{"single installment", "100000", "12", 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := MonthlyPayment(d(tc.principal), d(tc.rate), tc.term)
			require.NoError(t, err)

			p, _ := d(tc.principal).Float64()
			r, _ := d(tc.rate).Float64()
			want := refMonthlyPayment(p, r, tc.term)

			gotF, _ := got.Float64()
			assert.InDelta(t, want, gotF, 0.01)
			assert.True(t, got.Equal(got.Round(2)), "payment must be rounded to 2dp")
		})
	}
}

func TestMonthlyPaymentZeroRate(t *testing.T) {
	got, err := MonthlyPayment(d("1200"), d("0"), 12)
	require.NoError(t, err)
	assert.True(t, got.Equal(d("100")), "zero rate degenerates to straight-line, got %s", got)
}

func TestMonthlyPaymentValidation(t *testing.T) {
	_, err := MonthlyPayment(d("0"), d("12"), 6)
	assert.ErrorIs(t, err, ErrInvalidPrincipal)

	_, err = MonthlyPayment(d("-100"), d("12"), 6)
	assert.ErrorIs(t, err, ErrInvalidPrincipal)

	_, err = MonthlyPayment(d("1000"), d("-1"), 6)
	assert.ErrorIs(t, err, ErrInvalidRate)

	_, err = MonthlyPayment(d("1000"), d("12"), 0)
	assert.ErrorIs(t, err, ErrInvalidTerm)

	_, err = MonthlyPayment(d("1000"), d("12"), -3)
	assert.ErrorIs(t, err, ErrInvalidTerm)
}

func TestGenerateScheduleShape(t *testing.T) {
	start := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	schedule, err := GenerateSchedule(d("1200000"), d("12"), 6, start)
	require.NoError(t, err)
	require.Len(t, schedule, 6)

	for i, entry := range schedule {
		assert.Equal(t, i+1, entry.InstallmentNo)
		assert.Equal(t, start.AddDate(0, i+1, 0), entry.DueDate)
		assert.True(t, entry.TotalDue.Equal(entry.PrincipalDue.Add(entry.InterestDue)),
			"installment %d: total must equal principal plus interest", i+1)
		assert.False(t, entry.PrincipalDue.IsNegative())
		assert.False(t, entry.InterestDue.IsNegative())
	}

	last := schedule[len(schedule)-1]
	assert.True(t, last.RemainingBalance.IsZero(),
		"final installment must clear the balance, got %s", last.RemainingBalance)
}

func TestGenerateSchedulePrincipalSumsToLoanAmount(t *testing.T) {
	cases := []struct {
		principal string
		rate      string
		term      int
	}{
		{"1200000", "12", 6},
		{"999999.99", "17.5", 24},
		{"50000", "0", 10},
		{"3141592.65", "11.11", 48},
	}

	for _, tc := range cases {
		start := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
		schedule, err := GenerateSchedule(d(tc.principal), d(tc.rate), tc.term, start)
		require.NoError(t, err)

		sum := decimal.Zero
		for _, entry := range schedule {
			sum = sum.Add(entry.PrincipalDue)
		}
		assert.True(t, sum.Equal(d(tc.principal)),
			"principal portions must sum to the loan amount exactly: %s vs %s", sum, tc.principal)
	}
}

func TestGenerateScheduleBalanceDecreases(t *testing.T) {
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	schedule, err := GenerateSchedule(d("750000"), d("14"), 18, start)
	require.NoError(t, err)

	prev := d("750000")
	for _, entry := range schedule {
		assert.True(t, entry.RemainingBalance.LessThan(prev),
			"balance must strictly decrease at installment %d", entry.InstallmentNo)
		prev = entry.RemainingBalance
	}
}

func TestGenerateScheduleZeroRate(t *testing.T) {
	start := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	schedule, err := GenerateSchedule(d("1200"), d("0"), 12, start)
	require.NoError(t, err)
	require.Len(t, schedule, 12)

	for _, entry := range schedule {
		assert.True(t, entry.InterestDue.IsZero())
		assert.True(t, entry.PrincipalDue.Equal(d("100")))
	}
}

func TestAddMonths(t *testing.T) {
	cases := []struct {
		name   string
		start  time.Time
		months int
		want   time.Time
	}{
		{
			"plain add",
			time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), 1,
			time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			"jan 31 clamps to feb 28",
			time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC), 1,
			time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			"jan 31 leap year clamps to feb 29",
			time.Date(2028, 1, 31, 0, 0, 0, 0, time.UTC), 1,
			time.Date(2028, 2, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			"mar 31 clamps to apr 30",
			time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), 1,
			time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC),
		},
		{
			"year rollover",
			time.Date(2026, 11, 30, 0, 0, 0, 0, time.UTC), 3,
			time.Date(2027, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			"clamp does not stick for later months",
			time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC), 2,
			time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, AddMonths(tc.start, tc.months))
		})
	}
}

func TestGenerateScheduleMonthEndDueDates(t *testing.T) {
	// 月末放款: 每期各自从起始日推算, 2 月收敛到月末, 3 月回到 31 号
	start := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	schedule, err := GenerateSchedule(d("300000"), d("12"), 3, start)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), schedule[0].DueDate)
	assert.Equal(t, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), schedule[1].DueDate)
	assert.Equal(t, time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC), schedule[2].DueDate)
}

func TestTotalInterest(t *testing.T) {
	total, err := TotalInterest(d("1200"), d("0"), 12)
	require.NoError(t, err)
	assert.True(t, total.IsZero())

	monthly, err := MonthlyPayment(d("500000"), d("15"), 12)
	require.NoError(t, err)
	total, err = TotalInterest(d("500000"), d("15"), 12)
	require.NoError(t, err)
	assert.True(t, total.Equal(monthly.Mul(decimal.NewFromInt(12)).Sub(d("500000")).Round(2)))
	assert.True(t, total.IsPositive())
}
