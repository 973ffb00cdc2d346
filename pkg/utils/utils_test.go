package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenIDStringUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := GenIDString()
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestRetryStopsOnSuccess(t *testing.T) {
	calls := 0
	err := Retry(5, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryReturnsLastError(t *testing.T) {
	calls := 0
	wantErr := errors.New("still down")
	err := Retry(3, time.Millisecond, func() error {
		calls++
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 3, calls)
}

func TestPaginationNormalizesInput(t *testing.T) {
	cases := []struct {
		name               string
		page, pageSize     int
		total              int64
		wantPage, wantSize int
		wantPages          int64
	}{
		{"defaults", 0, 0, 95, 1, 10, 10},
		{"negative page", -3, 20, 95, 1, 20, 5},
		{"size capped", 1, 5000, 95, 1, 1000, 1},
		{"exact pages", 2, 25, 100, 2, 25, 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewPagination(tc.page, tc.pageSize, tc.total)
			assert.Equal(t, tc.wantPage, p.Page)
			assert.Equal(t, tc.wantSize, p.PageSize)
			assert.Equal(t, tc.wantPages, p.Pages)
		})
	}
}

func TestPaginationOffset(t *testing.T) {
	p := NewPagination(3, 25, 100)
	assert.Equal(t, 50, p.Offset())
	assert.Equal(t, 25, p.Limit())
}
