package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweepable struct {
	name      string
	expired   int
	removed   int
	expireErr error
	calls     []string
	sweeps    atomic.Int32
}

func (f *fakeSweepable) Name() string { return f.name }

func (f *fakeSweepable) ExpireOld(ctx context.Context, olderThan time.Duration) (int, error) {
	f.calls = append(f.calls, "expire:"+olderThan.String())
	return f.expired, f.expireErr
}

func (f *fakeSweepable) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	f.calls = append(f.calls, "cleanup:"+olderThan.String())
	f.sweeps.Add(1)
	return f.removed, nil
}

func TestSweeper_SweepOnce(t *testing.T) {
	a := &fakeSweepable{name: "a", expired: 2, removed: 3}
	b := &fakeSweepable{name: "b", expireErr: errors.New("disk gone")}
	s := NewSweeper(SweepPolicy{ExpireAfter: time.Hour, Retention: 24 * time.Hour}, nil, a, b)

	results, err := s.SweepOnce(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "expire b: disk gone")
	assert.Equal(t, []SweepResult{
		{Queue: "a", Expired: 2, Removed: 3},
		{Queue: "b"},
	}, results)
	assert.Equal(t, []string{"expire:1h0m0s", "cleanup:24h0m0s"}, a.calls)
	assert.Equal(t, []string{"expire:1h0m0s", "cleanup:24h0m0s"}, b.calls, "a failed expire does not skip cleanup")
}

func TestSweeper_ZeroWindowsSkip(t *testing.T) {
	a := &fakeSweepable{name: "a"}
	s := NewSweeper(SweepPolicy{}, nil, a)

	_, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, a.calls)
}
