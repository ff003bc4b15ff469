package fx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/simaogato/portfolio-engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockFXRateRepository is a mock implementation of FXRateRepository for testing
type MockFXRateRepository struct {
	mock.Mock
}

func (m *MockFXRateRepository) LatestOnOrBefore(ctx context.Context, from, to string, date time.Time) (*domain.FXRate, error) {
	args := m.Called(ctx, from, to, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FXRate), args.Error(1)
}

func (m *MockFXRateRepository) Upsert(ctx context.Context, rate *domain.FXRate) error {
	return m.Called(ctx, rate).Error(0)
}

func TestRate_SameCurrency(t *testing.T) {
	repo := new(MockFXRateRepository)
	resolver := NewResolver(repo)

	rate, ok, err := resolver.Rate(context.Background(), "USD", "USD", time.Now())

	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, rate.Equal(decimal.NewFromInt(1)))
	repo.AssertNotCalled(t, "LatestOnOrBefore")
}

func TestRate_LatestOnOrBefore(t *testing.T) {
	ctx := context.Background()
	repo := new(MockFXRateRepository)
	resolver := NewResolver(repo)

	asOf := time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)
	repo.On("LatestOnOrBefore", ctx, "EUR", "USD", domain.DateOf(asOf)).
		Return(&domain.FXRate{FromCurrency: "EUR", ToCurrency: "USD", Rate: decimal.RequireFromString("1.0850")}, nil)

	rate, ok, err := resolver.Rate(ctx, "EUR", "USD", asOf)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1.085", rate.String())
	repo.AssertExpectations(t)
}

func TestRate_Missing(t *testing.T) {
	ctx := context.Background()
	repo := new(MockFXRateRepository)
	resolver := NewResolver(repo)

	repo.On("LatestOnOrBefore", ctx, "VND", "USD", mock.Anything).Return(nil, domain.ErrNotFound)

	_, ok, err := resolver.Rate(ctx, "VND", "USD", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = resolver.MustRate(ctx, "VND", "USD", time.Now())
	assert.ErrorIs(t, err, domain.ErrMissingFXRate)
	assert.True(t, domain.IsDomainRejection(err))
}

func TestRate_StorageFailure(t *testing.T) {
	ctx := context.Background()
	repo := new(MockFXRateRepository)
	resolver := NewResolver(repo)

	repo.On("LatestOnOrBefore", ctx, "EUR", "USD", mock.Anything).Return(nil, errors.New("connection reset"))

	_, err := resolver.MustRate(ctx, "EUR", "USD", time.Now())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrMissingFXRate)
	assert.Contains(t, err.Error(), "connection reset")
}
