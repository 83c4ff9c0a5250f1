package stock

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStockLevel(t *testing.T) {
	tenantID := uuid.New()
	itemID := uuid.New()

	t.Run("creates stock level successfully", func(t *testing.T) {
		level, err := NewStockLevel(tenantID, itemID, decimal.NewFromInt(50))

		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, level.ID)
		assert.Equal(t, tenantID, level.TenantID)
		assert.Equal(t, itemID, level.ItemID)
		assert.Equal(t, decimal.NewFromInt(50), level.Quantity)
		assert.True(t, level.MinQuantity.IsZero())
	})

	t.Run("creates stock level with zero initial quantity", func(t *testing.T) {
		level, err := NewStockLevel(tenantID, itemID, decimal.Zero)

		require.NoError(t, err)
		assert.True(t, level.Quantity.IsZero())
	})

	t.Run("fails with nil tenant ID", func(t *testing.T) {
		level, err := NewStockLevel(uuid.Nil, itemID, decimal.Zero)

		require.Error(t, err)
		assert.Nil(t, level)
		assert.Contains(t, err.Error(), "Tenant ID")
	})

	t.Run("fails with nil item ID", func(t *testing.T) {
		level, err := NewStockLevel(tenantID, uuid.Nil, decimal.Zero)

		require.Error(t, err)
		assert.Nil(t, level)
		assert.Contains(t, err.Error(), "Item ID")
	})

	t.Run("fails with negative initial quantity", func(t *testing.T) {
		level, err := NewStockLevel(tenantID, itemID, decimal.NewFromInt(-1))

		require.Error(t, err)
		assert.Nil(t, level)
		assert.Contains(t, err.Error(), "negative")
	})
}

func TestStockLevel_NextQuantity(t *testing.T) {
	t.Run("applies positive delta", func(t *testing.T) {
		level := createTestStockLevel(t, 100)

		next, clamped := level.NextQuantity(decimal.NewFromInt(25))

		assert.Equal(t, decimal.NewFromInt(125), next)
		assert.False(t, clamped)
	})

	t.Run("applies negative delta", func(t *testing.T) {
		level := createTestStockLevel(t, 100)

		next, clamped := level.NextQuantity(decimal.NewFromInt(-30))

		assert.Equal(t, decimal.NewFromInt(70), next)
		assert.False(t, clamped)
	})

	t.Run("clamps to zero when delta exceeds quantity", func(t *testing.T) {
		level := createTestStockLevel(t, 10)

		next, clamped := level.NextQuantity(decimal.NewFromInt(-25))

		assert.True(t, next.IsZero())
		assert.True(t, clamped)
	})

	t.Run("reaches exactly zero without clamping", func(t *testing.T) {
		level := createTestStockLevel(t, 10)

		next, clamped := level.NextQuantity(decimal.NewFromInt(-10))

		assert.True(t, next.IsZero())
		assert.False(t, clamped)
	})

	t.Run("handles fractional deltas", func(t *testing.T) {
		level := createTestStockLevel(t, 5)

		next, clamped := level.NextQuantity(decimal.NewFromFloat(-2.75))

		assert.Equal(t, "2.25", next.String())
		assert.False(t, clamped)
	})
}

func TestClampQuantity(t *testing.T) {
	t.Run("leaves non-negative quantity untouched", func(t *testing.T) {
		q, clamped := ClampQuantity(decimal.NewFromInt(7))

		assert.Equal(t, decimal.NewFromInt(7), q)
		assert.False(t, clamped)
	})

	t.Run("clamps negative quantity to zero", func(t *testing.T) {
		q, clamped := ClampQuantity(decimal.NewFromInt(-3))

		assert.True(t, q.IsZero())
		assert.True(t, clamped)
	})

	t.Run("zero is not considered clamped", func(t *testing.T) {
		q, clamped := ClampQuantity(decimal.Zero)

		assert.True(t, q.IsZero())
		assert.False(t, clamped)
	})
}

func TestStockLevel_CanFulfill(t *testing.T) {
	level := createTestStockLevel(t, 100)

	assert.True(t, level.CanFulfill(decimal.NewFromInt(50)))
	assert.True(t, level.CanFulfill(decimal.NewFromInt(100)))
	assert.False(t, level.CanFulfill(decimal.NewFromInt(101)))
}

func TestStockLevel_IsBelowMinimum(t *testing.T) {
	t.Run("returns true when below threshold", func(t *testing.T) {
		level := createTestStockLevel(t, 5)
		require.NoError(t, level.SetMinQuantity(decimal.NewFromInt(10)))

		assert.True(t, level.IsBelowMinimum())
	})

	t.Run("returns false when at threshold", func(t *testing.T) {
		level := createTestStockLevel(t, 10)
		require.NoError(t, level.SetMinQuantity(decimal.NewFromInt(10)))

		assert.False(t, level.IsBelowMinimum())
	})

	t.Run("returns false when threshold not set", func(t *testing.T) {
		level := createTestStockLevel(t, 0)

		assert.False(t, level.IsBelowMinimum())
	})
}

func TestStockLevel_SetMinQuantity(t *testing.T) {
	t.Run("sets threshold successfully", func(t *testing.T) {
		level := createTestStockLevel(t, 100)

		err := level.SetMinQuantity(decimal.NewFromInt(20))

		require.NoError(t, err)
		assert.Equal(t, decimal.NewFromInt(20), level.MinQuantity)
	})

	t.Run("fails with negative threshold", func(t *testing.T) {
		level := createTestStockLevel(t, 100)

		err := level.SetMinQuantity(decimal.NewFromInt(-5))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "negative")
	})
}

func createTestStockLevel(t *testing.T, quantity int64) *StockLevel {
	t.Helper()
	level, err := NewStockLevel(uuid.New(), uuid.New(), decimal.NewFromInt(quantity))
	require.NoError(t, err)
	return level
}
