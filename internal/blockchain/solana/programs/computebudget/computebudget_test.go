package computebudget

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitFromConsumed(t *testing.T) {
	tests := []struct {
		consumed uint64
		want     uint32
	}{
		{0, 1000},
		{500, 1000},
		{999, 1000},
		{1000, 1100},
		{1001, 1102},
		{2000, 2200},
		{150, 1000},
		{1_300_000, 1_400_000},
		{5_000_000, MaxComputeUnitLimit},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LimitFromConsumed(tt.consumed), "consumed=%d", tt.consumed)
	}
}

func TestLimitFromConsumedProperty(t *testing.T) {
	for r := uint64(0); r < 20_000; r += 7 {
		got := uint64(LimitFromConsumed(r))
		if r < 1000 {
			require.Equal(t, uint64(1000), got)
			continue
		}
		// ceil(r*1.1): наименьшее целое, не меньшее r*11/10
		require.GreaterOrEqual(t, got*10, r*11)
		require.Less(t, (got-1)*10, r*11)
	}
}

func TestBudgetInstructions(t *testing.T) {
	limit, err := NewSetComputeUnitLimit(2200)
	require.NoError(t, err)
	price, err := NewSetComputeUnitPrice(100_000)
	require.NoError(t, err)

	d, ok := Discriminator(limit)
	require.True(t, ok)
	assert.Equal(t, SetComputeUnitLimit, d)
	assert.True(t, IsLimitOrPrice(limit))
	assert.True(t, IsLimitOrPrice(price))

	data, err := limit.Data()
	require.NoError(t, err)
	units, err := ParseComputeUnitLimit(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(2200), units)

	data, err = price.Data()
	require.NoError(t, err)
	micro, err := ParseComputeUnitPrice(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000), micro)

	_, err = ParseComputeUnitPrice([]byte{SetComputeUnitLimit, 1, 0, 0, 0})
	assert.Error(t, err)
}

func TestDiscriminatorIgnoresOtherPrograms(t *testing.T) {
	from := solana.NewWallet().PublicKey()
	to := solana.NewWallet().PublicKey()
	transfer := system.NewTransferInstruction(1, from, to).Build()

	_, ok := Discriminator(transfer)
	assert.False(t, ok)
	assert.False(t, IsLimitOrPrice(transfer))
}
