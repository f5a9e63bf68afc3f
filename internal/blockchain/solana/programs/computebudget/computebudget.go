// internal/blockchain/solana/programs/computebudget/computebudget.go
package computebudget

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	cb "github.com/gagliardetto/solana-go/programs/compute-budget"
)

var ProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

const (
	RequestUnitsDeprecated uint8 = 0
	RequestHeapFrame       uint8 = 1
	SetComputeUnitLimit    uint8 = 2
	SetComputeUnitPrice    uint8 = 3
)

// Границы лимита compute units
const (
	MinComputeUnitLimit uint32 = 1_000
	MaxComputeUnitLimit uint32 = 1_400_000
)

// Запас поверх измеренного потребления: limit = ceil(consumed * 11 / 10).
const (
	marginNumerator   = 11
	marginDenominator = 10
)

// LimitFromConsumed переводит измеренное симуляцией потребление в лимит для транзакции.
// Ниже MinComputeUnitLimit лимит фиксируется на минимуме, иначе добавляется 10% с
// округлением вверх; результат не превышает MaxComputeUnitLimit.
func LimitFromConsumed(consumed uint64) uint32 {
	if consumed < uint64(MinComputeUnitLimit) {
		return MinComputeUnitLimit
	}
	limit := (consumed*marginNumerator + marginDenominator - 1) / marginDenominator
	if limit > uint64(MaxComputeUnitLimit) {
		return MaxComputeUnitLimit
	}
	return uint32(limit)
}

// NewSetComputeUnitLimit создает инструкцию для установки лимита compute units
func NewSetComputeUnitLimit(units uint32) (solana.Instruction, error) {
	ix, err := cb.NewSetComputeUnitLimitInstruction(units).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("failed to build compute unit limit instruction: %w", err)
	}
	return ix, nil
}

// NewSetComputeUnitPrice создает инструкцию для установки цены compute unit (micro-lamports)
func NewSetComputeUnitPrice(microLamports uint64) (solana.Instruction, error) {
	ix, err := cb.NewSetComputeUnitPriceInstruction(microLamports).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("failed to build compute unit price instruction: %w", err)
	}
	return ix, nil
}

// Discriminator returns the compute budget instruction type of ix.
// ok is false when ix does not target the compute budget program.
func Discriminator(ix solana.Instruction) (uint8, bool) {
	if !ix.ProgramID().Equals(ProgramID) {
		return 0, false
	}
	data, err := ix.Data()
	if err != nil || len(data) == 0 {
		return 0, false
	}
	return data[0], true
}

// IsLimitOrPrice reports whether ix sets the compute unit limit or price.
func IsLimitOrPrice(ix solana.Instruction) bool {
	d, ok := Discriminator(ix)
	return ok && (d == SetComputeUnitLimit || d == SetComputeUnitPrice)
}

// ParseComputeUnitLimit decodes the data of a SetComputeUnitLimit instruction.
func ParseComputeUnitLimit(data []byte) (uint32, error) {
	return parse(SetComputeUnitLimit, data, binary.LittleEndian.Uint32)
}

// ParseComputeUnitPrice decodes the data of a SetComputeUnitPrice instruction.
func ParseComputeUnitPrice(data []byte) (uint64, error) {
	return parse(SetComputeUnitPrice, data, binary.LittleEndian.Uint64)
}

func parse[V ~uint32 | ~uint64](ins uint8, data []byte, decoder func([]byte) V) (V, error) {
	// байт инструкции + значение
	if len(data) != 1+binary.Size(V(0)) {
		return 0, fmt.Errorf("invalid length: %d", len(data))
	}
	if data[0] != ins {
		return 0, fmt.Errorf("not compute budget instruction %d: %d", ins, data[0])
	}
	return decoder(data[1:]), nil
}
