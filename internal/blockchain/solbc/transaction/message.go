// internal/blockchain/solbc/transaction/message.go
package transaction

import (
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/solana-transfer/internal/blockchain"
)

// Этапы сообщения: UnsignedMessage -> EstimatedMessage -> FinalizedMessage -> SignedTransaction.
// Каждый этап создается только функцией предыдущего шага, поэтому подписать
// неоцененное сообщение невозможно.

// UnsignedMessage – инструкции, плательщик и якорь валидности без бюджета вычислений.
type UnsignedMessage struct {
	instructions []solana.Instruction
	feePayer     solana.PublicKey
	anchor       blockchain.ValidityAnchor
}

func (m UnsignedMessage) Instructions() []solana.Instruction {
	return cloneInstructions(m.instructions)
}

func (m UnsignedMessage) FeePayer() solana.PublicKey {
	return m.feePayer
}

func (m UnsignedMessage) Anchor() blockchain.ValidityAnchor {
	return m.anchor
}

// EstimatedMessage carries the compute unit limit derived from simulation.
type EstimatedMessage struct {
	UnsignedMessage
	computeUnits  uint32
	unitsConsumed uint64
}

// ComputeUnits is the limit that will be attached to the message.
func (m EstimatedMessage) ComputeUnits() uint32 {
	return m.computeUnits
}

// UnitsConsumed is the raw value reported by the simulation.
func (m EstimatedMessage) UnitsConsumed() uint64 {
	return m.unitsConsumed
}

// FinalizedMessage – сообщение с инструкциями бюджета и обновленным якорем, готовое к подписи.
type FinalizedMessage struct {
	instructions  []solana.Instruction
	feePayer      solana.PublicKey
	anchor        blockchain.ValidityAnchor
	computeUnits  uint32
	microLamports uint64
	message       []byte
}

func (m FinalizedMessage) Instructions() []solana.Instruction {
	return cloneInstructions(m.instructions)
}

func (m FinalizedMessage) FeePayer() solana.PublicKey {
	return m.feePayer
}

func (m FinalizedMessage) Anchor() blockchain.ValidityAnchor {
	return m.anchor
}

func (m FinalizedMessage) ComputeUnits() uint32 {
	return m.computeUnits
}

// PriorityFee is the compute unit price in micro-lamports.
func (m FinalizedMessage) PriorityFee() uint64 {
	return m.microLamports
}

// MessageBytes returns the serialized message the signer signs.
func (m FinalizedMessage) MessageBytes() []byte {
	out := make([]byte, len(m.message))
	copy(out, m.message)
	return out
}

// ProgramIDs lists the program of every instruction in message order.
func (m FinalizedMessage) ProgramIDs() []solana.PublicKey {
	return programIDs(m.instructions)
}

// SignedTransaction – подписанная транзакция, готовая к отправке.
type SignedTransaction struct {
	tx         *solana.Transaction
	anchor     blockchain.ValidityAnchor
	programIDs []solana.PublicKey
}

// Signature returns the fee payer's signature, which identifies the transaction.
func (t SignedTransaction) Signature() solana.Signature {
	return t.tx.Signatures[0]
}

func (t SignedTransaction) Anchor() blockchain.ValidityAnchor {
	return t.anchor
}

func (t SignedTransaction) ProgramIDs() []solana.PublicKey {
	out := make([]solana.PublicKey, len(t.programIDs))
	copy(out, t.programIDs)
	return out
}

// Wire сериализует транзакцию в формат, принимаемый узлом.
func (t SignedTransaction) Wire() ([]byte, error) {
	return t.tx.MarshalBinary()
}

// Base64 returns the wire bytes encoded as base64.
func (t SignedTransaction) Base64() (string, error) {
	return t.tx.ToBase64()
}

func (t SignedTransaction) transaction() *solana.Transaction {
	return t.tx
}

func compile(instructions []solana.Instruction, feePayer solana.PublicKey, anchor blockchain.ValidityAnchor) (*solana.Transaction, error) {
	return solana.NewTransaction(instructions, anchor.Blockhash, solana.TransactionPayer(feePayer))
}

func cloneInstructions(in []solana.Instruction) []solana.Instruction {
	out := make([]solana.Instruction, len(in))
	copy(out, in)
	return out
}

func programIDs(instructions []solana.Instruction) []solana.PublicKey {
	ids := make([]solana.PublicKey, 0, len(instructions))
	for _, ix := range instructions {
		ids = append(ids, ix.ProgramID())
	}
	return ids
}
