// internal/blockchain/solbc/transaction/signer.go
package transaction

import (
	"crypto/ed25519"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/solana-transfer/internal/blockchain"
)

// Sign подписывает сериализованные байты финализированного сообщения ключом плательщика.
// Ed25519 детерминирован: одинаковые байты сообщения дают одинаковую подпись.
func Sign(msg FinalizedMessage, key solana.PrivateKey) (SignedTransaction, error) {
	if err := checkKey("Sign", key); err != nil {
		return SignedTransaction{}, err
	}
	if !key.PublicKey().Equals(msg.feePayer) {
		return SignedTransaction{}, blockchain.NewFailure(blockchain.FailureSigning, "Sign",
			fmt.Errorf("%w: %s != %s", ErrPayerMismatch, key.PublicKey(), msg.feePayer))
	}

	var message solana.Message
	if err := message.UnmarshalWithDecoder(bin.NewBinDecoder(msg.message)); err != nil {
		return SignedTransaction{}, blockchain.NewFailure(blockchain.FailureBuild, "Sign",
			fmt.Errorf("failed to decode finalized message: %w", err))
	}
	// переводу нужна ровно одна подпись – плательщика
	if message.Header.NumRequiredSignatures != 1 || len(message.AccountKeys) == 0 || !message.AccountKeys[0].Equals(msg.feePayer) {
		return SignedTransaction{}, blockchain.NewFailure(blockchain.FailureBuild, "Sign", ErrMissingFeePayer)
	}

	signature, err := key.Sign(msg.message)
	if err != nil {
		return SignedTransaction{}, blockchain.NewFailure(blockchain.FailureSigning, "Sign", err)
	}

	return SignedTransaction{
		tx: &solana.Transaction{
			Signatures: []solana.Signature{signature},
			Message:    message,
		},
		anchor:     msg.anchor,
		programIDs: programIDs(msg.instructions),
	}, nil
}

func checkKey(op string, key solana.PrivateKey) error {
	if len(key) != ed25519.PrivateKeySize {
		return blockchain.NewFailure(blockchain.FailureSigning, op,
			fmt.Errorf("invalid private key length %d", len(key)))
	}
	return nil
}
