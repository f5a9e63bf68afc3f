package export

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-transfer/internal/blockchain"
	"github.com/rovshanmuradov/solana-transfer/internal/blockchain/solbc"
	"github.com/rovshanmuradov/solana-transfer/internal/blockchain/solbc/transaction"
	"github.com/rovshanmuradov/solana-transfer/internal/notify"
)

const (
	testSource      = "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T"
	testDestination = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
)

func TestJournalAppendWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history", "transfers.csv")
	journal := NewJournal(path, zap.NewNop())

	confirmed := notify.NewOutcomeEvent(testSource, testDestination, 5000, &transaction.Outcome{
		Signature:    "5sig",
		Status:       &transaction.Status{Signature: "5sig", Status: "finalized", Slot: 77},
		ComputeUnits: 1000,
		PriorityFee:  100_000,
	}, nil)
	diagnosed := notify.NewOutcomeEvent(testSource, testDestination, 5000, &transaction.Outcome{
		Signature: "6sig",
		Diagnosis: &solbc.Diagnosis{
			Kind:    blockchain.FailurePreflight,
			Message: "Transaction simulation failed",
			Detail:  "insufficient lamports for the transfer",
		},
	}, nil)
	failed := notify.NewOutcomeEvent(testSource, testDestination, 5000, nil,
		blockchain.NewFailure(blockchain.FailureTransport, "SubmitAndConfirm", errors.New("connection refused")))

	require.NoError(t, journal.Append(confirmed))
	require.NoError(t, journal.Append(diagnosed))
	require.NoError(t, journal.Append(failed))

	rows, err := ReadJournal(path)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.Len(t, row, len(CSVHeaders()))
	}

	assert.Equal(t, []string{notify.ResultConfirmed, "5sig"}, rows[0][1:3])
	assert.Equal(t, "finalized", rows[0][6])
	assert.Equal(t, "77", rows[0][7])
	assert.Equal(t, "1000", rows[0][8])
	assert.Equal(t, "100000", rows[0][9])

	assert.Equal(t, notify.ResultDiagnosed, rows[1][1])
	assert.Equal(t, "preflight", rows[1][10])
	assert.Equal(t, "insufficient lamports for the transfer", rows[1][12])

	assert.Equal(t, notify.ResultFailed, rows[2][1])
	assert.Equal(t, "transport", rows[2][10])
	assert.Contains(t, rows[2][11], "connection refused")
}

func TestReadJournalMissingFile(t *testing.T) {
	_, err := ReadJournal(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
