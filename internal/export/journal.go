package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-transfer/internal/notify"
)

// Journal дописывает итоги переводов в CSV-файл истории.
type Journal struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewJournal creates a journal writing to path. The file is created on first Append.
func NewJournal(path string, logger *zap.Logger) *Journal {
	return &Journal{
		path:   path,
		logger: logger.Named("journal"),
	}
}

// Append writes one row, adding the header when the file is new or empty.
func (j *Journal) Append(event *notify.OutcomeEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if dir := filepath.Dir(j.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat journal: %w", err)
	}

	writer := csv.NewWriter(file)
	if info.Size() == 0 {
		if err := writer.Write(CSVHeaders()); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}
	if err := writer.Write(Record(event)); err != nil {
		return fmt.Errorf("failed to write outcome: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush journal: %w", err)
	}

	j.logger.Debug("Outcome appended to journal",
		zap.String("path", j.path),
		zap.String("result", event.Result))
	return nil
}

// ReadJournal читает все строки истории без заголовка.
func ReadJournal(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[1:], nil
}

// Record converts an outcome event to a CSV row in CSVHeaders order.
func Record(event *notify.OutcomeEvent) []string {
	var message, detail string
	if event.Diagnosis != nil {
		message = event.Diagnosis.Message
		detail = event.Diagnosis.Detail
	}
	if event.Error != "" {
		message = event.Error
	}

	return []string{
		event.Timestamp.Format(time.RFC3339),
		event.Result,
		event.Signature,
		event.Source,
		event.Destination,
		formatUint64(event.AmountLamports),
		event.Commitment,
		formatUint64(event.Slot),
		strconv.FormatUint(uint64(event.ComputeUnits), 10),
		formatUint64(event.PriorityFee),
		event.ErrorKind,
		message,
		detail,
	}
}

// CSVHeaders returns the header row for journal files
func CSVHeaders() []string {
	return []string{
		"timestamp",
		"result",
		"signature",
		"source",
		"destination",
		"amount_lamports",
		"commitment",
		"slot",
		"compute_units",
		"priority_fee_micro_lamports",
		"error_kind",
		"message",
		"detail",
	}
}

func formatUint64(v uint64) string {
	return strconv.FormatUint(v, 10)
}
