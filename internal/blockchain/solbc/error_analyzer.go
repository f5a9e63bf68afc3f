// internal/blockchain/solbc/error_analyzer.go
package solbc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-transfer/internal/blockchain"
)

// Код JSON-RPC, которым узел отвечает на отклонённую preflight-симуляцию.
const preflightFailureCode = -32002

const simulationFailedMessage = "Transaction simulation failed"

// AnchorError represents an error from Anchor framework
type AnchorError struct {
	Code int    `json:"code"`
	Name string `json:"name"`
	Msg  string `json:"msg"`
}

// Diagnosis is the human-readable result of classifying a preflight failure.
type Diagnosis struct {
	Kind    blockchain.FailureKind `json:"kind"`
	Message string                 `json:"message"`

	// Detail is the decoded program error, the cause's raw message, or empty when there is no cause.
	Detail        string       `json:"detail"`
	Decoded       bool         `json:"decoded"`
	ProgramID     string       `json:"program_id,omitempty"`
	Logs          []string     `json:"logs,omitempty"`
	UnitsConsumed *uint64      `json:"units_consumed,omitempty"`
	Anchor        *AnchorError `json:"anchor_error,omitempty"`
}

// ErrorAnalyzer provides methods to analyze Solana transaction errors
type ErrorAnalyzer struct {
	logger   *zap.Logger
	programs ProgramErrorRegistry
}

// NewErrorAnalyzer creates a new ErrorAnalyzer instance
func NewErrorAnalyzer(logger *zap.Logger, programs ProgramErrorRegistry) *ErrorAnalyzer {
	if programs == nil {
		programs = DefaultProgramErrors()
	}
	return &ErrorAnalyzer{
		logger:   logger.Named("error-analyzer"),
		programs: programs,
	}
}

// AsPreflightFailure извлекает PreflightFailure из ошибки отправки.
// Возвращает false для любых других ошибок (сеть, таймаут, неверный запрос).
func (ea *ErrorAnalyzer) AsPreflightFailure(err error) (*blockchain.PreflightFailure, bool) {
	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		return nil, false
	}
	if rpcErr.Code != preflightFailureCode && !strings.Contains(rpcErr.Message, simulationFailedMessage) {
		return nil, false
	}

	pf := &blockchain.PreflightFailure{
		Code:    rpcErr.Code,
		Message: rpcErr.Message,
	}

	data, ok := rpcErr.Data.(map[string]interface{})
	if !ok {
		return pf, true
	}

	if logs, ok := data["logs"].([]interface{}); ok {
		for _, entry := range logs {
			if s, ok := entry.(string); ok {
				pf.Logs = append(pf.Logs, s)
			}
		}
	}

	if units, ok := toUint64(data["unitsConsumed"]); ok {
		pf.UnitsConsumed = &units
	}

	pf.Cause = blockchain.ParseTransactionError(data["err"])
	return pf, true
}

// Diagnose декодирует причину preflight-ошибки. programIDs – программы инструкций
// сообщения в порядке их следования, включая добавленные инструкции бюджета.
func (ea *ErrorAnalyzer) Diagnose(pf *blockchain.PreflightFailure, programIDs []solana.PublicKey) Diagnosis {
	d := Diagnosis{
		Kind:          blockchain.FailurePreflight,
		Message:       pf.Message,
		Logs:          pf.Logs,
		UnitsConsumed: pf.UnitsConsumed,
	}

	for _, line := range pf.Logs {
		if strings.Contains(line, "AnchorError occurred") {
			anchorErr := ea.parseAnchorErrorLog(line)
			d.Anchor = &anchorErr
			ea.logger.Warn("Anchor error detected",
				zap.Int("code", anchorErr.Code),
				zap.String("name", anchorErr.Name),
				zap.String("message", anchorErr.Msg))
			break
		}
	}

	if pf.Cause == nil {
		return d
	}
	d.Detail = pf.Cause.Error()

	if !pf.Cause.IsCustom() {
		return d
	}
	idx := *pf.Cause.InstructionIndex
	if idx < 0 || idx >= len(programIDs) {
		return d
	}

	programID := programIDs[idx]
	if msg, ok := ea.programs.Lookup(programID, *pf.Cause.CustomCode); ok {
		d.Detail = msg
		d.Decoded = true
		d.ProgramID = programID.String()
	}
	return d
}

// parseAnchorErrorLog parses an Anchor error log string
// Example: "Program log: AnchorError occurred. Error Code: InstructionFallbackNotFound. Error Number: 101. Error Message: Fallback functions are not supported."
func (ea *ErrorAnalyzer) parseAnchorErrorLog(logStr string) AnchorError {
	result := AnchorError{}

	if _, after, ok := strings.Cut(logStr, "Error Number:"); ok {
		num, _, _ := strings.Cut(after, ".")
		fmt.Sscanf(strings.TrimSpace(num), "%d", &result.Code)
	}

	if _, after, ok := strings.Cut(logStr, "Error Code:"); ok {
		name, _, _ := strings.Cut(after, ".")
		result.Name = strings.TrimSpace(name)
	}

	if _, after, ok := strings.Cut(logStr, "Error Message:"); ok {
		result.Msg = strings.TrimSuffix(strings.TrimSpace(after), ".")
	}

	return result
}

// FormatDiagnosis formats the diagnosis for logging or display
func FormatDiagnosis(d Diagnosis) string {
	jsonBytes, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error formatting diagnosis: %v", err)
	}
	return string(jsonBytes)
}

func toUint64(v interface{}) (uint64, bool) {
	switch n := v.(type) {
	case float64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case int:
		return uint64(n), n >= 0
	case int64:
		return uint64(n), n >= 0
	case uint64:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return uint64(i), err == nil && i >= 0
	default:
		return 0, false
	}
}
