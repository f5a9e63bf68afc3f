// internal/blockchain/errors.go
package blockchain

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// FailureKind is the closed set of ways the submission pipeline can fail.
type FailureKind int

const (
	FailureUnknown FailureKind = iota
	FailureBuild
	FailureSimulation
	FailureSigning
	FailurePreflight
	FailureExpired
	FailureTransport
	FailureExecution
)

var (
	ErrBuild      = errors.New("invalid transaction message")
	ErrSimulation = errors.New("transaction simulation failed")
	ErrSigning    = errors.New("signing failed")
	ErrPreflight  = errors.New("preflight check rejected transaction")
	ErrExpired    = errors.New("transaction validity window elapsed")
	ErrTransport  = errors.New("transport failure")
	ErrExecution  = errors.New("transaction failed on-chain")
)

func (k FailureKind) String() string {
	switch k {
	case FailureBuild:
		return "build"
	case FailureSimulation:
		return "simulation"
	case FailureSigning:
		return "signing"
	case FailurePreflight:
		return "preflight"
	case FailureExpired:
		return "expired"
	case FailureTransport:
		return "transport"
	case FailureExecution:
		return "execution"
	default:
		return "unknown"
	}
}

func (k FailureKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k FailureKind) sentinel() error {
	switch k {
	case FailureBuild:
		return ErrBuild
	case FailureSimulation:
		return ErrSimulation
	case FailureSigning:
		return ErrSigning
	case FailurePreflight:
		return ErrPreflight
	case FailureExpired:
		return ErrExpired
	case FailureTransport:
		return ErrTransport
	case FailureExecution:
		return ErrExecution
	default:
		return nil
	}
}

// Failure is a pipeline error tagged with its kind. errors.Is matches it against the
// sentinel of its kind as well as anything in the wrapped chain.
type Failure struct {
	Kind FailureKind
	Op   string
	Err  error

	// Preflight is set only for FailurePreflight.
	Preflight *PreflightFailure
	// Simulation is set only for FailureSimulation when the node returned a result.
	Simulation *SimulationResult
}

// NewFailure wraps err with the given kind and operation name.
func NewFailure(kind FailureKind, op string, err error) *Failure {
	return &Failure{Kind: kind, Op: op, Err: err}
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %v", f.Op, f.Kind.sentinel())
	}
	return fmt.Sprintf("%s: %v", f.Op, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func (f *Failure) Is(target error) bool {
	s := f.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the kind of the first Failure in err's chain.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return FailureUnknown
}

// PreflightFailure describes a transaction rejected by the node's dry-run simulation.
type PreflightFailure struct {
	Code          int
	Message       string
	Logs          []string
	UnitsConsumed *uint64
	// Cause is nil when the node did not report a transaction error.
	Cause *TransactionError
}

// TransactionError is the decoded form of the `err` value the node reports for a
// failed simulation or execution.
type TransactionError struct {
	InstructionIndex *int
	CustomCode       *uint32
	Name             string
	Raw              interface{}
}

func (e *TransactionError) Error() string {
	if e.InstructionIndex != nil {
		if e.CustomCode != nil {
			return fmt.Sprintf("Error processing Instruction %d: custom program error: 0x%x", *e.InstructionIndex, *e.CustomCode)
		}
		return fmt.Sprintf("Error processing Instruction %d: %s", *e.InstructionIndex, e.Name)
	}
	if e.Name != "" {
		return e.Name
	}
	return fmt.Sprint(e.Raw)
}

// IsCustom reports whether the error is a program-defined error code.
func (e *TransactionError) IsCustom() bool {
	return e.InstructionIndex != nil && e.CustomCode != nil
}

// ParseTransactionError decodes the node's `err` value. Shapes handled:
//
//	"BlockhashNotFound"
//	{"InstructionError": [2, {"Custom": 1}]}
//	{"InstructionError": [0, "InsufficientFunds"]}
//	{"InsufficientFundsForRent": {"account_index": 0}}
func ParseTransactionError(v interface{}) *TransactionError {
	if v == nil {
		return nil
	}
	te := &TransactionError{Raw: v}

	switch val := v.(type) {
	case string:
		te.Name = val
	case map[string]interface{}:
		if ie, ok := val["InstructionError"].([]interface{}); ok && len(ie) == 2 {
			if idx, ok := toInt(ie[0]); ok {
				te.InstructionIndex = &idx
			}
			switch inner := ie[1].(type) {
			case string:
				te.Name = inner
			case map[string]interface{}:
				if code, ok := toInt(inner["Custom"]); ok && code >= 0 {
					c := uint32(code)
					te.CustomCode = &c
					te.Name = "Custom"
				} else {
					te.Name = firstKey(inner)
				}
			}
			return te
		}
		te.Name = firstKey(val)
	}
	return te
}

func firstKey(m map[string]interface{}) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case json.Number:
		i, err := strconv.Atoi(n.String())
		return i, err == nil
	default:
		return 0, false
	}
}
