// internal/blockchain/solbc/program_errors.go
package solbc

import "github.com/gagliardetto/solana-go"

// ProgramErrorRegistry maps a program's custom error codes to messages.
type ProgramErrorRegistry interface {
	Lookup(programID solana.PublicKey, code uint32) (string, bool)
}

// ProgramErrorTables is a static registry keyed by program id.
type ProgramErrorTables map[solana.PublicKey]map[uint32]string

func (t ProgramErrorTables) Lookup(programID solana.PublicKey, code uint32) (string, bool) {
	table, ok := t[programID]
	if !ok {
		return "", false
	}
	msg, ok := table[code]
	return msg, ok
}

// Коды ошибок System Program (SystemError в рантайме).
var systemProgramErrors = map[uint32]string{
	0: "an account with the same address already exists",
	1: "account does not have enough SOL to perform the operation",
	2: "cannot assign account to this program id",
	3: "cannot allocate account data of this length",
	4: "length of requested seed is too long",
	5: "provided address does not match addressed derived from seed",
	6: "advancing stored nonce requires a populated RecentBlockhashes sysvar",
	7: "stored nonce is still in recent_blockhashes",
	8: "specified nonce does not match stored nonce",
}

// DefaultProgramErrors returns the registry with every table this module knows.
func DefaultProgramErrors() ProgramErrorTables {
	return ProgramErrorTables{
		solana.SystemProgramID: systemProgramErrors,
	}
}
