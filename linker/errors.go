package linker

import (
	"errors"
	"fmt"
)

var (
	ErrVersionMismatch = errors.New("writer version mismatch")
	ErrDuplicateSymbol = errors.New("symbol defined twice")
	ErrSymbolNotFound  = errors.New("symbol not found")
	ErrScanLimit       = errors.New("scan limit exceeded")
)

// SymbolError names the symbol a link failed on. Err is ErrDuplicateSymbol or ErrSymbolNotFound.
type SymbolError struct {
	Name string
	Err  error
}

func (e *SymbolError) Error() string {
	return fmt.Sprintf("%v: %q", e.Err, e.Name)
}

func (e *SymbolError) Unwrap() error {
	return e.Err
}

// SymbolName returns the symbol name carried by err, if any.
func SymbolName(err error) (string, bool) {
	var se *SymbolError
	if errors.As(err, &se) {
		return se.Name, true
	}
	return "", false
}
