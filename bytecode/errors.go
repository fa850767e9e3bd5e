package bytecode

import "errors"

var (
	ErrShortHeader     = errors.New("short header")
	ErrMalformed       = errors.New("malformed image")
	ErrInvalidOpcode   = errors.New("invalid opcode")
	ErrUnterminatedRun = errors.New("unterminated instruction run")
	ErrStringNotFound  = errors.New("string not found")
	ErrIDCollision     = errors.New("string id collision")
)
