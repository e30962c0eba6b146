package room

import (
	"math/rand/v2"
	"strings"
)

const (
	// CodeLength is the number of characters in a room code.
	CodeLength = 4
	// CodeAlphabet is upper-cased base 36.
	CodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// CodeGenerator produces candidate room codes.
type CodeGenerator func() string

// RandomCode draws CodeLength characters from CodeAlphabet.
func RandomCode() string {
	code := make([]byte, CodeLength)
	for i := range code {
		code[i] = CodeAlphabet[rand.IntN(len(CodeAlphabet))]
	}
	return string(code)
}

// NormalizeCode upper-cases and trims user input before lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidCode reports whether code has the right length and alphabet.
func ValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(CodeAlphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}
