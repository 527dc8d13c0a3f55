package portfolio

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Symbol is a validated uppercase ticker. Build one with ParseSymbol at
// the request boundary; everything past the boundary trusts the value.
type Symbol string

// Tickers are 1-5 chars, leading letter, dots allowed for class shares
// like BRK.B.
var symbolPattern = regexp.MustCompile(`^[A-Z][A-Z0-9.]{0,4}$`)

var ErrInvalidSymbol = errors.New("invalid symbol")

func ParseSymbol(raw string) (Symbol, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if !symbolPattern.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, raw)
	}
	return Symbol(s), nil
}

func (s Symbol) String() string { return string(s) }
