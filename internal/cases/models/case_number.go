package models

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"time"
)

const caseNumberAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

var caseNumberPattern = regexp.MustCompile(`^MC\d{6}[0-9A-Z]{3}$`)

// IsCaseNumber reports whether s has the MC + 6 digits + 3 base-36 shape.
func IsCaseNumber(s string) bool {
	return caseNumberPattern.MatchString(s)
}

// RandomCaseNumbers generates case numbers from the millisecond clock and a
// cryptographic random suffix.
type RandomCaseNumbers struct{}

// Next returns "MC" + the last six digits of now in Unix milliseconds + three
// random base-36 characters.
func (RandomCaseNumbers) Next(now time.Time) (string, error) {
	suffix := make([]byte, 3)
	max := big.NewInt(int64(len(caseNumberAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate case number: %w", err)
		}
		suffix[i] = caseNumberAlphabet[n.Int64()]
	}
	return fmt.Sprintf("MC%06d%s", now.UnixMilli()%1_000_000, suffix), nil
}
