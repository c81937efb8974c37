package otp

import (
	"crypto/rand"
	"math/big"
	"strconv"

	"github.com/pkg/errors"
)

// 6-digit code bounds, both inclusive.
const (
	codeMin = 100000
	codeMax = 999999
)

// generateCode returns a uniform-random 6-digit numeric code in [100000, 999999].
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", errors.Wrap(err, "generating otp code")
	}
	return strconv.FormatInt(codeMin+n.Int64(), 10), nil
}
