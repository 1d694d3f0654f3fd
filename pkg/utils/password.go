package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

var passwordBases = []string{"Alto-Sparrow", "Cedar-Stream", "Amber-Cloud", "Maple-Nova", "Indigo-Field", "Quartz-Sky"}

// GenerateTempPassword returns "<Base>-<d><d><d><L>" with digits 0-8 and an upper-case letter
func GenerateTempPassword() (string, error) {
	base, err := randIntn(len(passwordBases))
	if err != nil {
		return "", err
	}

	digits := make([]int, 3)
	for i := range digits {
		if digits[i], err = randIntn(9); err != nil {
			return "", err
		}
	}

	letter, err := randIntn(26)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s-%d%d%d%c", passwordBases[base], digits[0], digits[1], digits[2], 'A'+rune(letter)), nil
}

func randIntn(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("failed to read random number: %w", err)
	}
	return int(v.Int64()), nil
}
