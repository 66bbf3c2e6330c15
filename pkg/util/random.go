package util

import (
	"fmt"
	"math/rand"
	"strings"
)

// shortCodeAlphabet excludes 0/O, 1/I/L and vowels to keep codes readable
// and to avoid accidental words.
const shortCodeAlphabet = "23456789BCDFGHJKMNPQRSTVWXZ"

// GenerateShortCode returns a random code of the given length drawn from the
// short-code alphabet. Collision checking is the caller's job.
func GenerateShortCode(length int) string {
	if length <= 0 {
		length = 8
	}
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		b.WriteByte(shortCodeAlphabet[rand.Intn(len(shortCodeAlphabet))])
	}
	return b.String()
}

// GenerateCardNumber returns a 16-digit membership card number grouped in
// blocks of four.
func GenerateCardNumber() string {
	blocks := make([]string, 4)
	for i := range blocks {
		blocks[i] = fmt.Sprintf("%04d", rand.Intn(10000))
	}
	return strings.Join(blocks, "-")
}

// GenerateRandomNumber generates a random number between min and max (inclusive)
func GenerateRandomNumber(min, max int) int {
	return min + rand.Intn(max-min+1)
}
