package rooms

import (
	"crypto/rand"

	"roomdrop/internal/domain"
)

// codeAlphabet omits characters that are easy to misread when a code is
// shared verbally or copied by hand (0/O, 1/I/L).
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const minCodeLength = 6

// generateCode produces a random shareable room code of the given length.
func generateCode(length int) (domain.RoomCode, error) {
	if length < minCodeLength {
		length = minCodeLength
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return domain.RoomCode(buf), nil
}
