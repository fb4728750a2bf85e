package random

import (
	"crypto/rand"
	"encoding/binary"
	"math/big"
	"time"
)

const letters = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Code returns an upper-case alphanumeric code, used for guest display
// name suffixes and room invite codes.
func Code(length int) string {
	if length <= 0 {
		return ""
	}
	max := big.NewInt(int64(len(letters)))
	runes := make([]byte, length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			runes[i] = letters[0]
			continue
		}
		runes[i] = letters[n.Int64()]
	}
	return string(runes)
}

// Seed returns a shuffle seed mixing entropy with the clock. The game is
// casual, not a fairness-audited gambling system; unpredictability is
// enough.
func Seed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(buf[:])) ^ time.Now().UnixNano()
}
