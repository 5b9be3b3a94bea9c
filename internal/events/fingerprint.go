package events

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"time"
)

// Fingerprint computes a stable content hash over an event's identity tuple
// (title, timestamp, impact, currency). Each field is length-prefixed before
// hashing so adjacent fields cannot collide by shifting a boundary
// ("FOMC"+"2025" vs "FOM"+"C2025"). The store's composite unique key remains
// authoritative for dedup; the fingerprint keys the dispatch gate and shows
// up in logs for cross-checking.
func Fingerprint(title string, ts time.Time, impact Impact, currency Currency) string {
	h := sha256.New()
	for _, field := range []string{
		title,
		ts.UTC().Format(NaiveLayout),
		string(impact),
		string(currency),
	} {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(field)))
		h.Write(lenBuf[:])
		h.Write([]byte(field))
	}
	return hex.EncodeToString(h.Sum(nil))
}
