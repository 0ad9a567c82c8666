package booking

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

const referenceAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// ReferenceFunc produces a candidate booking reference. Uniqueness is enforced by
// the store, so a generator only has to make collisions unlikely.
type ReferenceFunc func(now time.Time) string

// NewReference returns "BK", the last eight digits of the millisecond clock and
// four random base36 characters, e.g. BK41237795Q7ZK.
func NewReference(now time.Time) string {
	ms := strconv.FormatInt(now.UnixMilli(), 10)
	if len(ms) > 8 {
		ms = ms[len(ms)-8:]
	}
	id := uuid.New()
	suffix := make([]byte, 4)
	for i := range suffix {
		suffix[i] = referenceAlphabet[int(id[i])%len(referenceAlphabet)]
	}
	return "BK" + ms + string(suffix)
}
