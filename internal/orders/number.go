package orders

import (
	"math/rand"
	"strconv"
	"strings"
	"time"
)

const base36 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NumberGenerator yields human-facing order numbers.
type NumberGenerator interface {
	Next() string
}

// ClockNumbers renders ORD-<millis base36>-<4 random base36 chars>.
// Safe for concurrent use.
type ClockNumbers struct {
	Now func() time.Time
}

func (g ClockNumbers) Next() string {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	ts := strings.ToUpper(strconv.FormatInt(now().UnixMilli(), 36))

	var suffix [4]byte
	for i := range suffix {
		suffix[i] = base36[rand.Intn(len(base36))]
	}
	return "ORD-" + ts + "-" + string(suffix[:])
}
