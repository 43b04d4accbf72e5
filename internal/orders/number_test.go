package orders

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderNumberPattern = regexp.MustCompile(`^ORD-[0-9A-Z]+-[0-9A-Z]{4}$`)

func TestClockNumbersFormat(t *testing.T) {
	at := time.UnixMilli(1700000000000)
	n := ClockNumbers{Now: func() time.Time { return at }}.Next()

	require.Regexp(t, orderNumberPattern, n)
	parts := strings.Split(n, "-")
	ms, err := strconv.ParseInt(strings.ToLower(parts[1]), 36, 64)
	require.NoError(t, err)
	assert.Equal(t, at.UnixMilli(), ms)
}

func TestClockNumbersDistinctUnderConcurrency(t *testing.T) {
	const workers, perWorker = 8, 50
	var (
		mu   sync.Mutex
		seen = map[string]int{}
		wg   sync.WaitGroup
		gen  = ClockNumbers{}
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				n := gen.Next()
				mu.Lock()
				seen[n]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	dups := 0
	for _, c := range seen {
		if c > 1 {
			dups += c - 1
		}
	}
	// 400 draws over ~1.7M suffixes per millisecond; a handful of repeats would
	// still be legal, but more than a couple points at a broken generator.
	assert.LessOrEqual(t, dups, 2)
}
