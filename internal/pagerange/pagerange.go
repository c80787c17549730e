// Package pagerange parses user-entered range expressions such as "1-3,5"
// into a sorted set of valid 1-based indices.
package pagerange

import (
	"sort"
	"strconv"
	"strings"
)

// Parse resolves a range expression against a maximum value. Empty or
// whitespace-only input means "all". Tokens are comma-separated single
// integers or inclusive "start-end" ranges. Malformed or out-of-bound tokens
// are silently dropped: bad range text degrades to fewer pages selected,
// never a failure. A reversed range yields nothing. The result is
// deduplicated and ascending.
func Parse(expr string, maxValue int) []int {
	if maxValue < 1 {
		return nil
	}

	expr = strings.TrimSpace(expr)
	if expr == "" {
		all := make([]int, maxValue)
		for i := range all {
			all[i] = i + 1
		}
		return all
	}

	seen := make(map[int]struct{})
	for _, token := range strings.Split(expr, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		if start, end, ok := strings.Cut(token, "-"); ok {
			lo, err1 := strconv.Atoi(strings.TrimSpace(start))
			hi, err2 := strconv.Atoi(strings.TrimSpace(end))
			if err1 != nil || err2 != nil {
				continue
			}
			// Clamp before iterating so an absurd bound cannot spin.
			if lo < 1 {
				lo = 1
			}
			if hi > maxValue {
				hi = maxValue
			}
			for n := lo; n <= hi; n++ {
				seen[n] = struct{}{}
			}
			continue
		}

		n, err := strconv.Atoi(token)
		if err != nil || n < 1 || n > maxValue {
			continue
		}
		seen[n] = struct{}{}
	}

	out := make([]int, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}
