// Package pagerange parses page-selection expressions such as "1,3-5,7".
package pagerange

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/BatmanBruc/any2any-bot/types"
)

var ErrInvalid = errors.New("invalid page selection")

// Parse validates expr against a document of pageCount pages. Any bad token
// rejects the whole expression.
func Parse(expr string, pageCount int) (types.PageSelection, error) {
	if pageCount <= 0 {
		return nil, fmt.Errorf("%w: document has no pages", ErrInvalid)
	}

	seen := make(map[int]struct{})
	for _, token := range strings.Split(expr, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			return nil, fmt.Errorf("%w: empty token", ErrInvalid)
		}

		first, last, err := parseToken(token)
		if err != nil {
			return nil, err
		}
		if first < 1 || last > pageCount {
			return nil, fmt.Errorf("%w: %q is outside 1-%d", ErrInvalid, token, pageCount)
		}
		for p := first; p <= last; p++ {
			seen[p] = struct{}{}
		}
	}

	pages := make(types.PageSelection, 0, len(seen))
	for p := range seen {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages, nil
}

func parseToken(token string) (int, int, error) {
	lo, hi, isRange := strings.Cut(token, "-")
	if !isRange {
		n, err := atoi(token)
		if err != nil {
			return 0, 0, err
		}
		return n, n, nil
	}

	first, err := atoi(lo)
	if err != nil {
		return 0, 0, err
	}
	last, err := atoi(hi)
	if err != nil {
		return 0, 0, err
	}
	if first > last {
		return 0, 0, fmt.Errorf("%w: range %q is reversed", ErrInvalid, token)
	}
	return first, last, nil
}

func atoi(s string) (int, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil || s == "" || s[0] == '+' {
		return 0, fmt.Errorf("%w: %q is not a page number", ErrInvalid, s)
	}
	return n, nil
}

// Format renders pages compactly, collapsing consecutive runs: [1 2 3 5] -> "1-3, 5".
func Format(pages types.PageSelection) string {
	var parts []string
	for i := 0; i < len(pages); {
		j := i
		for j+1 < len(pages) && pages[j+1] == pages[j]+1 {
			j++
		}
		if i == j {
			parts = append(parts, strconv.Itoa(pages[i]))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", pages[i], pages[j]))
		}
		i = j + 1
	}
	return strings.Join(parts, ", ")
}
