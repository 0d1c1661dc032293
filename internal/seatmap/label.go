// Package seatmap models a show's seat occupancy as a fixed-size grid of
// cells, each either empty or held by exactly one booking.
package seatmap

import (
	"fmt"
	"strconv"
	"strings"
)

// Seat addresses one cell of a grid.  Row and Col are zero-based.
type Seat struct {
	Row int
	Col int
}

// Label renders the seat as "<row letters><1-based column>", e.g. A1 or AB12.
func (s Seat) Label() string {
	return rowLabel(s.Row) + strconv.Itoa(s.Col+1)
}

func (s Seat) String() string { return s.Label() }

// ParseLabel parses a seat label such as "A1", "b7" or "AA12".  Leading and
// trailing spaces are ignored and letters are case-insensitive.
func ParseLabel(raw string) (Seat, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	i := 0
	for i < len(s) && s[i] >= 'A' && s[i] <= 'Z' {
		i++
	}
	if i == 0 || i == len(s) {
		return Seat{}, fmt.Errorf("seat label %q: want row letters followed by a number", raw)
	}
	row, ok := rowIndex(s[:i])
	if !ok {
		return Seat{}, fmt.Errorf("seat label %q: bad row", raw)
	}
	col, err := strconv.Atoi(s[i:])
	if err != nil || col < 1 {
		return Seat{}, fmt.Errorf("seat label %q: bad seat number", raw)
	}
	return Seat{Row: row, Col: col - 1}, nil
}

// Labels formats seats in order.
func Labels(seats []Seat) []string {
	out := make([]string, len(seats))
	for i, s := range seats {
		out[i] = s.Label()
	}
	return out
}

// rowLabel converts a zero-based index to an alphabetical row label like A, B, AA.
func rowLabel(i int) string {
	if i < 0 {
		return ""
	}
	res := []byte{}
	for {
		res = append(res, byte('A'+i%26))
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	for j, k := 0, len(res)-1; j < k; j, k = j+1, k-1 {
		res[j], res[k] = res[k], res[j]
	}
	return string(res)
}

// rowIndex converts an upper-case row label like A or AA into its zero-based index.
func rowIndex(label string) (int, bool) {
	if label == "" || len(label) > 3 {
		return -1, false
	}
	n := 0
	for i := 0; i < len(label); i++ {
		ch := label[i]
		if ch < 'A' || ch > 'Z' {
			return -1, false
		}
		n = n*26 + int(ch-'A'+1)
	}
	return n - 1, true
}
