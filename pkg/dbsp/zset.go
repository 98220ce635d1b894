package dbsp

import (
	"fmt"
	"sort"
	"strings"
)

// ZSet is a multiset of rows with integer (possibly negative) multiplicities. A ZSet is used both
// as a batch of deltas (positive entries are insertions, negative ones deletions) and as the
// accumulated contents of a relation.
type ZSet struct {
	rows   map[string]Row // row key -> row
	counts map[string]int // row key -> multiplicity
}

// Error type for better error handling.
type ZSetError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ZSetError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ZSetError) Unwrap() error { return e.Cause }

func newZSetError(message string, cause error) error {
	return &ZSetError{Message: message, Cause: cause}
}

// NewZSet creates an empty ZSet.
func NewZSet() *ZSet {
	return &ZSet{
		rows:   make(map[string]Row),
		counts: make(map[string]int),
	}
}

// FromRows creates a ZSet from a slice of rows, each with multiplicity 1.
func FromRows(rows ...Row) *ZSet {
	z := NewZSet()
	for _, r := range rows {
		z.AddRow(r, 1)
	}
	return z
}

// FromDeltas creates a ZSet from a list of deltas.
func FromDeltas(deltas ...Delta) *ZSet {
	z := NewZSet()
	for _, d := range deltas {
		z.AddRow(d.Row, int(d.Sign))
	}
	return z
}

// AddRow adds a row to the ZSet with the given multiplicity in place. Entries whose multiplicity
// drops to zero are removed.
func (z *ZSet) AddRow(row Row, count int) {
	if count == 0 {
		return
	}
	key := row.Key()
	if _, exists := z.counts[key]; exists {
		z.counts[key] += count
	} else {
		z.rows[key] = row
		z.counts[key] = count
	}
	if z.counts[key] == 0 {
		delete(z.counts, key)
		delete(z.rows, key)
	}
}

// AddZSet adds the entries of other into z in place.
func (z *ZSet) AddZSet(other *ZSet) {
	if other == nil {
		return
	}
	for key, count := range other.counts {
		z.AddRow(other.rows[key], count)
	}
}

// Add performs Z-set addition and returns a new ZSet.
func (z *ZSet) Add(other *ZSet) *ZSet {
	result := z.Clone()
	result.AddZSet(other)
	return result
}

// Subtract performs Z-set subtraction and returns a new ZSet.
func (z *ZSet) Subtract(other *ZSet) *ZSet {
	return z.Add(other.Negate())
}

// Negate flips the sign of every entry.
func (z *ZSet) Negate() *ZSet {
	result := NewZSet()
	if z == nil {
		return result
	}
	for key, count := range z.counts {
		result.rows[key] = z.rows[key]
		result.counts[key] = -count
	}
	return result
}

// Clone creates a copy of the ZSet. Rows are immutable so they are shared.
func (z *ZSet) Clone() *ZSet {
	result := &ZSet{
		rows:   make(map[string]Row, len(z.rows)),
		counts: make(map[string]int, len(z.counts)),
	}
	for key, row := range z.rows {
		result.rows[key] = row
		result.counts[key] = z.counts[key]
	}
	return result
}

// Entry is a row with its multiplicity in a ZSet.
type Entry struct {
	Row          Row
	Multiplicity int
}

// Entries returns all entries, including negative ones, sorted by row.
func (z *ZSet) Entries() []Entry {
	if z == nil {
		return nil
	}
	result := make([]Entry, 0, len(z.counts))
	for key, mult := range z.counts {
		result = append(result, Entry{Row: z.rows[key], Multiplicity: mult})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Row.Compare(result[j].Row) < 0 })
	return result
}

// Deltas expands the ZSet into unit deltas in row order: an entry with multiplicity n becomes
// |n| deltas of the corresponding sign.
func (z *ZSet) Deltas() []Delta {
	var result []Delta
	for _, e := range z.Entries() {
		sign, n := Insert, e.Multiplicity
		if n < 0 {
			sign, n = Delete, -n
		}
		for i := 0; i < n; i++ {
			result = append(result, Delta{Row: e.Row, Sign: sign})
		}
	}
	return result
}

// Rows returns the rows with positive multiplicity in row order, a row with multiplicity n
// appears n times.
func (z *ZSet) Rows() []Row {
	var result []Row
	for _, e := range z.Entries() {
		for i := 0; i < e.Multiplicity; i++ {
			result = append(result, e.Row)
		}
	}
	return result
}

// IsZero checks if the ZSet has no entries.
func (z *ZSet) IsZero() bool { return z == nil || len(z.counts) == 0 }

// Size returns the number of rows counting only positive multiplicities.
func (z *ZSet) Size() int {
	if z == nil {
		return 0
	}
	total := 0
	for _, count := range z.counts {
		if count > 0 {
			total += count
		}
	}
	return total
}

// TotalSize returns the number of unit deltas, counting both positive and negative
// multiplicities.
func (z *ZSet) TotalSize() int {
	if z == nil {
		return 0
	}
	total := 0
	for _, count := range z.counts {
		if count > 0 {
			total += count
		} else {
			total -= count
		}
	}
	return total
}

// Weight returns the signed sum of all multiplicities.
func (z *ZSet) Weight() int {
	if z == nil {
		return 0
	}
	total := 0
	for _, count := range z.counts {
		total += count
	}
	return total
}

// Multiplicity returns the multiplicity of a row.
func (z *ZSet) Multiplicity(row Row) int {
	if z == nil {
		return 0
	}
	return z.counts[row.Key()]
}

// Contains checks if a row exists in the ZSet with positive multiplicity.
func (z *ZSet) Contains(row Row) bool { return z.Multiplicity(row) > 0 }

// String returns a string representation of the ZSet for debugging.
func (z *ZSet) String() string {
	if z.IsZero() {
		return "∅"
	}
	parts := []string{}
	for _, e := range z.Entries() {
		parts = append(parts, fmt.Sprintf("%s×%d", e.Row, e.Multiplicity))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
