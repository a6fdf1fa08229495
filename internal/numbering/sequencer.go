// Package numbering allocates document numbers and entity codes.
package numbering

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/odyssey-erp/odyssey-commerce/internal/documents"
)

// Numbered is a record carrying a document number.
type Numbered interface {
	GetID() string
	GetDocumentID() string
}

// Pattern returns the "<PREFIX>/<year>/" head of document numbers.
func Pattern(t documents.Type, year int) string {
	return fmt.Sprintf("%s/%d/", t.Prefix(), year)
}

// FormatDocumentID renders a sequence number with five digits.
func FormatDocumentID(t documents.Type, year, seq int) string {
	return fmt.Sprintf("%s%05d", Pattern(t, year), seq)
}

// NextSequence returns max(suffix)+1 over documents of the type and year. When
// nothing matches a non-empty collection it seeds from len(existing)+1 so
// legacy records without a document number still push the sequence forward.
func NextSequence[T Numbered](t documents.Type, year int, existing []T) int {
	pattern := Pattern(t, year)
	maxSeq := 0
	matched := false
	for _, doc := range existing {
		number := doc.GetDocumentID()
		if number == "" {
			number = doc.GetID()
		}
		if !strings.HasPrefix(number, pattern) {
			continue
		}
		matched = true
		n, err := strconv.ParseUint(strings.TrimPrefix(number, pattern), 10, 32)
		if err != nil {
			n = 0
		}
		if int(n) > maxSeq {
			maxSeq = int(n)
		}
	}
	if !matched && len(existing) > 0 {
		return len(existing) + 1
	}
	return maxSeq + 1
}

// NextDocumentID computes the next document number from a snapshot.
func NextDocumentID[T Numbered](t documents.Type, year int, existing []T) string {
	return FormatDocumentID(t, year, NextSequence(t, year, existing))
}
