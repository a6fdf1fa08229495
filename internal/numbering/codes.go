package numbering

import (
	"fmt"
	"strconv"
	"strings"
)

// Entity code prefixes.
const (
	ClientPrefix   = "C"
	ProductPrefix  = "P"
	SupplierPrefix = "F"
)

// NextEntityCode returns prefix followed by max(existing)+1 on three digits.
// Codes that do not parse count as zero.
func NextEntityCode(prefix string, existing []string) string {
	maxSeq := 0
	for _, code := range existing {
		n, err := strconv.Atoi(strings.TrimPrefix(code, prefix))
		if err != nil || n < 0 {
			continue
		}
		if n > maxSeq {
			maxSeq = n
		}
	}
	return fmt.Sprintf("%s%03d", prefix, maxSeq+1)
}
