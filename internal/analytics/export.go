package analytics

import (
	"encoding/csv"
	"io"
	"strconv"
)

// WriteAgingCSV prints aging buckets to CSV.
func WriteAgingCSV(w io.Writer, buckets []AgingBucket) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Bucket", "Amount", "Invoices"}); err != nil {
		return err
	}
	for _, bucket := range buckets {
		record := []string{bucket.Bucket, strconv.FormatFloat(bucket.Amount, 'f', 2, 64), strconv.Itoa(bucket.Count)}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
