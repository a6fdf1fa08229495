package shared

import "fmt"

// PipelineKey builds redis keys for in-flight conversion markers.
func PipelineKey(kind, sourceID string) string {
	return fmt.Sprintf("pipeline:%s:%s", kind, sourceID)
}

// DocumentNumberKey builds redis keys for reserved document numbers.
func DocumentNumberKey(documentID string) string {
	return fmt.Sprintf("numbering:reserved:%s", documentID)
}
