package ids

import "github.com/segmentio/ksuid"

// New returns a K-sortable unique identifier suitable for entity IDs
// and storage-key suffixes.
func New() string {
	return ksuid.New().String()
}
