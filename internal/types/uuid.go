package types

import (
	"fmt"

	"github.com/oklog/ulid/v2"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.Make().String()
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// with a prefix ex inv_01JAF3Z3B8Y3M6E5D0T1K9ZQ7C
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}

const (
	// Prefixes for all domains and entities

	UUID_PREFIX_INVOICE            = "inv"
	UUID_PREFIX_INVOICE_ITEM       = "inv_item"
	UUID_PREFIX_FREELANCER_SETTING = "fs"
	UUID_PREFIX_SERVICE            = "svc"
	UUID_PREFIX_EVENT              = "evt"
)
