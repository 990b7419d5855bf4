package models

import (
	contextutils "github.com/moldovancsaba/amanoba-sub004/internal/utils"
)

// Validate checks the question against the data-model invariants.
// Records that fail are rejected at the store boundary and never reach the auditor.
func (q *Question) Validate() error {
	return contextutils.ValidateStruct(q)
}
