// Package source reads transaction tables from the supported inputs and maps
// them onto core.Dataset.
package source

import (
	"context"

	"retaildash/internal/core"
)

// Ports for inbound data adapters.
type (
	// TransactionReader loads a full snapshot of the transaction table.
	TransactionReader interface {
		ReadTransactions(ctx context.Context) (core.Dataset, error)
		// Source identifies the input, e.g. a file path or spreadsheet id.
		Source() string
	}
)
