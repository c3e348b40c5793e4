//go:build tools

package tools

// Tool dependencies, tracked as blank imports so `go mod tidy` keeps
// them pinned. Run `go run github.com/vektra/mockery/v2` from the
// repository root to regenerate mocks.
import (
	_ "github.com/vektra/mockery/v2"
)
