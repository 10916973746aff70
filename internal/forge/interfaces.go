package forge

import (
	"context"

	"github.com/antigravity-dev/lex-pr-runner/internal/loader"
)

// Compile-time assertions that Client and Fake satisfy the narrow
// interfaces loader and autopilot each declare locally to stay
// forge-agnostic.
var (
	_ loader.ForgeQuerier = (*Client)(nil)
	_ loader.ForgeQuerier = (*Fake)(nil)
)

// forgeClient mirrors internal/autopilot.ForgeClient; it exists only so
// the compiler checks Client and Fake against it here, next to their
// definitions, without this package importing internal/autopilot.
type forgeClient interface {
	PostComment(ctx context.Context, item, comment string) error
	PostStatus(ctx context.Context, item, status string) error
	ClosePR(ctx context.Context, item, comment string) error
}

var (
	_ forgeClient = (*Client)(nil)
	_ forgeClient = (*Fake)(nil)
)
