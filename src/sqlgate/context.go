package sqlgate

import "context"

type txKey struct{}
type suppressKey struct{}

// WithTransaction returns a context carrying tx as the active transaction.
// Every dispatch made with the derived context (and anything it spawns)
// executes against tx instead of the pool. The transaction scope is the only
// writer of this slot; application code normally never calls this directly.
func WithTransaction(ctx context.Context, tx Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey{}, tx)
}

// ActiveTransaction returns the transaction installed on ctx, or nil when the
// current chain is not inside a transaction scope.
func ActiveTransaction(ctx context.Context) Tx {
	tx, _ := ctx.Value(txKey{}).(Tx)
	return tx
}

// WithSuppressedLogging returns a context under which default-mode dispatches
// do not log. Verbose dispatches and error logging are unaffected. Any active
// transaction on ctx is preserved.
func WithSuppressedLogging(ctx context.Context) context.Context {
	return context.WithValue(ctx, suppressKey{}, true)
}

// IsLoggingSuppressed reports whether logging suppression is set on ctx.
func IsLoggingSuppressed(ctx context.Context) bool {
	v, _ := ctx.Value(suppressKey{}).(bool)
	return v
}

// RunWithSuppressedLogging runs fn with logging suppression installed for its
// duration. The suppression is scoped to the context handed to fn; sibling
// chains built from the original ctx are not affected.
func RunWithSuppressedLogging(ctx context.Context, fn func(context.Context) error) error {
	return fn(WithSuppressedLogging(ctx))
}
