package sqlgate

import "context"

// Transactional wraps a unit of work with transaction demarcation.
//
// If the current chain already has an ambient transaction, fn joins it: no
// second transaction is opened and commit stays with the outer scope.
// Otherwise a new transaction is opened and installed on the context handed
// to fn; it commits when fn succeeds and rolls back when fn fails, with fn's
// error propagated unchanged.
//
// When the forced-rollback test mode is on, the transaction is rolled back
// even on success and fn's result is still returned to the caller — the
// rollback is real (nothing persists) but invisible to control flow.
func Transactional[T any](d *DB, fn func(context.Context) (T, error)) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		var zero T

		if ActiveTransaction(ctx) != nil {
			return fn(ctx)
		}

		conn, err := d.src.Get(ctx)
		if err != nil {
			return zero, err
		}
		tx, err := conn.Begin(ctx)
		if err != nil {
			return zero, err
		}

		result, err := fn(WithTransaction(ctx, tx))
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				d.st.mu.RLock()
				log := d.st.logger
				d.st.mu.RUnlock()
				log.Error("transaction rollback failed", "error", rbErr)
			}
			return zero, err
		}

		if d.ForcedRollback() {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				return zero, rbErr
			}
			return result, nil
		}

		if err := tx.Commit(ctx); err != nil {
			return zero, err
		}
		return result, nil
	}
}

// InTransaction is the non-generic form of Transactional for units of work
// that return no value.
func (d *DB) InTransaction(ctx context.Context, fn func(context.Context) error) error {
	wrapped := Transactional(d, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	_, err := wrapped(ctx)
	return err
}
