package sqlgate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGivenSuccessfulUnitOfWork_WhenScoped_ThenTransactionCommits(t *testing.T) {
	db, conn, _ := newTestDB(Config{})

	scoped := Transactional(db, func(ctx context.Context) (int64, error) {
		_, err := db.Exec(ctx, SQL("INSERT INTO t (a) VALUES (?)", 1))
		return 42, err
	})
	result, err := scoped(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(42), result)
	require.Equal(t, 1, conn.beginCount)
	assert.True(t, conn.tx.committed)
	assert.False(t, conn.tx.rolledBack)
	assert.Len(t, conn.tx.recorded(), 1, "scoped queries must run on the transaction")
	assert.Empty(t, conn.recorded(), "scoped queries must not reach the pool")
}

func TestGivenFailingUnitOfWork_WhenScoped_ThenTransactionRollsBackAndErrorPropagates(t *testing.T) {
	db, conn, _ := newTestDB(Config{})
	wantErr := errors.New("constraint violation")

	scoped := Transactional(db, func(ctx context.Context) (int64, error) {
		return 0, wantErr
	})
	_, err := scoped(context.Background())

	assert.ErrorIs(t, err, wantErr)
	assert.True(t, conn.tx.rolledBack)
	assert.False(t, conn.tx.committed)
}

func TestGivenNestedScopes_WhenRun_ThenTheOuterTransactionIsReused(t *testing.T) {
	db, conn, _ := newTestDB(Config{})

	inner := Transactional(db, func(ctx context.Context) (struct{}, error) {
		_, err := db.Exec(ctx, SQL("INSERT INTO t (a) VALUES (?)", 2))
		return struct{}{}, err
	})
	outer := Transactional(db, func(ctx context.Context) (struct{}, error) {
		if _, err := db.Exec(ctx, SQL("INSERT INTO t (a) VALUES (?)", 1)); err != nil {
			return struct{}{}, err
		}
		return inner(ctx)
	})

	_, err := outer(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, conn.beginCount, "a nested scope must never open a second transaction")
	assert.True(t, conn.tx.committed)
	assert.Len(t, conn.tx.recorded(), 2, "both writes belong to the one transaction")
}

func TestGivenNestedScopeFailure_WhenOuterPropagates_ThenOneRollbackCoversBoth(t *testing.T) {
	db, conn, _ := newTestDB(Config{})
	wantErr := errors.New("inner failed")

	inner := Transactional(db, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, wantErr
	})
	outer := Transactional(db, func(ctx context.Context) (struct{}, error) {
		_, _ = db.Exec(ctx, SQL("INSERT INTO t (a) VALUES (?)", 1))
		return inner(ctx)
	})

	_, err := outer(context.Background())

	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 1, conn.beginCount)
	assert.True(t, conn.tx.rolledBack)
	assert.False(t, conn.tx.committed)
}

func TestGivenForcedRollbackMode_WhenScoped_ThenResultIsReturnedAndNothingCommits(t *testing.T) {
	db, conn, _ := newTestDB(Config{ForcedRollback: true})

	scoped := Transactional(db, func(ctx context.Context) (int64, error) {
		_, err := db.Exec(ctx, SQL("INSERT INTO t (a) VALUES (?) RETURNING id", 1))
		return 7, err
	})
	result, err := scoped(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(7), result, "the computed result survives the rollback")
	assert.True(t, conn.tx.rolledBack)
	assert.False(t, conn.tx.committed)
}

func TestGivenForcedRollbackFailure_WhenScoped_ThenTheRollbackErrorSurfaces(t *testing.T) {
	db, conn, _ := newTestDB(Config{ForcedRollback: true})
	rbErr := errors.New("connection lost")

	scoped := Transactional(db, func(ctx context.Context) (int64, error) {
		conn.tx.rollbackErr = rbErr
		return 7, nil
	})
	_, err := scoped(context.Background())

	assert.ErrorIs(t, err, rbErr)
}

func TestGivenForcedRollbackMode_WhenUnitOfWorkFails_ThenTheOriginalErrorWins(t *testing.T) {
	db, conn, _ := newTestDB(Config{ForcedRollback: true})
	wantErr := errors.New("genuine failure")

	scoped := Transactional(db, func(ctx context.Context) (int64, error) {
		return 0, wantErr
	})
	_, err := scoped(context.Background())

	assert.ErrorIs(t, err, wantErr)
	assert.True(t, conn.tx.rolledBack)
}

func TestGivenBeginFailure_WhenScoped_ThenTheErrorPropagates(t *testing.T) {
	db, conn, _ := newTestDB(Config{})
	conn.beginErr = errors.New("too many clients")

	err := db.InTransaction(context.Background(), func(ctx context.Context) error {
		t.Fatal("the unit of work must not run when begin fails")
		return nil
	})

	assert.ErrorIs(t, err, conn.beginErr)
}

func TestGivenCommitFailure_WhenScoped_ThenTheErrorPropagates(t *testing.T) {
	db, conn, _ := newTestDB(Config{})

	scoped := Transactional(db, func(ctx context.Context) (int64, error) {
		conn.tx.commitErr = errors.New("serialization failure")
		return 1, nil
	})
	_, err := scoped(context.Background())

	assert.ErrorIs(t, err, conn.tx.commitErr)
}

func TestInTransactionRunsTheUnitOfWorkOnTheTransaction(t *testing.T) {
	db, conn, _ := newTestDB(Config{})

	err := db.InTransaction(context.Background(), func(ctx context.Context) error {
		require.NotNil(t, ActiveTransaction(ctx))
		_, err := db.Exec(ctx, SQL("DELETE FROM t WHERE a = ?", 1))
		return err
	})

	require.NoError(t, err)
	assert.True(t, conn.tx.committed)
	assert.Len(t, conn.tx.recorded(), 1)
}

func TestScopePreservesInheritedSuppression(t *testing.T) {
	db, _, handler := newTestDB(Config{LoggingEnabled: true})

	err := RunWithSuppressedLogging(context.Background(), func(ctx context.Context) error {
		return db.InTransaction(ctx, func(ctx context.Context) error {
			_, err := db.Exec(ctx, SQL("SELECT 1"))
			return err
		})
	})

	require.NoError(t, err)
	assert.Empty(t, handler.records)
}
