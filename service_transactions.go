package permkit

import (
	"context"
	"fmt"
	"time"

	"github.com/fernandezvara/dbkit"
)

// Transaction executes a function within a database transaction with
// automatic commit/rollback. If the function returns an error the
// transaction is rolled back, otherwise committed. Nested calls use
// savepoints.
//
// DeleteRole's cascade runs through this; staged applies deliberately do
// not — each diff entry is an independent Store call (see Session.Apply).
//
// Example:
//
//	err := service.Transaction(ctx, func(ctx context.Context) error {
//	    role, err := service.CreateRole(ctx, input)
//	    if err != nil {
//	        return err // rollback
//	    }
//	    _, err = service.AddPermission(ctx, role.ID, "node", "read", permkit.AllScope())
//	    return err
//	})
func (s *Service) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	start := time.Now()
	var err error

	if tx, ok := s.db.(*dbkit.Tx); ok {
		// Already in a transaction: use a savepoint.
		err = tx.Transaction(ctx, func(tx *dbkit.Tx) error {
			return fn(ctx)
		})
	} else if db, ok := s.db.(*dbkit.DBKit); ok {
		err = db.Transaction(ctx, func(tx *dbkit.Tx) error {
			return fn(ctx)
		})
	} else {
		err = fmt.Errorf("transaction support requires a dbkit.DBKit or dbkit.Tx instance")
	}

	s.monitor.recordTransaction(time.Since(start), err == nil)
	return err
}

// TransactionWithOptions executes a function within a database transaction
// with custom options (isolation level, read-only, etc.).
func (s *Service) TransactionWithOptions(ctx context.Context, opts dbkit.TxOptions, fn func(ctx context.Context) error) error {
	start := time.Now()
	var err error

	if tx, ok := s.db.(*dbkit.Tx); ok {
		// Nested transactions use savepoints; options do not apply there.
		err = tx.Transaction(ctx, func(tx *dbkit.Tx) error {
			return fn(ctx)
		})
	} else if db, ok := s.db.(*dbkit.DBKit); ok {
		err = db.TransactionWithOptions(ctx, opts, func(tx *dbkit.Tx) error {
			return fn(ctx)
		})
	} else {
		err = fmt.Errorf("transaction support requires a dbkit.DBKit or dbkit.Tx instance")
	}

	s.monitor.recordTransaction(time.Since(start), err == nil)
	return err
}

// ReadOnlyTransaction executes a function within a read-only database
// transaction. Useful for consistent multi-read snapshots.
func (s *Service) ReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.TransactionWithOptions(ctx, dbkit.ReadOnlyTxOptions(), fn)
}
