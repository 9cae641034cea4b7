package transaction

import (
	"github.com/parcel-pkgs/parcel/pkg/errors"
)

// Run executes fn inside a fresh transaction. When fn returns nil the
// transaction is committed; when it returns an error the transaction is
// rolled back and fn's error is returned. A rollback failure supersedes fn's
// error, since at that point the filesystem state is no longer the
// pre-operation one.
//
// Every mutating repository operation goes through Run so no call site can
// forget the rollback path.
func Run(fn func(tx *Tx) error) error {
	tx := Begin()
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(rbErr, "while recovering from: %v", err)
		}
		return err
	}
	return tx.Commit()
}
