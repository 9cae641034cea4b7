// Package transaction implements the journaled filesystem mutation engine.
// A Tx records every create, remove and move performed through it and can
// replay the journal in reverse to restore the exact pre-transaction state.
// A repository mutation that writes exclusively through a Tx therefore never
// leaves a half-written package behind: any failure before Commit rolls the
// filesystem back byte for byte.
package transaction

import (
	"os"

	"github.com/parcel-pkgs/parcel/pkg/errors"
	"github.com/parcel-pkgs/parcel/pkg/fsutil"
)

// OpKind identifies a journaled filesystem operation.
type OpKind int

// The closed set of operations a transaction can journal. Rollback switches
// over this set exhaustively; adding a kind without a rollback arm is a
// compile-time visible change in undo().
const (
	OpCreate OpKind = iota
	OpRemove
	OpMove
)

// Operation is one journal entry. Which fields are meaningful depends on Kind:
// Create uses Path; Remove uses Path and Original; Move uses From, To and,
// when the move overwrote an existing destination, OriginalDest.
type Operation struct {
	Kind         OpKind
	Path         string
	From         string
	To           string
	Original     []byte
	OriginalDest []byte
	// destExisted distinguishes "destination absent" from "destination was
	// an empty file" for move rollback.
	destExisted bool
}

// State of a transaction. A Tx starts Active and ends in exactly one of
// Committed or RolledBack; no operation may be journaled afterwards.
type State int

const (
	StateActive State = iota
	StateCommitted
	StateRolledBack
)

// Tx is a single-use filesystem transaction. It is owned by exactly one
// repository operation and must not be shared.
type Tx struct {
	log   []Operation
	state State
}

// Begin starts a new transaction.
func Begin() *Tx {
	return &Tx{state: StateActive}
}

// State returns the current transaction state.
func (tx *Tx) State() State {
	return tx.state
}

// Log returns the number of journaled operations. Mostly useful in tests.
func (tx *Tx) Log() int {
	return len(tx.log)
}

// SafeCreate writes content to path and journals the creation. It refuses to
// overwrite: an existing path is an error. Parent directories are created as
// needed.
func (tx *Tx) SafeCreate(path string, content []byte) error {
	if err := tx.active(); err != nil {
		return err
	}
	if _, err := os.Lstat(path); err == nil {
		return errors.Wrapf(errors.ErrAlreadyExists, "cannot create %s", path)
	}
	if err := fsutil.EnsureFileDir(path); err != nil {
		return errors.Wrapf(err, "cannot create parent directory for %s", path)
	}
	if err := os.WriteFile(path, content, fsutil.FileModeDefault); err != nil {
		return errors.Wrapf(err, "cannot create %s", path)
	}
	tx.log = append(tx.log, Operation{Kind: OpCreate, Path: path})
	return nil
}

// SafeRemove deletes the file at path, journaling its content so rollback can
// restore it. Directories and missing paths are errors.
func (tx *Tx) SafeRemove(path string) error {
	if err := tx.active(); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(errors.ErrNotFound, "cannot remove %s", path)
	}
	if info.IsDir() {
		return errors.Wrapf(errors.ErrIsDirectory, "cannot remove %s", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "cannot read %s before removal", path)
	}
	if err := os.Remove(path); err != nil {
		return errors.Wrapf(err, "cannot remove %s", path)
	}
	tx.log = append(tx.log, Operation{Kind: OpRemove, Path: path, Original: content})
	return nil
}

// SafeMove renames from to to, journaling enough to undo it. When the
// destination already exists its bytes are captured first, since the rename
// overwrites them. Directories on either side are errors.
func (tx *Tx) SafeMove(from, to string) error {
	if err := tx.active(); err != nil {
		return err
	}
	info, err := os.Stat(from)
	if err != nil {
		return errors.Wrapf(errors.ErrNotFound, "cannot move %s", from)
	}
	if info.IsDir() {
		return errors.Wrapf(errors.ErrIsDirectory, "cannot move %s", from)
	}

	op := Operation{Kind: OpMove, From: from, To: to}
	if destInfo, err := os.Stat(to); err == nil {
		if destInfo.IsDir() {
			return errors.Wrapf(errors.ErrIsDirectory, "move destination %s", to)
		}
		original, err := os.ReadFile(to)
		if err != nil {
			return errors.Wrapf(err, "cannot read move destination %s", to)
		}
		op.OriginalDest = original
		op.destExisted = true
	}

	if err := fsutil.EnsureFileDir(to); err != nil {
		return errors.Wrapf(err, "cannot create parent directory for %s", to)
	}
	if err := os.Rename(from, to); err != nil {
		return errors.Wrapf(err, "cannot move %s to %s", from, to)
	}
	tx.log = append(tx.log, op)
	return nil
}

// Commit finalizes the transaction. The changes already made stand; the
// journal is discarded without touching the filesystem.
func (tx *Tx) Commit() error {
	if err := tx.active(); err != nil {
		return err
	}
	tx.state = StateCommitted
	tx.log = nil
	return nil
}

// Rollback undoes every journaled operation in LIFO order, restoring the
// filesystem to its pre-transaction state. A failure mid-rollback is fatal:
// it is surfaced wrapped in ErrRollbackFailed and leaves the repository in an
// explicitly inconsistent state that the caller must report.
func (tx *Tx) Rollback() error {
	if err := tx.active(); err != nil {
		return err
	}
	tx.state = StateRolledBack

	for i := len(tx.log) - 1; i >= 0; i-- {
		if err := undo(tx.log[i]); err != nil {
			tx.log = nil
			return errors.Wrap(errors.ErrRollbackFailed, err.Error())
		}
	}
	tx.log = nil
	return nil
}

func (tx *Tx) active() error {
	if tx.state != StateActive {
		return errors.ErrTransactionClosed
	}
	return nil
}

func undo(op Operation) error {
	switch op.Kind {
	case OpCreate:
		// Tolerate a file that already vanished.
		if err := os.Remove(op.Path); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "undo create %s", op.Path)
		}
		return nil
	case OpRemove:
		if err := fsutil.EnsureFileDir(op.Path); err != nil {
			return errors.Wrapf(err, "undo remove %s", op.Path)
		}
		if err := os.WriteFile(op.Path, op.Original, fsutil.FileModeDefault); err != nil {
			return errors.Wrapf(err, "undo remove %s", op.Path)
		}
		return nil
	case OpMove:
		if _, err := os.Stat(op.To); err == nil {
			if err := os.Rename(op.To, op.From); err != nil {
				return errors.Wrapf(err, "undo move %s -> %s", op.From, op.To)
			}
		}
		if op.destExisted {
			if err := os.WriteFile(op.To, op.OriginalDest, fsutil.FileModeDefault); err != nil {
				return errors.Wrapf(err, "restore move destination %s", op.To)
			}
		}
		return nil
	default:
		return errors.Wrapf(errors.ErrRollbackFailed, "unknown operation kind %d", op.Kind)
	}
}
