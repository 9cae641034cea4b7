package transaction

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parcel-pkgs/parcel/pkg/errors"
)

func TestCommit(t *testing.T) {
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "test.txt")
	content := []byte("Hello, world!")

	tx := Begin()
	require.NoError(t, tx.SafeCreate(filePath, content))
	require.NoError(t, tx.Commit())

	data, err := os.ReadFile(filePath)
	require.NoError(t, err)
	assert.Equal(t, content, data)
	assert.Equal(t, StateCommitted, tx.State())
	assert.Equal(t, 0, tx.Log())
}

func TestRollbackCreate(t *testing.T) {
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "nested", "test.txt")

	tx := Begin()
	require.NoError(t, tx.SafeCreate(filePath, []byte("Hello, world!")))

	_, err := os.Stat(filePath)
	require.NoError(t, err)

	require.NoError(t, tx.Rollback())

	_, err = os.Stat(filePath)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, StateRolledBack, tx.State())
}

func TestRollbackRemove(t *testing.T) {
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "test.txt")
	content := []byte("Hello, world!")
	require.NoError(t, os.WriteFile(filePath, content, 0o644))

	tx := Begin()
	require.NoError(t, tx.SafeRemove(filePath))

	_, err := os.Stat(filePath)
	require.True(t, os.IsNotExist(err))

	require.NoError(t, tx.Rollback())

	data, err := os.ReadFile(filePath)
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestRollbackMove(t *testing.T) {
	tempDir := t.TempDir()
	fromPath := filepath.Join(tempDir, "from.txt")
	toPath := filepath.Join(tempDir, "to.txt")
	content := []byte("Hello, world!")
	require.NoError(t, os.WriteFile(fromPath, content, 0o644))

	tx := Begin()
	require.NoError(t, tx.SafeMove(fromPath, toPath))

	_, err := os.Stat(fromPath)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(toPath)
	require.NoError(t, err)

	require.NoError(t, tx.Rollback())

	data, err := os.ReadFile(fromPath)
	require.NoError(t, err)
	assert.Equal(t, content, data)
	_, err = os.Stat(toPath)
	assert.True(t, os.IsNotExist(err))
}

func TestRollbackMoveOverwrite(t *testing.T) {
	tempDir := t.TempDir()
	fromPath := filepath.Join(tempDir, "from.txt")
	toPath := filepath.Join(tempDir, "to.txt")
	fromContent := []byte("From content")
	toContent := []byte("To content")
	require.NoError(t, os.WriteFile(fromPath, fromContent, 0o644))
	require.NoError(t, os.WriteFile(toPath, toContent, 0o644))

	tx := Begin()
	require.NoError(t, tx.SafeMove(fromPath, toPath))

	// The move overwrote the destination
	data, err := os.ReadFile(toPath)
	require.NoError(t, err)
	require.Equal(t, fromContent, data)

	require.NoError(t, tx.Rollback())

	data, err = os.ReadFile(fromPath)
	require.NoError(t, err)
	assert.Equal(t, fromContent, data)

	data, err = os.ReadFile(toPath)
	require.NoError(t, err)
	assert.Equal(t, toContent, data)
}

func TestRollbackRestoresMixedSequence(t *testing.T) {
	tempDir := t.TempDir()
	created := filepath.Join(tempDir, "created.txt")
	removed := filepath.Join(tempDir, "removed.txt")
	movedFrom := filepath.Join(tempDir, "moved-from.txt")
	movedTo := filepath.Join(tempDir, "sub", "moved-to.txt")

	require.NoError(t, os.WriteFile(removed, []byte("removed original"), 0o644))
	require.NoError(t, os.WriteFile(movedFrom, []byte("moved original"), 0o644))

	tx := Begin()
	require.NoError(t, tx.SafeCreate(created, []byte("new file")))
	require.NoError(t, tx.SafeRemove(removed))
	require.NoError(t, tx.SafeMove(movedFrom, movedTo))
	require.Equal(t, 3, tx.Log())

	require.NoError(t, tx.Rollback())

	_, err := os.Stat(created)
	assert.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(removed)
	require.NoError(t, err)
	assert.Equal(t, []byte("removed original"), data)

	data, err = os.ReadFile(movedFrom)
	require.NoError(t, err)
	assert.Equal(t, []byte("moved original"), data)

	_, err = os.Stat(movedTo)
	assert.True(t, os.IsNotExist(err))
}

func TestSafeCreate_RefusesOverwrite(t *testing.T) {
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "test.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("existing"), 0o644))

	tx := Begin()
	err := tx.SafeCreate(filePath, []byte("new"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrAlreadyExists)

	// The existing file is untouched
	data, err := os.ReadFile(filePath)
	require.NoError(t, err)
	assert.Equal(t, []byte("existing"), data)
}

func TestSafeRemove_Errors(t *testing.T) {
	tempDir := t.TempDir()

	tx := Begin()

	t.Run("missing path", func(t *testing.T) {
		err := tx.SafeRemove(filepath.Join(tempDir, "missing.txt"))
		assert.ErrorIs(t, err, errors.ErrNotFound)
	})

	t.Run("directory", func(t *testing.T) {
		err := tx.SafeRemove(tempDir)
		assert.ErrorIs(t, err, errors.ErrIsDirectory)
	})
}

func TestSafeMove_Errors(t *testing.T) {
	tempDir := t.TempDir()

	tx := Begin()

	t.Run("missing source", func(t *testing.T) {
		err := tx.SafeMove(filepath.Join(tempDir, "missing.txt"), filepath.Join(tempDir, "to.txt"))
		assert.ErrorIs(t, err, errors.ErrNotFound)
	})

	t.Run("directory source", func(t *testing.T) {
		err := tx.SafeMove(tempDir, filepath.Join(tempDir, "to.txt"))
		assert.ErrorIs(t, err, errors.ErrIsDirectory)
	})
}

func TestNoOperationsAfterTerminalState(t *testing.T) {
	tempDir := t.TempDir()

	t.Run("after commit", func(t *testing.T) {
		tx := Begin()
		require.NoError(t, tx.Commit())

		err := tx.SafeCreate(filepath.Join(tempDir, "a.txt"), []byte("x"))
		assert.ErrorIs(t, err, errors.ErrTransactionClosed)
		assert.ErrorIs(t, tx.Commit(), errors.ErrTransactionClosed)
		assert.ErrorIs(t, tx.Rollback(), errors.ErrTransactionClosed)
	})

	t.Run("after rollback", func(t *testing.T) {
		tx := Begin()
		require.NoError(t, tx.Rollback())

		err := tx.SafeCreate(filepath.Join(tempDir, "b.txt"), []byte("x"))
		assert.ErrorIs(t, err, errors.ErrTransactionClosed)
	})
}

func TestRun_CommitsOnSuccess(t *testing.T) {
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "test.txt")

	err := Run(func(tx *Tx) error {
		return tx.SafeCreate(filePath, []byte("content"))
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filePath)
	require.NoError(t, err)
	assert.Equal(t, []byte("content"), data)
}

func TestRun_RollsBackOnError(t *testing.T) {
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "test.txt")
	boom := fmt.Errorf("verification failed")

	err := Run(func(tx *Tx) error {
		if err := tx.SafeCreate(filePath, []byte("content")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, statErr := os.Stat(filePath)
	assert.True(t, os.IsNotExist(statErr))
}
