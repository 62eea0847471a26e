package keystore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-net/counter/crypto/ed25519"
)

func TestManager(t *testing.T) {
	tmpDir := t.TempDir()
	manager, err := NewManager(tmpDir, nil)
	require.NoError(t, err)

	key, err := manager.Generate("alice")
	require.NoError(t, err)

	// Verify the files were created
	keyDir := filepath.Join(tmpDir, "alice")
	assert.DirExists(t, keyDir)
	assert.FileExists(t, filepath.Join(keyDir, "key.json"))
	assert.FileExists(t, filepath.Join(keyDir, "metadata.json"))

	info, err := os.Stat(filepath.Join(keyDir, "key.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := manager.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, key.PrivateKey, loaded.PrivateKey)
	assert.Equal(t, key.Address(), loaded.Address())
	assert.True(t, key.CreateTime.Equal(loaded.CreateTime))
}

func TestImportAndList(t *testing.T) {
	manager, err := NewManager(t.TempDir(), nil)
	require.NoError(t, err)

	priv, err := ed25519.GeneratePrivateKey()
	require.NoError(t, err)
	_, err = manager.Import("payer", priv)
	require.NoError(t, err)
	_, err = manager.Generate("counter-1")
	require.NoError(t, err)

	_, err = manager.Import("payer", priv)
	require.ErrorIs(t, err, ErrKeyExists)

	list, err := manager.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "counter-1", list[0].Name)
	assert.Equal(t, "payer", list[1].Name)
	assert.Equal(t, priv.Address().String(), list[1].Address)
}

func TestInvalidNames(t *testing.T) {
	manager, err := NewManager(t.TempDir(), nil)
	require.NoError(t, err)

	for _, name := range []string{"", "..", "a/b", "has space"} {
		_, err := manager.Generate(name)
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}

	_, err = manager.Get("missing")
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestCorruptKeyDetected(t *testing.T) {
	dir := t.TempDir()
	manager, err := NewManager(dir, nil)
	require.NoError(t, err)
	_, err = manager.Generate("alice")
	require.NoError(t, err)
	bob, err := manager.Generate("bob")
	require.NoError(t, err)

	// Swap bob's secret into alice's directory
	data, err := os.ReadFile(filepath.Join(dir, bob.Name, "key.json"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alice", "key.json"), data, 0600))

	_, err = manager.Get("alice")
	require.Error(t, err)
}
