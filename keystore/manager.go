// Package keystore keeps named ed25519 keypairs on disk for the command line client.
package keystore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/govm-net/counter/core"
	"github.com/govm-net/counter/crypto/ed25519"
)

var (
	ErrKeyExists   = errors.New("key already exists")
	ErrKeyNotFound = errors.New("key not found")
	ErrInvalidName = errors.New("invalid key name")

	validName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

const (
	keyFile      = "key.json"
	metadataFile = "metadata.json"
)

// Manager stores keys under a root directory, one directory per key.
type Manager struct {
	rootDir string
	log     *zap.Logger
}

// Key is a named keypair
type Key struct {
	Name       string
	PrivateKey ed25519.PrivateKey
	CreateTime time.Time
}

// Address returns the account controlled by the key
func (k *Key) Address() core.Address {
	return k.PrivateKey.Address()
}

// KeyMetadata is the public part of a stored key
type KeyMetadata struct {
	Name       string    `json:"name"`
	Address    string    `json:"address"`
	CreateTime time.Time `json:"create_time"`
}

type storedKey struct {
	PrivateKey string `json:"private_key"`
}

// NewManager creates a key manager rooted at rootDir
func NewManager(rootDir string, log *zap.Logger) (*Manager, error) {
	if log == nil {
		log = zap.NewNop()
	}
	// Ensure root directory exists
	if err := os.MkdirAll(rootDir, 0700); err != nil {
		log.Error("failed to create root directory", zap.String("dir", rootDir), zap.Error(err))
		return nil, errors.Wrap(err, "failed to create root directory")
	}
	return &Manager{rootDir: rootDir, log: log}, nil
}

func (m *Manager) keyDir(name string) string {
	return filepath.Join(m.rootDir, name)
}

// Generate creates and stores a new random key
func (m *Manager) Generate(name string) (*Key, error) {
	priv, err := ed25519.GeneratePrivateKey()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate key")
	}
	return m.Import(name, priv)
}

// Import stores an existing private key under name
func (m *Manager) Import(name string, priv ed25519.PrivateKey) (*Key, error) {
	if !validName.MatchString(name) {
		return nil, errors.Wrapf(ErrInvalidName, "%q", name)
	}

	// Check whether the key already exists
	dir := m.keyDir(name)
	if _, err := os.Stat(dir); err == nil {
		return nil, errors.Wrapf(ErrKeyExists, "%s", name)
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "failed to check key directory")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Wrap(err, "failed to create key directory")
	}

	key := &Key{Name: name, PrivateKey: priv, CreateTime: time.Now().UTC()}
	if err := m.saveKeyFiles(key); err != nil {
		// Remove the partially written directory
		os.RemoveAll(dir)
		return nil, errors.Wrap(err, "failed to save key files")
	}
	m.log.Info("key stored", zap.String("name", name), zap.Stringer("address", key.Address()))
	return key, nil
}

// Get loads the named key
func (m *Manager) Get(name string) (*Key, error) {
	if !validName.MatchString(name) {
		return nil, errors.Wrapf(ErrInvalidName, "%q", name)
	}
	return m.loadKey(name)
}

// List returns the metadata of every stored key, ordered by name
func (m *Manager) List() ([]*KeyMetadata, error) {
	entries, err := os.ReadDir(m.rootDir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read key directory")
	}
	var out []*KeyMetadata
	for _, entry := range entries {
		if !entry.IsDir() || !validName.MatchString(entry.Name()) {
			continue
		}
		md, err := m.loadMetadata(entry.Name())
		if err != nil {
			m.log.Warn("skipping unreadable key", zap.String("name", entry.Name()), zap.Error(err))
			continue
		}
		out = append(out, md)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func writeJSON(path string, v any, perm os.FileMode) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal")
	}
	return os.WriteFile(path, data, perm)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// saveKeyFiles writes the secret and the metadata of key
func (m *Manager) saveKeyFiles(key *Key) error {
	dir := m.keyDir(key.Name)

	if err := writeJSON(filepath.Join(dir, keyFile), storedKey{PrivateKey: key.PrivateKey.String()}, 0600); err != nil {
		return errors.Wrap(err, "failed to save private key")
	}

	metadata := KeyMetadata{
		Name:       key.Name,
		Address:    key.Address().String(),
		CreateTime: key.CreateTime,
	}
	if err := writeJSON(filepath.Join(dir, metadataFile), metadata, 0644); err != nil {
		return errors.Wrap(err, "failed to save metadata")
	}
	return nil
}

func (m *Manager) loadMetadata(name string) (*KeyMetadata, error) {
	var md KeyMetadata
	if err := readJSON(filepath.Join(m.keyDir(name), metadataFile), &md); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrKeyNotFound, "%s", name)
		}
		return nil, errors.Wrap(err, "failed to read metadata")
	}
	return &md, nil
}

// loadKey reads a key and checks it against its metadata
func (m *Manager) loadKey(name string) (*Key, error) {
	md, err := m.loadMetadata(name)
	if err != nil {
		return nil, err
	}

	var sk storedKey
	if err := readJSON(filepath.Join(m.keyDir(name), keyFile), &sk); err != nil {
		return nil, errors.Wrap(err, "failed to read private key")
	}
	priv, err := ed25519.PrivateKeyFromString(sk.PrivateKey)
	if err != nil {
		return nil, errors.Wrapf(err, "key %s", name)
	}

	key := &Key{Name: name, PrivateKey: priv, CreateTime: md.CreateTime}
	if key.Address().String() != md.Address {
		return nil, errors.Errorf("key %s does not match its recorded address %s", name, md.Address)
	}
	return key, nil
}
