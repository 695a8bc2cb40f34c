package keys

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/firefly-zero/firefly-cli/rom"
	"github.com/firefly-zero/firefly-cli/storage/localfs"
)

// Store is a filesystem-backed set of author keys.
//
// The directory is usually the sys directory of a VFS root, so the keys
// used for building are the same keys an import pins against.
type Store struct {
	Directory string
}

// NewStore returns a store rooted at directory.
func NewStore(directory string) *Store {
	return &Store{Directory: directory}
}

func (s *Store) privPath(author string) string {
	return filepath.Join(s.Directory, "priv", author)
}

func (s *Store) pubPath(author string) string {
	return filepath.Join(s.Directory, "pub", author)
}

func checkAuthor(author string) error {
	if err := rom.ValidateID(author); err != nil {
		return rom.Wrap(rom.KindSchemaViolation, author, "invalid author id", err)
	}
	return nil
}

// ParseSeedHex parses a hex encoded seed, with an optional 0x prefix.
func ParseSeedHex(seedHex string) ([]byte, error) {
	seedHex = strings.TrimSpace(seedHex)
	seedHex = strings.TrimPrefix(seedHex, "0x")
	data, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, rom.Wrap(rom.KindSchemaViolation, "", "decode seed", err)
	}
	if len(data) != SeedSize {
		return nil, rom.Errorf(rom.KindSchemaViolation, "", "expected seed length of %d bytes, got %d", SeedSize, len(data))
	}
	return data, nil
}

// Create stores a new keypair for author. A nil seed is drawn from
// crypto/rand. Without overwrite an existing key is an error.
func (s *Store) Create(author string, alg Alg, seed []byte, overwrite bool) (*Keypair, error) {
	if err := checkAuthor(author); err != nil {
		return nil, err
	}
	if seed == nil {
		seed = make([]byte, SeedSize)
		if _, err := rand.Read(seed); err != nil {
			return nil, rom.IOError("generate seed", err)
		}
	}
	kp, err := NewKeypair(alg, seed)
	if err != nil {
		return nil, err
	}

	priv := []byte(hex.EncodeToString(kp.seed) + "\n")
	pub := []byte(kp.pub.String() + "\n")
	if err := os.MkdirAll(filepath.Dir(s.privPath(author)), 0o700); err != nil {
		return nil, rom.IOError("create key directory", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.pubPath(author)), 0o755); err != nil {
		return nil, rom.IOError("create key directory", err)
	}
	if overwrite {
		err = localfs.WriteFile(s.privPath(author), priv, 0o600)
	} else {
		err = localfs.Create(s.privPath(author), priv, 0o600)
	}
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, rom.Errorf(rom.KindIOFailure, author, "key already exists")
		}
		return nil, rom.IOError("write private key", err)
	}
	if err := localfs.WriteFile(s.pubPath(author), pub, 0o644); err != nil {
		_ = os.Remove(s.privPath(author))
		return nil, rom.IOError("write public key", err)
	}
	return kp, nil
}

// Load reads the keypair of author. A missing key is KeyNotFound.
func (s *Store) Load(author string) (*Keypair, error) {
	pub, err := s.Public(author)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.privPath(author))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, rom.Errorf(rom.KindKeyNotFound, author, "no private key")
		}
		return nil, rom.IOError("read private key", err)
	}
	seed, err := ParseSeedHex(string(data))
	if err != nil {
		return nil, rom.WithSubject(err, author)
	}
	kp, err := NewKeypair(pub.Alg, seed)
	if err != nil {
		return nil, err
	}
	if !kp.pub.Equal(pub) {
		return nil, rom.Errorf(rom.KindSignatureMismatch, author, "private key does not match the stored public key")
	}
	return kp, nil
}

// LoadOrCreate loads the key of author, creating one with alg when it is
// absent and create is set.
func (s *Store) LoadOrCreate(author string, alg Alg, create bool) (kp *Keypair, created bool, err error) {
	kp, err = s.Load(author)
	if err == nil || !rom.IsKind(err, rom.KindKeyNotFound) || !create {
		return kp, false, err
	}
	kp, err = s.Create(author, alg, nil, false)
	if err != nil {
		return nil, false, err
	}
	return kp, true, nil
}

// Public reads the public key of author.
func (s *Store) Public(author string) (PublicKey, error) {
	if err := checkAuthor(author); err != nil {
		return PublicKey{}, err
	}
	data, err := os.ReadFile(s.pubPath(author))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return PublicKey{}, rom.Errorf(rom.KindKeyNotFound, author, "no public key")
		}
		return PublicKey{}, rom.IOError("read public key", err)
	}
	pub, err := ParsePublicKey(string(data))
	if err != nil {
		return PublicKey{}, rom.WithSubject(err, author)
	}
	return pub, nil
}

// Remove deletes both halves of the key of author.
func (s *Store) Remove(author string) error {
	if err := checkAuthor(author); err != nil {
		return err
	}
	found := false
	for _, path := range []string{s.privPath(author), s.pubPath(author)} {
		err := os.Remove(path)
		switch {
		case err == nil:
			found = true
		case errors.Is(err, fs.ErrNotExist):
		default:
			return rom.IOError("remove key", err)
		}
	}
	if !found {
		return rom.Errorf(rom.KindKeyNotFound, author, "no key to remove")
	}
	return nil
}

// KeyEntry describes one stored key.
type KeyEntry struct {
	Author  string
	Public  PublicKey
	Private bool
}

// List returns every author with a public key, sorted by author.
func (s *Store) List() ([]KeyEntry, error) {
	entries, err := os.ReadDir(filepath.Join(s.Directory, "pub"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, rom.IOError("list keys", err)
	}
	var authors []string
	for _, e := range entries {
		if e.Type().IsRegular() && rom.ValidateID(e.Name()) == nil {
			authors = append(authors, e.Name())
		}
	}
	sort.Strings(authors)

	result := make([]KeyEntry, 0, len(authors))
	for _, author := range authors {
		pub, err := s.Public(author)
		if err != nil {
			return nil, err
		}
		_, perr := os.Stat(s.privPath(author))
		result = append(result, KeyEntry{Author: author, Public: pub, Private: perr == nil})
	}
	return result, nil
}
