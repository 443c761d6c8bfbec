package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"
)

const (
	HintsFile    = "data.json"
	NamesFile    = "nameIdData.json"
	ExcludedFile = "excludedCoordinates.json"
)

// Catalogs holds the raw hint and name tables as read from the data directory.
// Values stay undecoded; the index builder owns their validation.
type Catalogs struct {
	Hints       map[string]json.RawMessage
	HintsDigest string
	HintsPath   string

	Names       map[string]json.RawMessage
	NamesDigest string
	NamesPath   string

	Excluded []string
}

func Load(dataDir string) (*Catalogs, error) {
	var c Catalogs

	raw, path, err := readTable(dataDir, HintsFile)
	if err != nil {
		return nil, err
	}
	c.HintsPath = path
	c.HintsDigest = sha256Hex(raw)
	if err := json.Unmarshal(raw, &c.Hints); err != nil {
		return nil, fmt.Errorf("%s: %w", HintsFile, err)
	}
	if c.Hints == nil {
		return nil, fmt.Errorf("%s: expected an object", HintsFile)
	}

	raw, path, err = readTable(dataDir, NamesFile)
	if err != nil {
		return nil, err
	}
	c.NamesPath = path
	c.NamesDigest = sha256Hex(raw)
	if err := json.Unmarshal(raw, &c.Names); err != nil {
		return nil, fmt.Errorf("%s: %w", NamesFile, err)
	}
	if c.Names == nil {
		return nil, fmt.Errorf("%s: expected an object", NamesFile)
	}

	raw, _, err = readTable(dataDir, ExcludedFile)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Optional.
	case err != nil:
		return nil, err
	default:
		if err := json.Unmarshal(raw, &c.Excluded); err != nil {
			return nil, fmt.Errorf("%s: %w", ExcludedFile, err)
		}
		sort.Strings(c.Excluded)
	}

	return &c, nil
}

// readTable reads name from dir, preferring the plain file and falling back to
// name+".zst".
func readTable(dir, name string) ([]byte, string, error) {
	p := filepath.Join(dir, name)
	b, err := os.ReadFile(p)
	if err == nil {
		return b, p, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, p, err
	}
	zp := p + ".zst"
	b, zerr := ReadZstdFile(zp)
	if zerr != nil {
		if errors.Is(zerr, os.ErrNotExist) {
			return nil, p, fmt.Errorf("%s: %w", name, os.ErrNotExist)
		}
		return nil, zp, zerr
	}
	return b, zp, nil
}

func ReadZstdFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	b, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return b, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
