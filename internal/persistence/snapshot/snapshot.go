package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version     int      `json:"version"`
	HintsDigest string   `json:"hints_digest"`
	NamesDigest string   `json:"names_digest"`
	Languages   []string `json:"languages"`
	BuiltAt     string   `json:"built_at"`
}

// IndexV1 is the compiled form of the hint index.
type IndexV1 struct {
	Header Header `json:"header"`

	Coords []CoordV1 `json:"coords"`
	Names  []NameV1  `json:"names"`
	Stats  StatsV1   `json:"stats"`
}

type CoordV1 struct {
	X    int32       `json:"x"`
	Y    int32       `json:"y"`
	Dirs [4][]StepV1 `json:"dirs"`
}

type StepV1 struct {
	D   uint32   `json:"d"`
	X   int32    `json:"x"`
	Y   int32    `json:"y"`
	IDs []uint32 `json:"ids"`
}

// NameV1 stores names in Header.Languages order.
type NameV1 struct {
	ID    uint32   `json:"id"`
	Names []string `json:"names"`
}

type StatsV1 struct {
	Coords       int `json:"coords"`
	Steps        int `json:"steps"`
	IDs          int `json:"ids"`
	Names        int `json:"names"`
	DroppedSteps int `json:"dropped_steps"`
	DroppedIDs   int `json:"dropped_ids"`
	DroppedNames int `json:"dropped_names"`
}

func WriteIndex(path string, snap IndexV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := encode(f, snap); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func encode(f *os.File, snap IndexV1) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func ReadIndex(path string) (IndexV1, error) {
	var snap IndexV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	hb, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	var hdr Header
	if err := json.Unmarshal(hb, &hdr); err != nil {
		return snap, fmt.Errorf("decode header: %w", err)
	}
	if hdr.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", hdr.Version)
	}

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// ReadHeader reads only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var hdr Header
	f, err := os.Open(path)
	if err != nil {
		return hdr, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return hdr, err
	}
	defer dec.Close()

	hb, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return hdr, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(hb, &hdr); err != nil {
		return hdr, fmt.Errorf("decode header: %w", err)
	}
	return hdr, nil
}
