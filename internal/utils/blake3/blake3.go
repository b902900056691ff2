package blake3

import (
	"encoding/hex"
	"io"

	"github.com/zeebo/blake3"
)

// Compute returns the hex digest of everything read from data.
func Compute(data io.Reader) (string, error) {
	hash := blake3.New()
	if _, err := io.Copy(hash, data); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// Digester accumulates a digest as bytes stream past it, typically through
// an io.TeeReader.
type Digester struct {
	hash *blake3.Hasher
}

func NewDigester() *Digester {
	return &Digester{hash: blake3.New()}
}

func (d *Digester) Write(p []byte) (int, error) {
	return d.hash.Write(p)
}

func (d *Digester) Hex() string {
	return hex.EncodeToString(d.hash.Sum(nil))
}
