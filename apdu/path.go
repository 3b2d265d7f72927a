package apdu

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Bit marking a hardened BIP32 child index.
const Hardened uint32 = 0x80000000

// Deepest path the device accepts.
const MaxDepth = 10

// A BIP32 derivation path.  Treat as immutable.
type HDPath []uint32

var ErrBadPath = errors.New("apdu: invalid derivation path")

// StellarPath returns the SEP-5 path m/44'/148'/index'.
func StellarPath(index uint32) HDPath {
	return HDPath{44 | Hardened, 148 | Hardened, index | Hardened}
}

// ParsePath parses a path such as "m/44'/148'/0'".  Both ' and h
// mark a hardened index.
func ParsePath(s string) (HDPath, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) == 0 || parts[0] != "m" {
		return nil, errors.Wrap(ErrBadPath, s)
	}
	parts = parts[1:]
	if len(parts) == 0 || len(parts) > MaxDepth {
		return nil, errors.Wrapf(ErrBadPath, "%s: depth %d", s, len(parts))
	}
	ret := make(HDPath, len(parts))
	for i, p := range parts {
		var hard uint32
		if strings.HasSuffix(p, "'") || strings.HasSuffix(p, "h") {
			hard = Hardened
			p = p[:len(p)-1]
		}
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil || uint32(n)&Hardened != 0 {
			return nil, errors.Wrap(ErrBadPath, s)
		}
		ret[i] = uint32(n) | hard
	}
	return ret, nil
}

// Bytes returns depth || index_0 || index_1 ..., each index
// big-endian, the form in which every command carries a path.
func (p HDPath) Bytes() []byte {
	out := make([]byte, 1, 1+4*len(p))
	out[0] = byte(len(p))
	var b [4]byte
	for _, i := range p {
		binary.BigEndian.PutUint32(b[:], i)
		out = append(out, b[:]...)
	}
	return out
}

func (p HDPath) String() string {
	out := &strings.Builder{}
	out.WriteString("m")
	for _, i := range p {
		if i&Hardened != 0 {
			fmt.Fprintf(out, "/%d'", i&^Hardened)
		} else {
			fmt.Fprintf(out, "/%d", i)
		}
	}
	return out.String()
}
