package apdu

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	c := Command{Class: 0xE0, Instruction: 0x02, P1: 0x00, P2: 0x01,
		Data: []byte{0xaa, 0xbb}}
	b, err := c.Encode()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xE0, 0x02, 0x00, 0x01, 0x02, 0xaa, 0xbb}, b)
}

func TestEncodeEmptyData(t *testing.T) {
	b := GetAppConfiguration().MustEncode()
	assert.Equal(t, []byte{0xE0, 0x06, 0x00, 0x00, 0x00}, b)
}

func TestEncodeTooLong(t *testing.T) {
	_, err := Command{Data: make([]byte, 256)}.Encode()
	require.Error(t, err)
	assert.Equal(t, ErrDataTooLong, errors.Cause(err))
	assert.Panics(t, func() { Command{Data: make([]byte, 300)}.MustEncode() })

	b, err := Command{Data: make([]byte, 255)}.Encode()
	require.NoError(t, err)
	assert.Equal(t, byte(255), b[4])
}

func TestEncodeInjective(t *testing.T) {
	cmds := []Command{
		{},
		{Class: 1},
		{Instruction: 1},
		{P1: 1},
		{P2: 1},
		{Data: []byte{0}},
		{Data: []byte{0, 0}},
		{Data: []byte{1}},
		{Class: 1, Data: []byte{1}},
	}
	seen := map[string]int{}
	for i, c := range cmds {
		k := string(c.MustEncode())
		if j, ok := seen[k]; ok {
			t.Errorf("commands %d and %d encode identically", j, i)
		}
		seen[k] = i
	}
}

func TestDecode(t *testing.T) {
	a, err := Decode([]byte{0x01, 0x02, 0x03, 0x90, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, a.Data)
	assert.Equal(t, StatusOK, a.ReturnCode)
	assert.True(t, a.OK())

	a, err = Decode([]byte{0x6C, 0x66})
	require.NoError(t, err)
	assert.Empty(t, a.Data)
	assert.Equal(t, StatusHashSigningOff, a.ReturnCode)
	assert.False(t, a.OK())

	_, err = Decode([]byte{0x90})
	assert.Equal(t, ErrAnswerTooShort, err)
	_, err = Decode(nil)
	assert.Equal(t, ErrAnswerTooShort, err)
}

func TestDecodeHexStatusOnly(t *testing.T) {
	a, err := DecodeHex("9000")
	require.NoError(t, err)
	assert.Empty(t, a.Data)
	assert.Equal(t, uint16(0x9000), a.ReturnCode)

	_, err = DecodeHex("zz")
	assert.Error(t, err)
}

func TestStellarPath(t *testing.T) {
	p := StellarPath(3)
	assert.Equal(t, []byte{
		0x03,
		0x80, 0x00, 0x00, 0x2C,
		0x80, 0x00, 0x00, 0x94,
		0x80, 0x00, 0x00, 0x03,
	}, p.Bytes())
	assert.Equal(t, "m/44'/148'/3'", p.String())
}

func TestParsePath(t *testing.T) {
	p, err := ParsePath("m/44'/148'/3'")
	require.NoError(t, err)
	assert.Equal(t, StellarPath(3), p)

	p, err = ParsePath("m/44h/148h/0/1")
	require.NoError(t, err)
	assert.Equal(t, HDPath{44 | Hardened, 148 | Hardened, 0, 1}, p)

	for _, bad := range []string{"", "m", "44'/148'", "m/x", "m/2147483648",
		"m/1/2/3/4/5/6/7/8/9/10/11"} {
		_, err := ParsePath(bad)
		assert.Error(t, err, bad)
	}
}

func TestSignTxChunks(t *testing.T) {
	path := StellarPath(0)
	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = byte(i)
	}
	cmds := SignTx(path, payload)
	size := MaxChunk - 13
	require.Len(t, cmds, (13+300+size-1)/size)

	var joined []byte
	for i, c := range cmds {
		assert.Equal(t, InsSignTx, c.Instruction)
		if i == 0 {
			assert.Equal(t, P1SignTxFirst, c.P1)
			assert.Equal(t, path.Bytes(), c.Data[:13])
		} else {
			assert.Equal(t, P1SignTxNotFirst, c.P1)
		}
		if i == len(cmds)-1 {
			assert.Equal(t, P2SignTxLast, c.P2)
		} else {
			assert.Equal(t, P2SignTxMore, c.P2)
			assert.Len(t, c.Data, size)
		}
		joined = append(joined, c.Data...)
	}
	assert.Equal(t, payload, joined[13:])
}

func TestSignTxSingleChunk(t *testing.T) {
	cmds := SignTx(StellarPath(1), []byte{1, 2, 3})
	require.Len(t, cmds, 1)
	assert.Equal(t, P1SignTxFirst, cmds[0].P1)
	assert.Equal(t, P2SignTxLast, cmds[0].P2)
}

func ExampleGetPublicKey() {
	fmt.Printf("%x\n", GetPublicKey(StellarPath(0), false).MustEncode())
	// Output:
	// e00200000d038000002c8000009480000000
}
