package apdu

// Class byte used by every command of the Stellar application.
const CLA byte = 0xE0

// Instruction opcodes understood by the Stellar application.
const (
	InsGetPublicKey        byte = 0x02
	InsSignTx              byte = 0x04
	InsGetAppConfiguration byte = 0x06
	InsSignTxHash          byte = 0x08
)

// Parameter bytes.
const (
	P1GetPublicKey byte = 0x00

	P2GetPublicKeySilent  byte = 0x00
	P2GetPublicKeyDisplay byte = 0x01

	P1SignTxFirst    byte = 0x00
	P1SignTxNotFirst byte = 0x80
	P2SignTxLast     byte = 0x00
	P2SignTxMore     byte = 0x80
)

// Status words with a specific meaning to callers.
const (
	StatusUserRejected     uint16 = 0x6985
	StatusHashSigningOff   uint16 = 0x6C66
	StatusAppNotOpen       uint16 = 0x6E00
	StatusDataTooLarge     uint16 = 0xB004
	StatusInvalidParameter uint16 = 0x6B00
)

// Maximum size of a SIGN_TX chunk including the path header.
const MaxChunk = 150

// GetPublicKey returns the command retrieving the key at path.  If
// display is set, the device shows the key and waits for approval
// before answering.
func GetPublicKey(path HDPath, display bool) Command {
	p2 := P2GetPublicKeySilent
	if display {
		p2 = P2GetPublicKeyDisplay
	}
	return Command{
		Class:       CLA,
		Instruction: InsGetPublicKey,
		P1:          P1GetPublicKey,
		P2:          p2,
		Data:        path.Bytes(),
	}
}

func GetAppConfiguration() Command {
	return Command{Class: CLA, Instruction: InsGetAppConfiguration}
}

// SignTxHash returns the command asking the device to sign a 32-byte
// transaction hash (blind signing).
func SignTxHash(path HDPath, hash [32]byte) Command {
	data := path.Bytes()
	data = append(data, hash[:]...)
	return Command{Class: CLA, Instruction: InsSignTxHash, Data: data}
}

// SignTx splits a path and signature payload into the sequence of
// SIGN_TX commands the device expects.  The first chunk starts with
// the path; each chunk is at most MaxChunk minus the path header.
func SignTx(path HDPath, payload []byte) []Command {
	data := append(path.Bytes(), payload...)
	size := MaxChunk - (1 + 4*len(path))
	var cmds []Command
	for off := 0; off < len(data); off += size {
		end := off + size
		if end > len(data) {
			end = len(data)
		}
		p1, p2 := P1SignTxNotFirst, P2SignTxMore
		if off == 0 {
			p1 = P1SignTxFirst
		}
		if end == len(data) {
			p2 = P2SignTxLast
		}
		cmds = append(cmds, Command{
			Class:       CLA,
			Instruction: InsSignTx,
			P1:          p1,
			P2:          p2,
			Data:        data[off:end],
		})
	}
	return cmds
}
