package stcdetail

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// PassphraseFile is the io.Reader from which passphrases and
// confirmations are read.  If it is a terminal, a prompt is written
// to PassphrasePrompt and echo is disabled while a passphrase is
// typed.  If set to nil, GetPass tries /dev/tty.  Set it to
// io.MultiReader() to answer every prompt with an empty line.
var PassphraseFile io.Reader = os.Stdin

// Where prompts go when PassphraseFile is a terminal.
var PassphrasePrompt io.Writer = os.Stderr

func getTtyFd(f interface{}) int {
	if file, ok := f.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		return int(file.Fd())
	}
	return -1
}

func openTty() {
	if PassphraseFile != nil {
		return
	}
	if tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0); err == nil {
		PassphraseFile = tty
		PassphrasePrompt = tty
	} else {
		fmt.Fprintln(os.Stderr, err.Error())
		PassphraseFile = io.MultiReader()
		PassphrasePrompt = io.Discard
	}
}

// ReadTextLine reads one line from r without buffering past the
// newline, and strips the line terminator.
func ReadTextLine(r io.Reader) ([]byte, error) {
	var line []byte
	var c [1]byte
	for {
		n, err := r.Read(c[:])
		if n == 1 {
			if c[0] == '\n' {
				break
			}
			line = append(line, c[0])
		}
		if err != nil {
			if err == io.EOF && len(line) > 0 {
				break
			}
			return line, err
		}
	}
	return bytes.TrimRight(line, "\r"), nil
}

// Read a passphrase from PassphraseFile.  Echo is disabled if it is
// a terminal.
func GetPass(prompt string) []byte {
	openTty()
	if fd := getTtyFd(PassphraseFile); fd >= 0 {
		fmt.Fprint(PassphrasePrompt, prompt)
		pw, _ := term.ReadPassword(fd)
		fmt.Fprintln(PassphrasePrompt, "")
		return pw
	}
	line, _ := ReadTextLine(PassphraseFile)
	return line
}

// Call GetPass until the user types the same passphrase twice.
func GetPass2(prompt string) []byte {
	for {
		pw1 := GetPass(prompt)
		if len(pw1) == 0 || getTtyFd(PassphraseFile) < 0 {
			return pw1
		}
		pw2 := GetPass("Again: ")
		if bytes.Equal(pw1, pw2) {
			Zero(pw2)
			return pw1
		}
		Zero(pw1)
		Zero(pw2)
		fmt.Fprintln(PassphrasePrompt, "The two do not match.")
	}
}

// Confirm writes prompt and returns true only if the answer is y or
// yes in any case.  Anything else, including end of input, is a no.
func Confirm(prompt string) bool {
	openTty()
	fmt.Fprint(PassphrasePrompt, prompt)
	var line []byte
	if fd := getTtyFd(PassphraseFile); fd >= 0 {
		s, _ := bufio.NewReader(PassphraseFile).ReadString('\n')
		line = []byte(s)
	} else {
		line, _ = ReadTextLine(PassphraseFile)
	}
	ans := strings.ToLower(strings.TrimSpace(string(line)))
	return ans == "y" || ans == "yes"
}
