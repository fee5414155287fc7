// Package auth generates the authentication token expected by the legacy
// Creality control channel.
//
// The resin (Halot) firmware authenticates requests with a token derived
// from the shared printer password: the password is DES-ECB encrypted with
// a fixed vendor key and base64 encoded. The newer FDM firmware accepts the
// same token field but tolerates an empty password.
package auth

import (
	"crypto/des"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// vendorKey is the fixed 8-byte DES key baked into the vendor firmware.
// It is the ASCII form of the hex string 6138356539643638.
const vendorKey = "a85e9d68"

// Token derives the wire authentication token for the given password.
// An empty password is valid and produces the token for "" (the printer
// side accepts it when no password is configured).
func Token(password string) (string, error) {
	block, err := des.NewCipher([]byte(vendorKey))
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}

	plain := pad([]byte(password), block.BlockSize())
	out := make([]byte, len(plain))

	// The firmware uses ECB mode, so each block is encrypted independently.
	for i := 0; i < len(plain); i += block.BlockSize() {
		block.Encrypt(out[i:i+block.BlockSize()], plain[i:i+block.BlockSize()])
	}

	return base64.StdEncoding.EncodeToString(out), nil
}

// pad applies PKCS#7 padding to match the vendor implementation.
func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	padded := make([]byte, len(b)+n)
	copy(padded, b)
	for i := len(b); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

// legacyRequest is the pre-envelope request shape used by the resin line
// and by connection probes: {"cmd": "...", "token": "..."}.
type legacyRequest struct {
	Cmd   string `json:"cmd"`
	Token string `json:"token"`
}

// LegacyRequest builds a legacy command frame carrying the auth token.
// GET_PRINT_STATUS sent through this shape doubles as the connection
// handshake: printers of both lines reply with a status frame.
func LegacyRequest(cmd, password string) ([]byte, error) {
	token, err := Token(password)
	if err != nil {
		return nil, err
	}
	return json.Marshal(legacyRequest{Cmd: cmd, Token: token})
}
