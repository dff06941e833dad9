package bc

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

var xmlKey = [8]byte{0x1F, 0x2D, 0x3C, 0x4B, 0x5A, 0x69, 0x78, 0xFF}

// Crypt - BC XOR cipher, same function for encrypt and decrypt.
// Offset is the channel ID of the message.
func Crypt(offset uint8, src []byte) []byte {
	dst := make([]byte, len(src))
	for i, b := range src {
		dst[i] = b ^ xmlKey[(int(offset)+i)%len(xmlKey)] ^ offset
	}
	return dst
}

// EmptyLegacyPassword - camera expects this value when there is no password
const EmptyLegacyPassword = "D41D8CD98F00B204E9800998ECF8427\x00"

func md5Upper(s string) string {
	hash := md5.Sum([]byte(s))
	return strings.ToUpper(hex.EncodeToString(hash[:]))
}

// LegacyDigest - uppercase MD5 hex with the last char replaced by zero.
// Camera firmware copies 32 bytes into a C string buffer, so only 31 chars are compared.
func LegacyDigest(s string) string {
	return md5Upper(s)[:31] + "\x00"
}

// ModernDigest - same as LegacyDigest, but XML drops the trailing zero
func ModernDigest(s string) string {
	return md5Upper(s)[:31]
}

// AESKey - first 16 chars of uppercase MD5 hex of "nonce-password"
func AESKey(nonce, password string) (key [16]byte) {
	copy(key[:], md5Upper(nonce+"-"+password))
	return
}
