// Package base64io implements a streaming Base64 encoder/decoder
// matching the libb64 conventions spec §4.B describes: the decoder
// tolerates (skips) any byte outside the alphabet instead of failing,
// and the encoder emits an unwrapped line terminated by 0, 1 or 2 '='
// pad characters.
package base64io

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

var decodeTable [256]int8

func init() {
	for i := range decodeTable {
		decodeTable[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		decodeTable[alphabet[i]] = int8(i)
	}
}

// EncodedLen returns the maximum encoded length (with padding) for n
// decoded bytes: ceil(n/3)*4.
func EncodedLen(n int) int {
	return ((n + 2) / 3) * 4
}

// DecodedLen returns the maximum decoded length for n encoded bytes:
// ceil(n/4)*3. The tolerant decoder may consume fewer valid characters
// than n, so the real decoded length can be smaller.
func DecodedLen(n int) int {
	return ((n + 3) / 4) * 3
}

// Encode appends the Base64 encoding of src to dst and returns the
// extended slice. No line wrapping is performed.
func Encode(dst, src []byte) []byte {
	i := 0
	for ; i+3 <= len(src); i += 3 {
		dst = append(dst, encodeQuantum(src[i], src[i+1], src[i+2], 3)...)
	}
	switch len(src) - i {
	case 1:
		dst = append(dst, encodeQuantum(src[i], 0, 0, 1)...)
	case 2:
		dst = append(dst, encodeQuantum(src[i], src[i+1], 0, 2)...)
	}
	return dst
}

// EncodeToString is a convenience wrapper returning a new string.
func EncodeToString(src []byte) string {
	return string(Encode(make([]byte, 0, EncodedLen(len(src))), src))
}

func encodeQuantum(b0, b1, b2 byte, n int) [4]byte {
	var out [4]byte
	out[0] = alphabet[b0>>2]
	out[1] = alphabet[(b0&0x03)<<4|(b1>>4)]
	switch n {
	case 1:
		out[2] = '='
		out[3] = '='
	case 2:
		out[2] = alphabet[(b1&0x0F)<<2]
		out[3] = '='
	default:
		out[2] = alphabet[(b1&0x0F)<<2|(b2>>6)]
		out[3] = alphabet[b2&0x3F]
	}
	return out
}

// Decode appends the decoding of src to dst and returns the extended
// slice. Any byte of src outside [A-Za-z0-9+/] is skipped; '=' ends
// decoding of the current quantum (and, per the streaming convention,
// of the whole input once a padded quantum is seen).
func Decode(dst, src []byte) []byte {
	var quantum [4]int8
	n := 0
	for _, c := range src {
		if c == '=' {
			break
		}
		v := decodeTable[c]
		if v < 0 {
			continue
		}
		quantum[n] = v
		n++
		if n == 4 {
			dst = append(dst, byte(quantum[0])<<2|byte(quantum[1])>>4)
			dst = append(dst, byte(quantum[1])<<4|byte(quantum[2])>>2)
			dst = append(dst, byte(quantum[2])<<6|byte(quantum[3]))
			n = 0
		}
	}
	switch n {
	case 2:
		dst = append(dst, byte(quantum[0])<<2|byte(quantum[1])>>4)
	case 3:
		dst = append(dst, byte(quantum[0])<<2|byte(quantum[1])>>4)
		dst = append(dst, byte(quantum[1])<<4|byte(quantum[2])>>2)
	}
	return dst
}

// DecodeString is a convenience wrapper returning a new byte slice.
func DecodeString(s string) []byte {
	return Decode(make([]byte, 0, DecodedLen(len(s))), []byte(s))
}
