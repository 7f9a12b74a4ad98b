package protocol

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Field type tags for the memo's deterministic encoding. Each field is
// tagged and length-prefixed so that no combination of field values can
// collide across field boundaries (e.g. endpoint="ab"+bodyHash vs.
// endpoint="a"+"b"-prefixed bodyHash hash to different inputs).
const (
	tagString byte = 0x01
	tagBytes32 byte = 0x02
	tagUint64  byte = 0x03
)

func appendString(buf []byte, tag byte, s string) []byte {
	buf = append(buf, tag)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, s...)
	return buf
}

func appendBytes32(buf []byte, tag byte, b [32]byte) []byte {
	buf = append(buf, tag)
	buf = append(buf, b[:]...)
	return buf
}

func appendUint64(buf []byte, tag byte, v int64) []byte {
	buf = append(buf, tag)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	buf = append(buf, b[:]...)
	return buf
}

// ComputeMemo derives the deterministic 32-byte memo for a request: a
// keccak256 hash of the type-tagged, length-prefixed encoding of
// (endpoint, bodyHash, nonce, expiry). Identical inputs always produce the
// identical memo; changing any single field changes the memo.
func ComputeMemo(endpoint string, bodyHash [32]byte, nonce string, expiry int64) common.Hash {
	var buf []byte
	buf = appendString(buf, tagString, endpoint)
	buf = appendBytes32(buf, tagBytes32, bodyHash)
	buf = appendString(buf, tagString, nonce)
	buf = appendUint64(buf, tagUint64, expiry)

	return common.BytesToHash(crypto.Keccak256(buf))
}
