package signer

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Hand-rolled ERC20 call encoding, in the same type-tagged spirit as
// pkg/protocol's memo encoding: these four functions are the only ABI
// surface the local signer needs, so a full ABI-JSON package is more
// machinery than the job calls for.

var (
	selectorTransfer          = selector("transfer(address,uint256)")
	selectorTransferWithMemo  = selector("transferWithMemo(address,uint256,bytes32)")
	selectorBalanceOf         = selector("balanceOf(address)")
	selectorBatchTransferMemo = selector("batchTransferWithMemo(address[],uint256[],bytes32[])")
)

func selector(signature string) [4]byte {
	var sel [4]byte
	copy(sel[:], crypto.Keccak256([]byte(signature))[:4])
	return sel
}

func packAddress(addr common.Address) []byte {
	padded := make([]byte, 32)
	copy(padded[12:], addr.Bytes())
	return padded
}

func packUint256(v *big.Int) []byte {
	padded := make([]byte, 32)
	v.FillBytes(padded)
	return padded
}

func packBytes32(h common.Hash) []byte {
	out := make([]byte, 32)
	copy(out, h.Bytes())
	return out
}

// packTransfer encodes transfer(address,uint256).
func packTransfer(recipient common.Address, amount *big.Int) []byte {
	data := append([]byte{}, selectorTransfer[:]...)
	data = append(data, packAddress(recipient)...)
	data = append(data, packUint256(amount)...)
	return data
}

// packTransferWithMemo encodes transferWithMemo(address,uint256,bytes32).
func packTransferWithMemo(recipient common.Address, amount *big.Int, memo common.Hash) []byte {
	data := append([]byte{}, selectorTransferWithMemo[:]...)
	data = append(data, packAddress(recipient)...)
	data = append(data, packUint256(amount)...)
	data = append(data, packBytes32(memo)...)
	return data
}

// packBalanceOf encodes balanceOf(address).
func packBalanceOf(owner common.Address) []byte {
	data := append([]byte{}, selectorBalanceOf[:]...)
	data = append(data, packAddress(owner)...)
	return data
}

// packBatchTransferWithMemo encodes a dynamic-array call with three
// parallel arrays (recipients, amounts, memos), using the standard ABI
// dynamic-array layout: a head of 32-byte offsets followed by each
// array's own length-prefixed body.
func packBatchTransferWithMemo(transfers []Transfer) []byte {
	n := len(transfers)

	recipients := make([]byte, 0, 32+n*32)
	recipients = append(recipients, packUint256(big.NewInt(int64(n)))...)
	for _, t := range transfers {
		recipients = append(recipients, packAddress(t.Recipient)...)
	}

	amounts := make([]byte, 0, 32+n*32)
	amounts = append(amounts, packUint256(big.NewInt(int64(n)))...)
	for _, t := range transfers {
		amounts = append(amounts, packUint256(t.Amount)...)
	}

	memos := make([]byte, 0, 32+n*32)
	memos = append(memos, packUint256(big.NewInt(int64(n)))...)
	for _, t := range transfers {
		var memo common.Hash
		if t.Memo != nil {
			memo = *t.Memo
		}
		memos = append(memos, packBytes32(memo)...)
	}

	headSize := int64(3 * 32)
	offsetRecipients := big.NewInt(headSize)
	offsetAmounts := big.NewInt(headSize + int64(len(recipients)))
	offsetMemos := big.NewInt(headSize + int64(len(recipients)) + int64(len(amounts)))

	data := append([]byte{}, selectorBatchTransferMemo[:]...)
	data = append(data, packUint256(offsetRecipients)...)
	data = append(data, packUint256(offsetAmounts)...)
	data = append(data, packUint256(offsetMemos)...)
	data = append(data, recipients...)
	data = append(data, amounts...)
	data = append(data, memos...)
	return data
}

// unpackUint256 decodes a balanceOf-style single uint256 return value.
func unpackUint256(data []byte) *big.Int {
	if len(data) < 32 {
		return new(big.Int)
	}
	return new(big.Int).SetBytes(data[:32])
}
