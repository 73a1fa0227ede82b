package chain

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"
)

const wordSize = 32

// ErrShortResult is returned when ABI-encoded return data is truncated.
var ErrShortResult = errors.New("abi: result too short")

// Function selectors: the first 4 bytes of keccak256 of the signature.
var (
	SelectorGetBassets  = Selector("getBassets()")
	SelectorBalanceOf   = Selector("balanceOf(address)")
	SelectorAllowance   = Selector("allowance(address,address)")
	SelectorTotalSupply = Selector("totalSupply()")
)

// Selector computes the 4-byte function selector of a canonical signature.
func Selector(signature string) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	return h.Sum(nil)[:4]
}

// HexEncode returns 0x-prefixed hex encoding of data.
func HexEncode(data []byte) string {
	return "0x" + hex.EncodeToString(data)
}

// encodeAddress pads a 20-byte address to 32 bytes (left-padded with zeros).
func encodeAddress(addr string) []byte {
	b, _ := hex.DecodeString(strings.TrimPrefix(strings.ToLower(addr), "0x"))
	padded := make([]byte, wordSize)
	if len(b) <= wordSize {
		copy(padded[wordSize-len(b):], b)
	}
	return padded
}

// EncodeBalanceOf builds calldata for ERC20.balanceOf(account).
func EncodeBalanceOf(account string) []byte {
	data := make([]byte, 0, 4+wordSize)
	data = append(data, SelectorBalanceOf...)
	data = append(data, encodeAddress(account)...)
	return data
}

// EncodeAllowance builds calldata for ERC20.allowance(owner, spender).
func EncodeAllowance(owner, spender string) []byte {
	data := make([]byte, 0, 4+2*wordSize)
	data = append(data, SelectorAllowance...)
	data = append(data, encodeAddress(owner)...)
	data = append(data, encodeAddress(spender)...)
	return data
}

// word returns the i-th 32-byte word of data.
func word(data []byte, i int) ([]byte, error) {
	start := i * wordSize
	if i < 0 || start+wordSize > len(data) {
		return nil, fmt.Errorf("%w: word %d of %d bytes", ErrShortResult, i, len(data))
	}
	return data[start : start+wordSize], nil
}

// DecodeUint256 decodes a single uint256 return value.
func DecodeUint256(data []byte) (*big.Int, error) {
	w, err := word(data, 0)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(w), nil
}

func decodeAddress(w []byte) string {
	return "0x" + hex.EncodeToString(w[wordSize-20:])
}

// wordIndex reads a word as a non-negative int, for offsets and lengths.
func wordIndex(data []byte, i int) (int, error) {
	w, err := word(data, i)
	if err != nil {
		return 0, err
	}
	n := new(big.Int).SetBytes(w)
	if !n.IsInt64() || n.Int64() > int64(len(data)) {
		return 0, fmt.Errorf("abi: offset or length %s out of range", n)
	}
	return int(n.Int64()), nil
}

// BassetPersonal is the static part of a basset as returned by getBassets().
type BassetPersonal struct {
	Addr       string
	Integrator string
	HasTxFee   bool
	Status     uint8
}

// BassetData is the dynamic part of a basset as returned by getBassets().
type BassetData struct {
	Ratio        *big.Int
	VaultBalance *big.Int
}

// DecodeGetBassets decodes (tuple(address,address,bool,uint8)[], tuple(uint128,uint128)[]).
func DecodeGetBassets(data []byte) ([]BassetPersonal, []BassetData, error) {
	personal, err := decodeTupleArray(data, 0, 4, func(ws [][]byte) BassetPersonal {
		return BassetPersonal{
			Addr:       decodeAddress(ws[0]),
			Integrator: decodeAddress(ws[1]),
			HasTxFee:   ws[2][wordSize-1] != 0,
			Status:     ws[3][wordSize-1],
		}
	})
	if err != nil {
		return nil, nil, fmt.Errorf("decoding personal: %w", err)
	}

	bassetData, err := decodeTupleArray(data, 1, 2, func(ws [][]byte) BassetData {
		return BassetData{
			Ratio:        new(big.Int).SetBytes(ws[0]),
			VaultBalance: new(big.Int).SetBytes(ws[1]),
		}
	})
	if err != nil {
		return nil, nil, fmt.Errorf("decoding data: %w", err)
	}

	if len(personal) != len(bassetData) {
		return nil, nil, fmt.Errorf("abi: %d personal entries but %d data entries", len(personal), len(bassetData))
	}
	return personal, bassetData, nil
}

// decodeTupleArray decodes the head slot-th return value as an array of static tuples
// of width words each.
func decodeTupleArray[T any](data []byte, slot, width int, decode func([][]byte) T) ([]T, error) {
	offset, err := wordIndex(data, slot)
	if err != nil {
		return nil, err
	}
	if offset%wordSize != 0 {
		return nil, fmt.Errorf("abi: unaligned offset %d", offset)
	}
	base := offset / wordSize

	n, err := wordIndex(data, base)
	if err != nil {
		return nil, err
	}
	if (base+1+n*width)*wordSize > len(data) {
		return nil, fmt.Errorf("%w: %d tuples at offset %d", ErrShortResult, n, offset)
	}

	out := make([]T, 0, n)
	for i := range n {
		ws := make([][]byte, width)
		for j := range width {
			if ws[j], err = word(data, base+1+i*width+j); err != nil {
				return nil, err
			}
		}
		out = append(out, decode(ws))
	}
	return out, nil
}
