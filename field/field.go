// Package field holds the scalar field helpers shared by the VM, the
// commitment and the circuit. Every value the machine manipulates is a
// canonical BN254 scalar field element.
package field

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Element is a BN254 scalar field element.
type Element = fr.Element

// Bytes is the size of a serialized element.
const Bytes = fr.Bytes

// CurveID is the curve whose scalar field the machine runs over.
const CurveID = ecc.BN254

// ScalarField is the order of the field.
var ScalarField = fr.Modulus()

var errNotCanonical = errors.New("value is not a canonical field element")

func Zero() Element {
	return Element{}
}

func One() Element {
	return fr.One()
}

func FromUint64(x uint64) Element {
	var e Element
	e.SetUint64(x)
	return e
}

// FromInt64 maps negative values to their additive inverse.
func FromInt64(x int64) Element {
	var e Element
	e.SetInt64(x)
	return e
}

func FromBigInt(x *big.Int) Element {
	var e Element
	e.SetBigInt(x)
	return e
}

// FromInterface accepts the same inputs as gnark's assignments (integers,
// strings, *big.Int, field elements).
func FromInterface(i interface{}) (Element, error) {
	var e Element
	if _, err := e.SetInterface(i); err != nil {
		return Element{}, fmt.Errorf("field element from %T: %w", i, err)
	}
	return e, nil
}

func ToBigInt(e Element) *big.Int {
	r := new(big.Int)
	e.BigInt(r)
	return r
}

// Parse reads a decimal (optionally signed) or 0x-prefixed hexadecimal
// integer and reduces it modulo the field order.
func Parse(s string) (Element, error) {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		s = s[2:]
	}
	x, ok := new(big.Int).SetString(s, base)
	if !ok || s == "" {
		return Element{}, fmt.Errorf("invalid integer literal %q", s)
	}
	if neg {
		x.Neg(x)
	}
	x.Mod(x, ScalarField)
	return FromBigInt(x), nil
}

// ToBytes is the big-endian canonical encoding, the block format of the
// native MiMC hasher.
func ToBytes(e Element) [Bytes]byte {
	return e.Bytes()
}

// FromBytes rejects encodings that are not reduced modulo the field order.
func FromBytes(b []byte) (Element, error) {
	if len(b) != Bytes {
		return Element{}, fmt.Errorf("expected %d bytes, got %d", Bytes, len(b))
	}
	x := new(big.Int).SetBytes(b)
	if x.Cmp(ScalarField) >= 0 {
		return Element{}, errNotCanonical
	}
	return FromBigInt(x), nil
}

// Small reports the value of e when it fits in an int, which is how
// program counters and addresses travel through the field.
func Small(e Element) (int, bool) {
	if !e.IsUint64() {
		return 0, false
	}
	v := e.Uint64()
	if v > uint64(^uint(0)>>1) {
		return 0, false
	}
	return int(v), true
}

func String(e Element) string {
	return e.String()
}
