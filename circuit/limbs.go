package circuit

import (
	"fmt"
	"math/big"
)

// ToLimbs splits a non-negative big integer into count limbs of the given
// bit width, least significant limb first, each rendered as a decimal
// string. It fails with ErrInputTooLarge when the value needs more limbs.
func ToLimbs(x *big.Int, bits, count int) ([]string, error) {
	if x.Sign() < 0 {
		return nil, fmt.Errorf("circuit: negative value")
	}
	if x.BitLen() > bits*count {
		return nil, fmt.Errorf("%w: %d bits, limbs hold %d", ErrInputTooLarge, x.BitLen(), bits*count)
	}

	mask := new(big.Int).Lsh(big.NewInt(1), uint(bits))
	mask.Sub(mask, big.NewInt(1))

	out := make([]string, count)
	rest := new(big.Int).Set(x)
	limb := new(big.Int)
	for i := 0; i < count; i++ {
		limb.And(rest, mask)
		out[i] = limb.String()
		rest.Rsh(rest, uint(bits))
	}
	return out, nil
}

// FromLimbs reassembles a big integer from little-endian decimal limbs of
// the given bit width.
func FromLimbs(limbs []string, bits int) (*big.Int, error) {
	out := new(big.Int)
	limb := new(big.Int)
	for i := len(limbs) - 1; i >= 0; i-- {
		if _, ok := limb.SetString(limbs[i], 10); !ok {
			return nil, fmt.Errorf("circuit: invalid limb %q", limbs[i])
		}
		if limb.Sign() < 0 || limb.BitLen() > bits {
			return nil, fmt.Errorf("circuit: limb %q exceeds %d bits", limbs[i], bits)
		}
		out.Lsh(out, uint(bits))
		out.Add(out, limb)
	}
	return out, nil
}
