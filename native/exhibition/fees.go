package exhibition

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Split is the three-way division of a sale price.
type Split struct {
	Renter    uint64
	Platform  uint64
	Exhibitor uint64
}

// Total returns the sum of the three shares.
func (s Split) Total() uint64 { return s.Renter + s.Platform + s.Exhibitor }

var maxBpsInt = uint256.NewInt(MaxBps)

// SplitPrice divides price between renter, platform and exhibitor. Both fee
// shares are floored; the exhibitor takes the remainder so the shares always
// add up to price. The product price*bps must fit in 64 bits.
func SplitPrice(price uint64, renterBps, platformBps uint16) (Split, error) {
	if renterBps > MaxBps || platformBps > MaxBps {
		return Split{}, fmt.Errorf("%w: renter %d bps, platform %d bps", ErrFeeOutOfRange, renterBps, platformBps)
	}
	if uint32(renterBps)+uint32(platformBps) > MaxBps {
		return Split{}, fmt.Errorf("%w: combined fees %d bps exceed %d", ErrFeeOutOfRange, uint32(renterBps)+uint32(platformBps), MaxBps)
	}
	renter, err := bpsShare(price, renterBps)
	if err != nil {
		return Split{}, err
	}
	platform, err := bpsShare(price, platformBps)
	if err != nil {
		return Split{}, err
	}
	return Split{
		Renter:    renter,
		Platform:  platform,
		Exhibitor: price - renter - platform,
	}, nil
}

func bpsShare(price uint64, bps uint16) (uint64, error) {
	product, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(price), uint256.NewInt(uint64(bps)))
	if overflow || !product.IsUint64() {
		return 0, fmt.Errorf("%w: %d * %d bps overflows", ErrArithmetic, price, bps)
	}
	return product.Div(product, maxBpsInt).Uint64(), nil
}

// checkedAdd returns a+b or ErrArithmetic on overflow.
func checkedAdd(a, b uint64, what string) (uint64, error) {
	sum, overflow := new(uint256.Int).AddOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow || !sum.IsUint64() {
		return 0, fmt.Errorf("%w: %s overflow", ErrArithmetic, what)
	}
	return sum.Uint64(), nil
}

// checkedSub returns a-b or ErrArithmetic on underflow.
func checkedSub(a, b uint64, what string) (uint64, error) {
	if b > a {
		return 0, fmt.Errorf("%w: %s underflow", ErrArithmetic, what)
	}
	return a - b, nil
}
