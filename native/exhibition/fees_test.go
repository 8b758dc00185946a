package exhibition

import (
	"errors"
	"math"
	"testing"
)

func TestSplitPriceExamples(t *testing.T) {
	tests := []struct {
		name        string
		price       uint64
		renterBps   uint16
		platformBps uint16
		want        Split
	}{
		{name: "typical", price: 10_000, renterBps: 500, platformBps: 250, want: Split{Renter: 500, Platform: 250, Exhibitor: 9_250}},
		{name: "boundary floors to zero", price: 1, renterBps: 9_999, platformBps: 1, want: Split{Renter: 0, Platform: 0, Exhibitor: 1}},
		{name: "zero price", price: 0, renterBps: 1_000, platformBps: 1_000, want: Split{}},
		{name: "no fees", price: 777, want: Split{Exhibitor: 777}},
		{name: "all to renter", price: 123, renterBps: MaxBps, want: Split{Renter: 123}},
		{name: "rounding goes to exhibitor", price: 999, renterBps: 3_333, platformBps: 3_333, want: Split{Renter: 332, Platform: 332, Exhibitor: 335}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SplitPrice(tc.price, tc.renterBps, tc.platformBps)
			if err != nil {
				t.Fatalf("split: %v", err)
			}
			if got != tc.want {
				t.Fatalf("split = %+v, want %+v", got, tc.want)
			}
			if got.Total() != tc.price {
				t.Fatalf("shares sum to %d, want %d", got.Total(), tc.price)
			}
		})
	}
}

func TestSplitPriceConservesValue(t *testing.T) {
	prices := []uint64{0, 1, 2, 7, 99, 10_000, 123_456_789, math.MaxUint64 / MaxBps}
	rates := []uint16{0, 1, 250, 4_999, 5_000, 9_999, MaxBps}
	for _, price := range prices {
		for _, renter := range rates {
			for _, platform := range rates {
				if uint32(renter)+uint32(platform) > MaxBps {
					continue
				}
				split, err := SplitPrice(price, renter, platform)
				if err != nil {
					t.Fatalf("price %d renter %d platform %d: %v", price, renter, platform, err)
				}
				if split.Renter+split.Platform+split.Exhibitor != price {
					t.Fatalf("price %d renter %d platform %d: split %+v loses value", price, renter, platform, split)
				}
			}
		}
	}
}

func TestSplitPriceRejectsInvalidRates(t *testing.T) {
	if _, err := SplitPrice(100, MaxBps+1, 0); !errors.Is(err, ErrFeeOutOfRange) {
		t.Fatalf("expected fee out of range, got %v", err)
	}
	if _, err := SplitPrice(100, 6_000, 5_000); !errors.Is(err, ErrFeeOutOfRange) {
		t.Fatalf("expected fee out of range for combined fees, got %v", err)
	}
}

func TestSplitPriceOverflow(t *testing.T) {
	_, err := SplitPrice(math.MaxUint64, 2, 0)
	if !errors.Is(err, ErrArithmetic) {
		t.Fatalf("expected arithmetic error, got %v", err)
	}
	if ErrorTag(err) != TagArithmetic {
		t.Fatalf("tag = %q, want %q", ErrorTag(err), TagArithmetic)
	}
	if _, err := SplitPrice(math.MaxUint64, 0, 0); err != nil {
		t.Fatalf("zero rates never overflow: %v", err)
	}
}

func TestErrorTags(t *testing.T) {
	cases := map[error]string{
		ErrUnauthorized:        TagConstraintViolation,
		ErrExhibitionNotActive: TagConstraintViolation,
		ErrFeeOutOfRange:       TagFeeOutOfRange,
		ErrArithmetic:          TagArithmetic,
		errors.New("boom"):     TagInternal,
	}
	for err, want := range cases {
		if got := ErrorTag(err); got != want {
			t.Fatalf("ErrorTag(%v) = %q, want %q", err, got, want)
		}
	}
	if !errors.Is(ErrItemMismatch, ErrConstraintViolation) {
		t.Fatalf("specific constraint errors must wrap ErrConstraintViolation")
	}
	if ErrorTag(nil) != "" {
		t.Fatalf("nil error must have no tag")
	}
}
