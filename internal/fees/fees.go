package fees

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfiguration means the configured percentages are malformed.
// Settlement must refuse to run rather than post incorrect amounts.
var ErrInvalidConfiguration = errors.New("invalid fee configuration")

// sumTolerance absorbs float representation noise when checking that
// percentages sum to 100.
const sumTolerance = 1e-9

// Policy holds the externally configured fee percentages.
type Policy struct {
	PlatformPct            float64
	ShopPct                float64
	ProviderShopPct        float64
	ProviderIndependentPct float64
}

// Split is the settlement outcome for one booking. Amounts are in centavos
// and always sum exactly to the total that produced them.
type Split struct {
	PlatformFee     int64
	ProviderEarning int64
	ShopEarning     int64
}

// Validate checks both percentage modes: the independent pair and the
// shop-affiliated triple must each sum to 100 with no negative member.
func (p Policy) Validate() error {
	for name, pct := range map[string]float64{
		"platform":             p.PlatformPct,
		"shop":                 p.ShopPct,
		"provider_shop":        p.ProviderShopPct,
		"provider_independent": p.ProviderIndependentPct,
	} {
		if pct < 0 {
			return fmt.Errorf("%w: %s percentage is negative (%v)", ErrInvalidConfiguration, name, pct)
		}
	}

	if !sumsTo100(p.PlatformPct, p.ProviderIndependentPct) {
		return fmt.Errorf("%w: platform (%v) + provider (%v) must sum to 100",
			ErrInvalidConfiguration, p.PlatformPct, p.ProviderIndependentPct)
	}
	if !sumsTo100(p.PlatformPct, p.ShopPct, p.ProviderShopPct) {
		return fmt.Errorf("%w: platform (%v) + shop (%v) + provider (%v) must sum to 100",
			ErrInvalidConfiguration, p.PlatformPct, p.ShopPct, p.ProviderShopPct)
	}
	return nil
}

// Split computes the platform/shop/provider division of totalAmount.
// Platform fee and shop earning are rounded from their percentages; the
// provider earning is the residual, so the three parts always reassemble
// the exact total regardless of rounding.
func (p Policy) Split(totalAmount int64, shopAffiliated bool) (Split, error) {
	if err := p.Validate(); err != nil {
		return Split{}, err
	}
	if totalAmount < 0 {
		return Split{}, fmt.Errorf("%w: negative total amount %d", ErrInvalidConfiguration, totalAmount)
	}

	platformFee := pctOf(totalAmount, p.PlatformPct)

	var shopEarning int64
	if shopAffiliated {
		shopEarning = pctOf(totalAmount, p.ShopPct)
	}

	return Split{
		PlatformFee:     platformFee,
		ShopEarning:     shopEarning,
		ProviderEarning: totalAmount - platformFee - shopEarning,
	}, nil
}

// EstimatePlatformFee returns the platform fee a booking of the given amount
// would incur, used by cash admission control before any booking exists.
func (p Policy) EstimatePlatformFee(totalAmount int64) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	return pctOf(totalAmount, p.PlatformPct), nil
}

func pctOf(amount int64, pct float64) int64 {
	return int64(math.Round(float64(amount) * pct / 100))
}

func sumsTo100(parts ...float64) bool {
	var sum float64
	for _, p := range parts {
		sum += p
	}
	return math.Abs(sum-100) < sumTolerance
}
