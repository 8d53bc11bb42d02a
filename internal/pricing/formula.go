// Package pricing computes listing prices from source cost, fees, shipping
// and exchange rate. The formula is pure given a rate; rate lookup is the
// only collaborator.
package pricing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"crosslist/internal/core/types"
	"crosslist/internal/domain/listing"
)

// Input is everything the formula needs for one listing.
type Input struct {
	// SourceCost in JPY.
	SourceCost types.Money
	// Weight in grams.
	Weight      int
	Category    string
	Marketplace listing.Marketplace
}

// Breakdown itemizes the computed price for audit and debugging.
type Breakdown struct {
	CostUSD     types.Money `json:"costUsd"`
	ShippingUSD types.Money `json:"shippingUsd"`
	FeeRate     types.Money `json:"feeRate"`
	MarginRate  types.Money `json:"marginRate"`
	Rate        types.Money `json:"rate"` // JPY per USD
}

// Result is the computed listing price.
type Result struct {
	ListingPrice types.Money
	ShippingCost types.Money
	Breakdown    Breakdown
}

// Formula computes a listing price for current cost/fee/exchange inputs.
type Formula interface {
	Compute(ctx context.Context, in Input) (Result, error)
}

// RateProvider returns the current JPY-per-USD rate.
type RateProvider interface {
	Rate(ctx context.Context) (types.Money, error)
}

// RateProviderFunc adapts a function to RateProvider.
type RateProviderFunc func(ctx context.Context) (types.Money, error)

func (f RateProviderFunc) Rate(ctx context.Context) (types.Money, error) { return f(ctx) }

// FixedRate returns a RateProvider with a constant rate, for tests and
// offline runs.
func FixedRate(rate types.Money) RateProvider {
	return RateProviderFunc(func(ctx context.Context) (types.Money, error) {
		return rate, nil
	})
}

// StandardConfig tunes the standard formula.
type StandardConfig struct {
	// FeeRates per marketplace, as fractions (eBay final value fee ~0.13).
	FeeRates map[listing.Marketplace]types.Money

	// MarginRate is the target profit margin as a fraction.
	MarginRate types.Money

	// ShippingTiers maps a weight ceiling in grams to shipping cost in USD,
	// evaluated in ascending order of ceiling.
	ShippingTiers []ShippingTier
}

// ShippingTier is one weight bracket of the shipping table.
type ShippingTier struct {
	MaxGrams int
	CostUSD  types.Money
}

// DefaultStandardConfig returns the fee/margin table used in production.
func DefaultStandardConfig() StandardConfig {
	return StandardConfig{
		FeeRates: map[listing.Marketplace]types.Money{
			listing.MarketplaceEbay: types.MustMoney("0.13"),
			listing.MarketplaceJoom: types.MustMoney("0.15"),
		},
		MarginRate: types.MustMoney("0.25"),
		ShippingTiers: []ShippingTier{
			{MaxGrams: 100, CostUSD: types.MustMoney("7.50")},
			{MaxGrams: 500, CostUSD: types.MustMoney("12.00")},
			{MaxGrams: 1000, CostUSD: types.MustMoney("18.50")},
			{MaxGrams: 2000, CostUSD: types.MustMoney("28.00")},
		},
	}
}

// StandardFormula is the production price formula:
//
//	price = (costUSD + shippingUSD) * (1 + margin) / (1 - fee)
//
// rounded to cents. Shipping is charged separately on the listing, so the
// returned ListingPrice excludes it and ShippingCost carries it.
type StandardFormula struct {
	cfg   StandardConfig
	rates RateProvider
}

// NewStandardFormula creates the formula with its rate provider.
func NewStandardFormula(cfg StandardConfig, rates RateProvider) *StandardFormula {
	return &StandardFormula{cfg: cfg, rates: rates}
}

var one = decimal.NewFromInt(1)

// Compute implements Formula.
func (f *StandardFormula) Compute(ctx context.Context, in Input) (Result, error) {
	rate, err := f.rates.Rate(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("exchange rate: %w", err)
	}
	if rate.IsZero() {
		return Result{}, fmt.Errorf("exchange rate is zero")
	}

	feeRate, ok := f.cfg.FeeRates[in.Marketplace]
	if !ok {
		return Result{}, fmt.Errorf("no fee rate configured for marketplace %s", in.Marketplace)
	}

	costUSD := in.SourceCost.Div(rate)
	shippingUSD := f.shippingFor(in.Weight)

	base := costUSD.Mul(one.Add(f.cfg.MarginRate)).Div(one.Sub(feeRate))
	price := base.Round(2)

	return Result{
		ListingPrice: price,
		ShippingCost: shippingUSD,
		Breakdown: Breakdown{
			CostUSD:     costUSD.Round(2),
			ShippingUSD: shippingUSD,
			FeeRate:     feeRate,
			MarginRate:  f.cfg.MarginRate,
			Rate:        rate,
		},
	}, nil
}

// shippingFor returns the tier cost for a weight; weights above the last
// tier use the last tier's cost.
func (f *StandardFormula) shippingFor(grams int) types.Money {
	if len(f.cfg.ShippingTiers) == 0 {
		return types.Zero()
	}
	for _, tier := range f.cfg.ShippingTiers {
		if grams <= tier.MaxGrams {
			return tier.CostUSD
		}
	}
	return f.cfg.ShippingTiers[len(f.cfg.ShippingTiers)-1].CostUSD
}
