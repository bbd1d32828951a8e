package models

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"farmshield/internal/platform/config"
	dErrors "farmshield/pkg/domain-errors"
)

// Quote is the priced result for one crop and area.
type Quote struct {
	Crop     string
	Premium  decimal.Decimal
	Coverage decimal.Decimal
}

// Pricer computes premium = rate * area * multiplier and
// coverage = maxCoverage * area / divisor, both rounded half-up to 2 places.
type Pricer struct {
	rates      map[string]config.CropRate
	multiplier decimal.Decimal
	divisor    decimal.Decimal
}

func NewPricer(rates []config.CropRate, multiplier, divisor decimal.Decimal) (*Pricer, error) {
	if divisor.IsZero() {
		return nil, fmt.Errorf("coverage divisor must be non-zero")
	}
	byName := make(map[string]config.CropRate, len(rates))
	for _, r := range rates {
		byName[NormalizeCrop(r.Name)] = r
	}
	return &Pricer{rates: byName, multiplier: multiplier, divisor: divisor}, nil
}

// Quote prices a crop. An unknown crop type is NotFound.
func (p *Pricer) Quote(crop string, area decimal.Decimal) (Quote, error) {
	name := NormalizeCrop(crop)
	rate, ok := p.rates[name]
	if !ok {
		return Quote{}, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("crop type %q not found", crop))
	}
	return Quote{
		Crop:     name,
		Premium:  rate.PremiumRate.Mul(area).Mul(p.multiplier).Round(2),
		Coverage: rate.MaxCoverage.Mul(area).Div(p.divisor).Round(2),
	}, nil
}

// Crops lists the configured crop table sorted by name.
func (p *Pricer) Crops() []config.CropRate {
	out := make([]config.CropRate, 0, len(p.rates))
	for _, r := range p.rates {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
