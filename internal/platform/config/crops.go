package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// CropRate is the pricing master data for one crop type.
type CropRate struct {
	Name        string
	LocalName   string
	Season      string
	PremiumRate decimal.Decimal
	MaxCoverage decimal.Decimal
}

type cropRateFile struct {
	Crops []struct {
		Name        string `yaml:"name"`
		LocalName   string `yaml:"local_name"`
		Season      string `yaml:"season"`
		PremiumRate string `yaml:"premium_rate"`
		MaxCoverage string `yaml:"max_coverage"`
	} `yaml:"crops"`
}

// DefaultCropRates is used when no CROP_RATES_FILE is configured.
func DefaultCropRates() []CropRate {
	return []CropRate{
		{Name: "WHEAT", LocalName: "गेहूं", Season: "Rabi", PremiumRate: decimal.RequireFromString("1.50"), MaxCoverage: decimal.RequireFromString("40000")},
		{Name: "RICE", LocalName: "धान", Season: "Kharif", PremiumRate: decimal.RequireFromString("2.00"), MaxCoverage: decimal.RequireFromString("45000")},
		{Name: "COTTON", LocalName: "कपास", Season: "Kharif", PremiumRate: decimal.RequireFromString("5.00"), MaxCoverage: decimal.RequireFromString("60000")},
		{Name: "SUGARCANE", LocalName: "गन्ना", Season: "Zaid", PremiumRate: decimal.RequireFromString("5.00"), MaxCoverage: decimal.RequireFromString("80000")},
		{Name: "MUSTARD", LocalName: "सरसों", Season: "Rabi", PremiumRate: decimal.RequireFromString("1.50"), MaxCoverage: decimal.RequireFromString("30000")},
		{Name: "SOYBEAN", LocalName: "सोयाबीन", Season: "Kharif", PremiumRate: decimal.RequireFromString("2.00"), MaxCoverage: decimal.RequireFromString("35000")},
	}
}

// LoadCropRates reads the crop table from a YAML file, or returns the
// defaults when path is empty. Names are upper-cased so lookups are
// case-insensitive.
func LoadCropRates(path string) ([]CropRate, error) {
	if path == "" {
		return DefaultCropRates(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read crop rates: %w", err)
	}
	return ParseCropRates(raw)
}

// ParseCropRates decodes a crop table document.
func ParseCropRates(raw []byte) ([]CropRate, error) {
	var doc cropRateFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode crop rates: %w", err)
	}
	if len(doc.Crops) == 0 {
		return nil, fmt.Errorf("crop rates file lists no crops")
	}
	seen := make(map[string]struct{}, len(doc.Crops))
	rates := make([]CropRate, 0, len(doc.Crops))
	for _, c := range doc.Crops {
		name := strings.ToUpper(strings.TrimSpace(c.Name))
		if name == "" {
			return nil, fmt.Errorf("crop entry without a name")
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate crop %q", name)
		}
		seen[name] = struct{}{}
		rate, err := decimal.NewFromString(c.PremiumRate)
		if err != nil || !rate.IsPositive() {
			return nil, fmt.Errorf("crop %s: invalid premium_rate %q", name, c.PremiumRate)
		}
		maxCoverage, err := decimal.NewFromString(c.MaxCoverage)
		if err != nil || !maxCoverage.IsPositive() {
			return nil, fmt.Errorf("crop %s: invalid max_coverage %q", name, c.MaxCoverage)
		}
		rates = append(rates, CropRate{
			Name:        name,
			LocalName:   c.LocalName,
			Season:      c.Season,
			PremiumRate: rate,
			MaxCoverage: maxCoverage,
		})
	}
	return rates, nil
}
