package matching

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"investlink-workers/internal/models"

	"github.com/mitchellh/mapstructure"
)

// Defaults applied by the normalizer when a field is missing.
const (
	DefaultInvestorType     = "VC"
	DefaultLocation         = "United States"
	DefaultAvgCheckSize     = 1_000_000
	DefaultMinROI           = 3.0
	DefaultRiskAppetite     = 5.0
	DefaultYearsActive      = 5.0
	DefaultTotalInvestments = 10_000_000
	DefaultThesis           = "Focusing on innovative technology solutions with strong market potential."

	DefaultSector        = "Technology"
	DefaultStage         = "Seed"
	DefaultFoundingDate  = "2023-01-01"
	DefaultEmployees     = 10
	DefaultMRR           = 50_000
	DefaultGrowthRate    = 0.15
	DefaultBurnRate      = 0.1
	DefaultFundingToDate = 500_000
	DefaultDescription   = "Innovative technology startup with strong market potential."
	DefaultLastValuation = 2_000_000
)

func defaultPreferredSectors() []string { return []string{"Technology"} }
func defaultPreferredStages() []string  { return []string{"Seed", "Series A"} }

// PartialInvestorProfile holds whatever investor fields were supplied.
// A nil field means the value was not provided.
type PartialInvestorProfile struct {
	Type             *string   `json:"type"`
	Location         *string   `json:"location"`
	AvgCheckSize     *float64  `json:"avg_check_size"`
	MinROI           *float64  `json:"min_roi"`
	RiskAppetite     *float64  `json:"risk_appetite"`
	YearsActive      *float64  `json:"years_active"`
	TotalInvestments *float64  `json:"total_investments"`
	PreferredSectors *[]string `json:"preferred_sectors"`
	PreferredStages  *[]string `json:"preferred_stages"`
	Thesis           *string   `json:"thesis"`
}

// Normalize fills every missing field with its default.
func (p PartialInvestorProfile) Normalize() models.InvestorProfile {
	return models.InvestorProfile{
		Type:             stringOr(p.Type, DefaultInvestorType),
		Location:         stringOr(p.Location, DefaultLocation),
		AvgCheckSize:     floatOr(p.AvgCheckSize, DefaultAvgCheckSize),
		MinROI:           floatOr(p.MinROI, DefaultMinROI),
		RiskAppetite:     floatOr(p.RiskAppetite, DefaultRiskAppetite),
		YearsActive:      floatOr(p.YearsActive, DefaultYearsActive),
		TotalInvestments: floatOr(p.TotalInvestments, DefaultTotalInvestments),
		PreferredSectors: listOr(p.PreferredSectors, defaultPreferredSectors),
		PreferredStages:  listOr(p.PreferredStages, defaultPreferredStages),
		Thesis:           stringOr(p.Thesis, DefaultThesis),
	}
}

// PartialStartupProfile holds whatever startup fields were supplied.
type PartialStartupProfile struct {
	Sector        *string  `json:"sector"`
	Stage         *string  `json:"stage"`
	Location      *string  `json:"location"`
	FoundingDate  *string  `json:"founding_date"`
	Employees     *int     `json:"employees"`
	MRR           *float64 `json:"mrr"`
	GrowthRate    *float64 `json:"growth_rate"`
	BurnRate      *float64 `json:"burn_rate"`
	FundingToDate *float64 `json:"funding_to_date"`
	Description   *string  `json:"description"`
	LastValuation *float64 `json:"last_valuation"`
}

func (p PartialStartupProfile) Normalize() models.StartupProfile {
	employees := DefaultEmployees
	if p.Employees != nil {
		employees = *p.Employees
	}
	return models.StartupProfile{
		Sector:        stringOr(p.Sector, DefaultSector),
		Stage:         stringOr(p.Stage, DefaultStage),
		Location:      stringOr(p.Location, DefaultLocation),
		FoundingDate:  stringOr(p.FoundingDate, DefaultFoundingDate),
		Employees:     employees,
		MRR:           floatOr(p.MRR, DefaultMRR),
		GrowthRate:    floatOr(p.GrowthRate, DefaultGrowthRate),
		BurnRate:      floatOr(p.BurnRate, DefaultBurnRate),
		FundingToDate: floatOr(p.FundingToDate, DefaultFundingToDate),
		Description:   stringOr(p.Description, DefaultDescription),
		LastValuation: floatOr(p.LastValuation, DefaultLastValuation),
	}
}

// DecodeInvestor reads sparse form data into a partial investor profile.
// Unknown keys are ignored. Form strings such as "250000" are accepted for
// numeric fields.
func DecodeInvestor(raw map[string]interface{}) (PartialInvestorProfile, error) {
	var p PartialInvestorProfile
	if err := decodePartial(raw, &p); err != nil {
		return PartialInvestorProfile{}, fmt.Errorf("%w: investor: %v", ErrInvalidProfile, err)
	}
	return p, nil
}

func DecodeStartup(raw map[string]interface{}) (PartialStartupProfile, error) {
	var p PartialStartupProfile
	if err := decodePartial(raw, &p); err != nil {
		return PartialStartupProfile{}, fmt.Errorf("%w: startup: %v", ErrInvalidProfile, err)
	}
	return p, nil
}

// NormalizeInvestor decodes raw data and applies investor defaults.
func NormalizeInvestor(raw map[string]interface{}) (models.InvestorProfile, error) {
	p, err := DecodeInvestor(raw)
	if err != nil {
		return models.InvestorProfile{}, err
	}
	return p.Normalize(), nil
}

// NormalizeStartup decodes raw data and applies startup defaults.
func NormalizeStartup(raw map[string]interface{}) (models.StartupProfile, error) {
	p, err := DecodeStartup(raw)
	if err != nil {
		return models.StartupProfile{}, err
	}
	return p.Normalize(), nil
}

func decodePartial(raw map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       wholeNumberHook,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(present(raw))
}

// wholeNumberHook rejects fractional floats bound for integer fields, which
// weak decoding would otherwise truncate.
func wholeNumberHook(_ reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to.Kind() != reflect.Int {
		return data, nil
	}
	var f float64
	switch v := data.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	default:
		return data, nil
	}
	if f != math.Trunc(f) {
		return nil, fmt.Errorf("%v is not a whole number", f)
	}
	return data, nil
}

// present drops nil values and blank strings so they count as missing.
func present(raw map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		out[k] = v
	}
	return out
}

func stringOr(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func listOr(v *[]string, def func() []string) []string {
	if v == nil {
		return def()
	}
	out := make([]string, len(*v))
	copy(out, *v)
	return out
}
