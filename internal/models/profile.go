package models

// InvestorProfile is the canonical investor record sent to the scoring service.
// PreferredSectors is ordered; the first entry is treated as the primary sector.
type InvestorProfile struct {
	Type             string   `json:"type"`
	Location         string   `json:"location"`
	AvgCheckSize     float64  `json:"avg_check_size"`
	MinROI           float64  `json:"min_roi"`
	RiskAppetite     float64  `json:"risk_appetite"`
	YearsActive      float64  `json:"years_active"`
	TotalInvestments float64  `json:"total_investments"`
	PreferredSectors []string `json:"preferred_sectors"`
	PreferredStages  []string `json:"preferred_stages"`
	Thesis           string   `json:"thesis"`
}

// PrefersSector reports whether sector is one of the investor's preferred sectors.
func (p InvestorProfile) PrefersSector(sector string) bool {
	for _, s := range p.PreferredSectors {
		if s == sector {
			return true
		}
	}
	return false
}

// PrimarySector returns the first preferred sector, or "" when none are set.
func (p InvestorProfile) PrimarySector() string {
	if len(p.PreferredSectors) == 0 {
		return ""
	}
	return p.PreferredSectors[0]
}

// StartupProfile is the canonical startup record sent to the scoring service.
type StartupProfile struct {
	Sector        string  `json:"sector"`
	Stage         string  `json:"stage"`
	Location      string  `json:"location"`
	FoundingDate  string  `json:"founding_date"`
	Employees     int     `json:"employees"`
	MRR           float64 `json:"mrr"`
	GrowthRate    float64 `json:"growth_rate"`
	BurnRate      float64 `json:"burn_rate"`
	FundingToDate float64 `json:"funding_to_date"`
	Description   string  `json:"description"`
	LastValuation float64 `json:"last_valuation"`
}
