package domain

// Storm categories and severities derived from sustained wind speed.
const (
	CategoryTyphoon             = "Typhoon"
	CategorySevereTropicalStorm = "Severe Tropical Storm"
	CategoryTropicalStorm       = "Tropical Storm"
	CategoryTropicalDepression  = "Tropical Depression"

	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// ClassifyStorm maps a sustained wind speed in km/h to a category and severity.
func ClassifyStorm(windKmh float64) (category, severity string) {
	switch {
	case windKmh > 118:
		return CategoryTyphoon, SeverityHigh
	case windKmh > 88:
		return CategorySevereTropicalStorm, SeverityHigh
	case windKmh > 62:
		return CategoryTropicalStorm, SeverityMedium
	default:
		return CategoryTropicalDepression, SeverityLow
	}
}

// NewStormRecord builds the stored form of a storm update stamped at now.
// A missing category is derived from the wind speed when one is known; an
// explicit severity always wins over the derived one.
func NewStormRecord(u StormUpdate) StormRecord {
	rec := StormRecord{
		ID:            u.StormID,
		Name:          u.Name,
		Category:      u.Category,
		Status:        u.Status,
		WindSpeed:     u.WindSpeed,
		Location:      u.Location,
		Movement:      u.Movement,
		Pressure:      u.Pressure,
		Warnings:      u.Warnings,
		AffectedAreas: u.AffectedAreas,
		NextUpdate:    u.NextUpdate,
		Severity:      u.Severity,
		Timestamp:     Now(),
	}
	if rec.Category == "" && rec.WindSpeed != nil {
		category, severity := ClassifyStorm(*rec.WindSpeed)
		rec.Category = category
		if rec.Severity == "" {
			rec.Severity = severity
		}
	}
	return rec
}
