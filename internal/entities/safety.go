package entities

// ThreatType is a threat-list classification of a URL
type ThreatType string

const (
	ThreatMalware                       ThreatType = "MALWARE"
	ThreatSocialEngineering             ThreatType = "SOCIAL_ENGINEERING"
	ThreatUnwantedSoftware              ThreatType = "UNWANTED_SOFTWARE"
	ThreatPotentiallyHarmfulApplication ThreatType = "POTENTIALLY_HARMFUL_APPLICATION"
	ThreatTypeUnspecified               ThreatType = "THREAT_TYPE_UNSPECIFIED"
)

// ThreatTypes is the taxonomy checked against the threat list
var ThreatTypes = []ThreatType{
	ThreatMalware,
	ThreatSocialEngineering,
	ThreatUnwantedSoftware,
	ThreatPotentiallyHarmfulApplication,
	ThreatTypeUnspecified,
}

// ParseThreatType maps a provider string onto the taxonomy.
// Unknown values collapse to ThreatTypeUnspecified.
func ParseThreatType(s string) ThreatType {
	for _, t := range ThreatTypes {
		if string(t) == s {
			return t
		}
	}
	return ThreatTypeUnspecified
}

// FlagCategory is the content classifier's verdict
type FlagCategory string

const (
	CategorySafe          FlagCategory = "safe"
	CategorySuspicious    FlagCategory = "suspicious"
	CategoryMalicious     FlagCategory = "malicious"
	CategoryInappropriate FlagCategory = "inappropriate"
	CategoryUnknown       FlagCategory = "unknown"
)

// ParseFlagCategory coerces anything outside the five known categories to CategoryUnknown
func ParseFlagCategory(s string) FlagCategory {
	switch c := FlagCategory(s); c {
	case CategorySafe, CategorySuspicious, CategoryMalicious, CategoryInappropriate, CategoryUnknown:
		return c
	}
	return CategoryUnknown
}
