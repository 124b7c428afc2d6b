package googleads

import "strconv"

type country struct {
	code string
	name string
}

// countries maps Google geo target criterion IDs to country code and name.
var countries = map[int64]country{
	2036: {"AU", "Australia"},
	2040: {"AT", "Austria"},
	2056: {"BE", "Belgium"},
	2076: {"BR", "Brazil"},
	2124: {"CA", "Canada"},
	2152: {"CL", "Chile"},
	2156: {"CN", "China"},
	2170: {"CO", "Colombia"},
	2203: {"CZ", "Czechia"},
	2208: {"DK", "Denmark"},
	2246: {"FI", "Finland"},
	2250: {"FR", "France"},
	2276: {"DE", "Germany"},
	2300: {"GR", "Greece"},
	2344: {"HK", "Hong Kong"},
	2356: {"IN", "India"},
	2360: {"ID", "Indonesia"},
	2372: {"IE", "Ireland"},
	2376: {"IL", "Israel"},
	2380: {"IT", "Italy"},
	2392: {"JP", "Japan"},
	2410: {"KR", "South Korea"},
	2458: {"MY", "Malaysia"},
	2484: {"MX", "Mexico"},
	2528: {"NL", "Netherlands"},
	2554: {"NZ", "New Zealand"},
	2578: {"NO", "Norway"},
	2604: {"PE", "Peru"},
	2608: {"PH", "Philippines"},
	2616: {"PL", "Poland"},
	2620: {"PT", "Portugal"},
	2642: {"RO", "Romania"},
	2682: {"SA", "Saudi Arabia"},
	2702: {"SG", "Singapore"},
	2710: {"ZA", "South Africa"},
	2724: {"ES", "Spain"},
	2752: {"SE", "Sweden"},
	2756: {"CH", "Switzerland"},
	2158: {"TW", "Taiwan"},
	2764: {"TH", "Thailand"},
	2792: {"TR", "Turkey"},
	2784: {"AE", "United Arab Emirates"},
	2826: {"GB", "United Kingdom"},
	2840: {"US", "United States"},
	2704: {"VN", "Vietnam"},
	2032: {"AR", "Argentina"},
	2818: {"EG", "Egypt"},
	2566: {"NG", "Nigeria"},
	2348: {"HU", "Hungary"},
	2804: {"UA", "Ukraine"},
}

const unknownCountry = "Unknown"

// GetCountryName returns the country name for a criterion ID, or "Unknown".
func GetCountryName(criterionID string) string {
	if c, ok := lookupCountry(criterionID); ok {
		return c.name
	}
	return unknownCountry
}

// GetCountryCode returns the ISO 3166 alpha-2 code for a criterion ID, or "Unknown".
func GetCountryCode(criterionID string) string {
	if c, ok := lookupCountry(criterionID); ok {
		return c.code
	}
	return unknownCountry
}

func lookupCountry(criterionID string) (country, bool) {
	id, err := strconv.ParseInt(criterionID, 10, 64)
	if err != nil {
		return country{}, false
	}
	c, ok := countries[id]
	return c, ok
}
