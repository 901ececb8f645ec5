package valuation

// Zone names a valuation band.
type Zone string

const (
	ZoneDeepValue    Zone = "deep_value"
	ZoneAccumulate   Zone = "accumulate"
	ZoneNeutral      Zone = "neutral"
	ZoneOverextended Zone = "overextended"
)

// Band maps a ratio range to a zone. The lower bound is inclusive.
type Band struct {
	Min    float64
	Zone   Zone
	Label  string
	Advice string
}

// Bands are ordered by descending lower bound.
var Bands = []Band{
	{Min: 5, Zone: ZoneOverextended, Label: "overextended", Advice: "Extremely overvalued, wait and observe"},
	{Min: 1.2, Zone: ZoneNeutral, Label: "neutral/pause", Advice: "Wait for takeoff, pause buying"},
	{Min: 0.45, Zone: ZoneAccumulate, Label: "accumulate", Advice: "DCA zone, normal buying"},
}

// DefaultBand applies below the lowest bound in Bands.
var DefaultBand = Band{Min: 0, Zone: ZoneDeepValue, Label: "deep value", Advice: "Bottom zone, increase buying"}

// Classify maps a valuation ratio to its band.
func Classify(ratio float64) Band {
	for _, b := range Bands {
		if ratio >= b.Min {
			return b
		}
	}
	return DefaultBand
}
