package rf

import "fmt"

// Band groups operating frequencies into display tiers.
type Band int

const (
	BandSub2   Band = iota // below 2 GHz
	BandLow                // 2-5 GHz
	BandMid                // 5-10 GHz
	BandHigh               // 10-20 GHz
	BandMillim             // 20 GHz and up
)

// BandFor returns the tier for a frequency in GHz.
func BandFor(freqGHz float64) Band {
	switch {
	case freqGHz < 2:
		return BandSub2
	case freqGHz < 5:
		return BandLow
	case freqGHz < 10:
		return BandMid
	case freqGHz < 20:
		return BandHigh
	default:
		return BandMillim
	}
}

// Color returns the hex display color for the band.
func (b Band) Color() string {
	switch b {
	case BandSub2:
		return "#3B82F6"
	case BandLow:
		return "#10B981"
	case BandMid:
		return "#F59E0B"
	case BandHigh:
		return "#EF4444"
	default:
		return "#8B5CF6"
	}
}

func (b Band) String() string {
	switch b {
	case BandSub2:
		return "<2 GHz"
	case BandLow:
		return "2-5 GHz"
	case BandMid:
		return "5-10 GHz"
	case BandHigh:
		return "10-20 GHz"
	case BandMillim:
		return ">=20 GHz"
	default:
		return fmt.Sprintf("Band(%d)", int(b))
	}
}
