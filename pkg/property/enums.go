package property

// SewerType classifies a property's sewer connection.
type SewerType string

// Sewer types.
const (
	SewerCity    SewerType = "city"
	SewerSeptic  SewerType = "septic"
	SewerUnknown SewerType = "unknown"
)

// Valid reports whether the sewer type is one of the declared constants.
func (s SewerType) Valid() bool {
	switch s {
	case SewerCity, SewerSeptic, SewerUnknown:
		return true
	default:
		return false
	}
}

// SolarStatus classifies a property's solar installation.
type SolarStatus string

// Solar statuses.
const (
	SolarOwned   SolarStatus = "owned"
	SolarLeased  SolarStatus = "leased"
	SolarNone    SolarStatus = "none"
	SolarUnknown SolarStatus = "unknown"
)

// Valid reports whether the solar status is one of the declared constants.
func (s SolarStatus) Valid() bool {
	switch s {
	case SolarOwned, SolarLeased, SolarNone, SolarUnknown:
		return true
	default:
		return false
	}
}

// Orientation is the compass facing of the property's front exposure.
type Orientation string

// Orientations.
const (
	OrientationN       Orientation = "N"
	OrientationNE      Orientation = "NE"
	OrientationE       Orientation = "E"
	OrientationSE      Orientation = "SE"
	OrientationS       Orientation = "S"
	OrientationSW      Orientation = "SW"
	OrientationW       Orientation = "W"
	OrientationNW      Orientation = "NW"
	OrientationUnknown Orientation = "unknown"
)

// Valid reports whether the orientation is one of the declared constants.
func (o Orientation) Valid() bool {
	switch o {
	case OrientationN, OrientationNE, OrientationE, OrientationSE,
		OrientationS, OrientationSW, OrientationW, OrientationNW,
		OrientationUnknown:
		return true
	default:
		return false
	}
}

// Verdict is the kill-switch outcome for a property.
type Verdict string

// Kill-switch verdicts.
const (
	VerdictPass    Verdict = "PASS"
	VerdictWarning Verdict = "WARNING"
	VerdictFail    Verdict = "FAIL"
)

// Valid reports whether the verdict is one of the declared constants.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictPass, VerdictWarning, VerdictFail:
		return true
	default:
		return false
	}
}

// Tier is the final classification bucket for a property.
type Tier string

// Tiers.
const (
	TierUnicorn   Tier = "UNICORN"
	TierContender Tier = "CONTENDER"
	TierPass      Tier = "PASS"
	TierFailed    Tier = "FAILED"
)

// Valid reports whether the tier is one of the declared constants.
func (t Tier) Valid() bool {
	switch t {
	case TierUnicorn, TierContender, TierPass, TierFailed:
		return true
	default:
		return false
	}
}
