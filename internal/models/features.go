package models

// Feature names in persisted order. The model bundle refers to features by
// these names.
const (
	FeatureIPScore         = "ip_score"
	FeatureLocationScore   = "location_score"
	FeatureDeviceScore     = "device_score"
	FeatureOSScore         = "os_score"
	FeatureBrowserScore    = "browser_score"
	FeatureLoginHour       = "login_hour"
	FeatureIPFrequency     = "ip_frequency"
	FeatureHighRiskCountry = "high_risk_country"
	FeatureNightLogin      = "night_login"
	FeatureComboFrequency  = "combo_frequency"
)

// FeatureNames lists every feature of a FeatureVector in column order.
var FeatureNames = []string{
	FeatureIPScore,
	FeatureLocationScore,
	FeatureDeviceScore,
	FeatureOSScore,
	FeatureBrowserScore,
	FeatureLoginHour,
	FeatureIPFrequency,
	FeatureHighRiskCountry,
	FeatureNightLogin,
	FeatureComboFrequency,
}

// FeatureVector is the numeric description of a single login attempt.
type FeatureVector struct {
	IPScore         float64 `json:"ip_score"`
	LocationScore   float64 `json:"location_score"`
	DeviceScore     float64 `json:"device_score"`
	OSScore         float64 `json:"os_score"`
	BrowserScore    float64 `json:"browser_score"`
	LoginHour       int     `json:"login_hour"`
	IPFrequency     float64 `json:"ip_frequency"`
	HighRiskCountry bool    `json:"high_risk_country"`
	NightLogin      bool    `json:"night_login"`
	ComboFrequency  float64 `json:"combo_frequency"`
}

// Lookup returns the value of the named feature.
func (v FeatureVector) Lookup(name string) (float64, bool) {
	switch name {
	case FeatureIPScore:
		return v.IPScore, true
	case FeatureLocationScore:
		return v.LocationScore, true
	case FeatureDeviceScore:
		return v.DeviceScore, true
	case FeatureOSScore:
		return v.OSScore, true
	case FeatureBrowserScore:
		return v.BrowserScore, true
	case FeatureLoginHour:
		return float64(v.LoginHour), true
	case FeatureIPFrequency:
		return v.IPFrequency, true
	case FeatureHighRiskCountry:
		return boolToFloat(v.HighRiskCountry), true
	case FeatureNightLogin:
		return boolToFloat(v.NightLogin), true
	case FeatureComboFrequency:
		return v.ComboFrequency, true
	}
	return 0, false
}

// Values returns the vector in FeatureNames order.
func (v FeatureVector) Values() []float64 {
	out := make([]float64, len(FeatureNames))
	for i, name := range FeatureNames {
		out[i], _ = v.Lookup(name)
	}
	return out
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
