package risk

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/BradenHooton/riskgate/internal/models"
)

// NightEndHour is the last hour, inclusive, counted as a night login.
const NightEndHour = 6

var DefaultHighRiskCountries = []string{"RU", "CN", "KP", "IR", "SY"}

// LoginContext is the raw description of a login attempt as seen by the
// HTTP layer.
type LoginContext struct {
	IPAddress string
	UserAgent string
	Geo       GeoHints
	Time      time.Time
}

// Display carries the human-readable fields recorded next to the features.
type Display struct {
	IPAddress string
	Location  string
	Country   string
	City      string
	Device    string
	OS        string
	Browser   string
}

// Extraction is the output of the feature extractor.
type Extraction struct {
	Vector  models.FeatureVector
	Display Display
}

// AttemptHistory counts prior attempts for an account.
type AttemptHistory interface {
	CountByOrigin(ctx context.Context, accountID, ip string) (int, error)
	CountByDeviceCombo(ctx context.Context, accountID, device, os string) (int, error)
}

type Extractor struct {
	history  AttemptHistory
	geo      GeoResolver
	location *time.Location
	highRisk map[string]bool
	logger   *slog.Logger
}

func NewExtractor(history AttemptHistory, geo GeoResolver, loc *time.Location, highRiskCountries []string, logger *slog.Logger) *Extractor {
	if geo == nil {
		geo = HeaderResolver{}
	}
	if loc == nil {
		loc = time.UTC
	}
	highRisk := make(map[string]bool, len(highRiskCountries))
	for _, c := range highRiskCountries {
		if code := NormalizeCountry(c); code != "" {
			highRisk[code] = true
		}
	}
	return &Extractor{
		history:  history,
		geo:      geo,
		location: loc,
		highRisk: highRisk,
		logger:   logger,
	}
}

// Extract builds the feature vector for lc. accountID may be empty when the
// username did not resolve. It never fails: missing context yields the
// conservative default for that feature.
func (e *Extractor) Extract(ctx context.Context, lc LoginContext, accountID string) Extraction {
	ip := strings.TrimSpace(lc.IPAddress)
	client := ParseUserAgent(lc.UserAgent)
	loc := e.geo.Resolve(ctx, ip, lc.Geo)

	at := lc.Time
	if at.IsZero() {
		at = time.Now()
	}
	hour := at.In(e.location).Hour()

	vec := models.FeatureVector{
		DeviceScore:     DeviceScore(client.Device),
		OSScore:         OSScore(client.OS),
		BrowserScore:    BrowserScore(client.Browser),
		LoginHour:       hour,
		HighRiskCountry: e.highRisk[loc.Country],
		NightLogin:      hour <= NightEndHour,
		IPFrequency:     Frequency(0),
		ComboFrequency:  Frequency(0),
	}
	if ip == "" || ip == "unknown" {
		vec.IPScore = 1
	}
	if !loc.Complete() {
		vec.LocationScore = 1
	}

	if accountID != "" && e.history != nil {
		if n, err := e.history.CountByOrigin(ctx, accountID, ip); err == nil {
			vec.IPFrequency = Frequency(n)
		} else {
			e.logCountError("origin", accountID, err)
		}
		if n, err := e.history.CountByDeviceCombo(ctx, accountID, client.Device, client.OS); err == nil {
			vec.ComboFrequency = Frequency(n)
		} else {
			e.logCountError("device_combo", accountID, err)
		}
	}

	return Extraction{
		Vector: vec,
		Display: Display{
			IPAddress: ip,
			Location:  loc.Label(),
			Country:   loc.Country,
			City:      loc.City,
			Device:    client.Device,
			OS:        client.OS,
			Browser:   client.Browser,
		},
	}
}

// Frequency is ln(1+count) where count is the prior occurrences plus the
// current attempt.
func Frequency(prior int) float64 {
	if prior < 0 {
		prior = 0
	}
	return math.Log1p(float64(prior + 1))
}

func (e *Extractor) logCountError(feature, accountID string, err error) {
	if e.logger == nil {
		return
	}
	e.logger.Warn("attempt history count failed, using default frequency",
		slog.String("feature", feature),
		slog.String("account_id", accountID),
		slog.Any("error", err))
}
