// Package risk turns login attempts into verdicts: feature extraction,
// threshold classification, the hard override, the rule-based fallback and
// the brute-force ladder.
package risk

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// HardRule is the conjunction that forces critical/block regardless of score:
// incomplete location, high-risk country, night login and an origin no more
// frequent than MaxOriginFrequency.
type HardRule struct {
	Enabled            bool    `yaml:"enabled"`
	MaxOriginFrequency float64 `yaml:"max_origin_frequency"`
}

// FallbackRule weights feature signals when no model is available.
type FallbackRule struct {
	LocationWeight     float64 `yaml:"location_weight"`
	DeviceWeight       float64 `yaml:"device_weight"`
	OSWeight           float64 `yaml:"os_weight"`
	BrowserWeight      float64 `yaml:"browser_weight"`
	HighRiskCountry    float64 `yaml:"high_risk_country"`
	NightLogin         float64 `yaml:"night_login"`
	NewOrigin          float64 `yaml:"new_origin"`
	NewOriginFrequency float64 `yaml:"new_origin_frequency"`
	BlockAt            float64 `yaml:"block_at"`
	DelayAt            float64 `yaml:"delay_at"`
	WarnAt             float64 `yaml:"warn_at"`
}

// BruteForceRule is the failed-password ladder over a trailing window.
type BruteForceRule struct {
	Window  time.Duration `yaml:"window"`
	WarnAt  int           `yaml:"warn_at"`
	DelayAt int           `yaml:"delay_at"`
	BlockAt int           `yaml:"block_at"`
}

// Policy holds every tunable of the classifier.
type Policy struct {
	DelaySeconds int            `yaml:"delay_seconds"`
	HardRule     HardRule       `yaml:"hard_rule"`
	Fallback     FallbackRule   `yaml:"fallback"`
	BruteForce   BruteForceRule `yaml:"brute_force"`
}

func DefaultPolicy() Policy {
	return Policy{
		DelaySeconds: 60,
		HardRule: HardRule{
			Enabled:            true,
			MaxOriginFrequency: 1.0,
		},
		Fallback: FallbackRule{
			LocationWeight:     0.1,
			DeviceWeight:       0.05,
			OSWeight:           0.05,
			BrowserWeight:      0.05,
			HighRiskCountry:    0.2,
			NightLogin:         0.1,
			NewOrigin:          0.1,
			NewOriginFrequency: math.Log1p(2),
			BlockAt:            0.4,
			DelayAt:            0.2,
			WarnAt:             0.1,
		},
		BruteForce: BruteForceRule{
			Window:  30 * time.Minute,
			WarnAt:  3,
			DelayAt: 4,
			BlockAt: 6,
		},
	}
}

// LoadPolicyFile overlays the YAML document at path onto base. Keys absent
// from the file keep their base values.
func LoadPolicyFile(path string, base Policy) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read risk policy: %w", err)
	}
	p := base
	if err := yaml.Unmarshal(data, &p); err != nil {
		return base, fmt.Errorf("parse risk policy %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return base, err
	}
	return p, nil
}

func (p Policy) Validate() error {
	if p.DelaySeconds <= 0 {
		return fmt.Errorf("risk policy: delay_seconds must be positive")
	}
	f := p.Fallback
	if !(f.BlockAt >= f.DelayAt && f.DelayAt >= f.WarnAt) {
		return fmt.Errorf("risk policy: fallback cutoffs must satisfy block_at >= delay_at >= warn_at")
	}
	b := p.BruteForce
	if b.Window <= 0 || !(b.BlockAt >= b.DelayAt && b.DelayAt >= b.WarnAt && b.WarnAt > 0) {
		return fmt.Errorf("risk policy: brute_force ladder must satisfy block_at >= delay_at >= warn_at > 0")
	}
	return nil
}
