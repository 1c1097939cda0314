package risk

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/biter777/countries"
	"github.com/oschwald/maxminddb-golang"
	"github.com/patrickmn/go-cache"
)

const unknownPlace = "Unknown"

// Location is a resolved origin. Country is an ISO 3166-1 alpha-2 code.
type Location struct {
	City    string
	Country string
}

// Complete reports whether both city and country were resolved.
func (l Location) Complete() bool {
	return l.City != "" && l.Country != ""
}

// Label renders the location for display and the location column.
func (l Location) Label() string {
	switch {
	case l.Complete():
		return l.City + ", " + l.Country
	case l.Country != "":
		return l.Country
	case l.City != "":
		return l.City
	}
	return unknownPlace
}

// GeoHints are client-supplied location headers.
type GeoHints struct {
	City     string // X-City
	Country  string // X-Country
	Location string // X-Location, "City, CC"
}

// GeoResolver resolves an origin to a location. Implementations return the
// zero Location when nothing is known.
type GeoResolver interface {
	Resolve(ctx context.Context, ip string, hints GeoHints) Location
}

// HeaderResolver trusts the geo headers set by the edge proxy.
type HeaderResolver struct{}

func (HeaderResolver) Resolve(_ context.Context, _ string, hints GeoHints) Location {
	loc := Location{
		City:    cleanPlace(hints.City),
		Country: NormalizeCountry(hints.Country),
	}
	if loc.Complete() || hints.Location == "" {
		return loc
	}
	parts := strings.Split(hints.Location, ",")
	if len(parts) >= 2 {
		if loc.City == "" {
			loc.City = cleanPlace(parts[0])
		}
		if loc.Country == "" {
			loc.Country = NormalizeCountry(parts[len(parts)-1])
		}
	}
	return loc
}

// countryPlaceholders are codes proxies and geo databases send when the
// country is not known: XX and T1 (Tor) from CF-IPCountry, ZZ from the
// user-assigned range, A1/A2/AP/EU from legacy GeoIP.
var countryPlaceholders = map[string]struct{}{
	"XX": {}, "ZZ": {}, "T1": {}, "A1": {}, "A2": {}, "AP": {}, "EU": {},
	"N/A": {}, "--": {}, "NONE": {},
}

// NormalizeCountry returns the alpha-2 code for a country code or name, or
// "" when it is a placeholder or not an assigned country.
func NormalizeCountry(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, unknownPlace) {
		return ""
	}
	if _, ok := countryPlaceholders[strings.ToUpper(s)]; ok {
		return ""
	}
	code := countries.ByName(s)
	if code == countries.Unknown || code == countries.None || !code.IsValid() {
		return ""
	}
	alpha2 := code.Alpha2()
	if len(alpha2) != 2 {
		return ""
	}
	return alpha2
}

func cleanPlace(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, unknownPlace) {
		return ""
	}
	return s
}

// geoIPCity is the subset of a GeoLite2-City record the resolver reads.
type geoIPCity struct {
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
	Country struct {
		IsoCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

// MaxMindResolver looks origins up in a MaxMind city database, caching
// results per address.
type MaxMindResolver struct {
	reader *maxminddb.Reader
	cache  *cache.Cache
}

func NewMaxMindResolver(path string, ttl time.Duration) (*MaxMindResolver, error) {
	reader, err := maxminddb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	return &MaxMindResolver{
		reader: reader,
		cache:  cache.New(ttl, 2*ttl),
	}, nil
}

func (m *MaxMindResolver) Resolve(_ context.Context, ip string, _ GeoHints) Location {
	if cached, ok := m.cache.Get(ip); ok {
		return cached.(Location)
	}
	addr := net.ParseIP(ip)
	if addr == nil {
		return Location{}
	}
	var rec geoIPCity
	if err := m.reader.Lookup(addr, &rec); err != nil {
		return Location{}
	}
	loc := Location{
		City:    rec.City.Names["en"],
		Country: NormalizeCountry(rec.Country.IsoCode),
	}
	m.cache.Set(ip, loc, cache.DefaultExpiration)
	return loc
}

func (m *MaxMindResolver) Close() error {
	return m.reader.Close()
}

// ChainResolver asks each resolver in turn, filling fields left empty by the
// earlier ones.
type ChainResolver []GeoResolver

func (c ChainResolver) Resolve(ctx context.Context, ip string, hints GeoHints) Location {
	var loc Location
	for _, r := range c {
		next := r.Resolve(ctx, ip, hints)
		if loc.City == "" {
			loc.City = next.City
		}
		if loc.Country == "" {
			loc.Country = next.Country
		}
		if loc.Complete() {
			break
		}
	}
	return loc
}
