// Package clientinfo derives geolocation and device classification for a
// joining visitor from its network address and user-agent string.
package clientinfo

import (
	"net"
	"strings"

	"engage-ws/internal/domain"

	"github.com/mileusna/useragent"
	"github.com/oschwald/geoip2-golang"
	"go.uber.org/zap"
)

const unknown = "Unknown"

// devFallbackIP replaces loopback/unresolvable addresses in development so
// local widget testing still produces a plausible geolocation.
const devFallbackIP = "14.143.190.10"

type Resolver struct {
	log         *zap.Logger
	db          *geoip2.Reader
	development bool
}

// NewResolver opens the GeoIP database at mmdbPath when configured. A
// missing or unopenable database is not fatal; lookups then return Unknown
// fields.
func NewResolver(mmdbPath string, development bool, log *zap.Logger) *Resolver {
	r := &Resolver{log: log, development: development}

	if mmdbPath == "" {
		log.Info("no GeoIP database configured, geolocation disabled")
		return r
	}

	db, err := geoip2.Open(mmdbPath)
	if err != nil {
		log.Warn("failed to open GeoIP database, geolocation disabled",
			zap.String("path", mmdbPath), zap.Error(err))
		return r
	}
	r.db = db
	return r
}

func (r *Resolver) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// ClientIP picks the effective caller address: the first X-Forwarded-For
// entry when present, else the remote address with any port stripped. In
// development, loopback and empty addresses map to the fixed test address.
func (r *Resolver) ClientIP(forwardedFor, remoteAddr string) string {
	ip := remoteAddr
	if forwardedFor != "" {
		ip = strings.TrimSpace(strings.SplitN(forwardedFor, ",", 2)[0])
	}
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}

	if r.development || ip == "" || ip == "::1" || ip == "127.0.0.1" {
		return devFallbackIP
	}
	return ip
}

// Location resolves the caller's geolocation. Unknown fields never fail a
// join.
func (r *Resolver) Location(ip string) domain.Location {
	loc := domain.Location{Country: unknown, City: unknown, Region: unknown}
	if r.db == nil {
		return loc
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return loc
	}

	rec, err := r.db.City(parsed)
	if err != nil {
		r.log.Debug("GeoIP lookup failed", zap.String("ip", ip), zap.Error(err))
		return loc
	}

	if rec.Country.IsoCode != "" {
		loc.Country = rec.Country.IsoCode
	}
	if city := rec.City.Names["en"]; city != "" {
		loc.City = city
	}
	if len(rec.Subdivisions) > 0 && rec.Subdivisions[0].IsoCode != "" {
		loc.Region = rec.Subdivisions[0].IsoCode
	}
	return loc
}

// Device classifies the supplied user-agent string.
func Device(uaString string) domain.Device {
	if uaString == "" {
		return domain.Device{Type: "desktop", Browser: unknown, OS: unknown}
	}

	ua := useragent.Parse(uaString)

	deviceType := "desktop"
	switch {
	case ua.Mobile:
		deviceType = "mobile"
	case ua.Tablet:
		deviceType = "tablet"
	case ua.Bot:
		deviceType = "bot"
	}

	browser := strings.TrimSpace(ua.Name + " " + ua.Version)
	if browser == "" {
		browser = unknown
	}
	os := ua.OS
	if os == "" {
		os = unknown
	}

	return domain.Device{Type: deviceType, Browser: browser, OS: os}
}
