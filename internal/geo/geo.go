// Package geo annotates public listener addresses with GeoIP country and
// ASN data from MaxMind databases. Annotation is informational only.
package geo

import (
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// Service wraps optional City and ASN readers.
type Service struct {
	city *geoip2.Reader
	asn  *geoip2.Reader
}

// Open opens the given .mmdb files. Either path may be empty; if both are
// empty Open returns nil, nil.
func Open(cityDB, asnDB string) (*Service, error) {
	if cityDB == "" && asnDB == "" {
		return nil, nil
	}
	s := &Service{}
	if cityDB != "" {
		r, err := geoip2.Open(cityDB)
		if err != nil {
			return nil, fmt.Errorf("open geoip city db: %w", err)
		}
		s.city = r
	}
	if asnDB != "" {
		r, err := geoip2.Open(asnDB)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("open geoip asn db: %w", err)
		}
		s.asn = r
	}
	return s, nil
}

// Close releases the database readers.
func (s *Service) Close() {
	if s == nil {
		return
	}
	if s.city != nil {
		s.city.Close()
	}
	if s.asn != nil {
		s.asn.Close()
	}
}

// Describe returns addr with whatever GeoIP data is known, for example
// "203.0.113.5 (US, AS64500 Example Net)". Wildcard, private and
// unparseable addresses are returned unchanged.
//
// The addresses are the host's own bound interfaces, not remote peers, so
// this only adds data when the breaker is bound to a routable public IP.
// Wildcard and private binds, the usual case, come back as-is.
func (s *Service) Describe(addr string) string {
	ip := net.ParseIP(addr)
	if s == nil || ip == nil || !routable(ip) {
		return addr
	}

	var parts []string
	if s.city != nil {
		if rec, err := s.city.Country(ip); err == nil && rec.Country.IsoCode != "" {
			parts = append(parts, rec.Country.IsoCode)
		}
	}
	if s.asn != nil {
		if rec, err := s.asn.ASN(ip); err == nil && rec.AutonomousSystemNumber != 0 {
			parts = append(parts, fmt.Sprintf("AS%d %s", rec.AutonomousSystemNumber, rec.AutonomousSystemOrganization))
		}
	}
	if len(parts) == 0 {
		return addr
	}
	return fmt.Sprintf("%s (%s)", addr, strings.Join(parts, ", "))
}

// DescribeAll annotates each address.
func (s *Service) DescribeAll(addrs []string) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = s.Describe(a)
	}
	return out
}

func routable(ip net.IP) bool {
	return !(ip.IsUnspecified() || ip.IsLoopback() || ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast())
}
