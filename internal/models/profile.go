package models

import "sort"

// UsageProfile is the set of service names observed as cost-incurring for an
// account scope over a trailing window. It is resolved once per run and
// read-only afterwards, so it may be shared freely across workers.
type UsageProfile struct {
	services map[string]struct{}
}

// NewUsageProfile builds a profile from service names, dropping empty names
// and duplicates.
func NewUsageProfile(services []string) *UsageProfile {
	set := make(map[string]struct{}, len(services))
	for _, s := range services {
		if s == "" {
			continue
		}
		set[s] = struct{}{}
	}
	return &UsageProfile{services: set}
}

// Services returns the profile's service names sorted alphabetically.
func (p *UsageProfile) Services() []string {
	out := make([]string, 0, len(p.services))
	for s := range p.services {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Contains reports whether the profile includes the given service name.
func (p *UsageProfile) Contains(service string) bool {
	_, ok := p.services[service]
	return ok
}

// Len returns the number of distinct services in the profile.
func (p *UsageProfile) Len() int {
	return len(p.services)
}
