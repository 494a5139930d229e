package correlator

import (
	"strconv"
	"strings"
)

// Tier names the route id matching strategy that produced a match.
type Tier string

const (
	TierNone            Tier = ""
	TierExact           Tier = "exact"
	TierCaseInsensitive Tier = "case_insensitive"
	TierLeadingZeros    Tier = "leading_zeros"
	TierNumeric         Tier = "numeric"
)

// Strategy decides whether a stored route id answers a request. Applies, when set,
// gates the whole strategy on the requested id.
type Strategy struct {
	Tier    Tier
	Applies func(requested string) bool
	Equal   func(requested, stored string) bool
}

// Policy is an ordered list of strategies. The first strategy that matches at least
// one stored id wins.
type Policy []Strategy

// DefaultPolicy tries exact equality, then case-insensitive equality, then, for purely
// numeric requests, equality after stripping leading zeros and finally numeric value.
func DefaultPolicy() Policy {
	return Policy{
		{
			Tier:  TierExact,
			Equal: func(requested, stored string) bool { return requested == stored },
		},
		{
			Tier:  TierCaseInsensitive,
			Equal: strings.EqualFold,
		},
		{
			Tier: TierLeadingZeros,
			Applies: func(requested string) bool {
				return isDigits(requested) && strings.TrimLeft(requested, "0") != ""
			},
			Equal: func(requested, stored string) bool {
				return strings.TrimLeft(stored, "0") == strings.TrimLeft(requested, "0")
			},
		},
		{
			Tier:    TierNumeric,
			Applies: isDigits,
			Equal: func(requested, stored string) bool {
				r, err := strconv.ParseFloat(requested, 64)
				if err != nil {
					return false
				}
				s, err := strconv.ParseFloat(stored, 64)
				return err == nil && r == s
			},
		},
	}
}

// Resolve returns the stored ids matched by the first successful strategy, in
// candidate order, and that strategy's tier.
func (p Policy) Resolve(requested string, candidates []string) ([]string, Tier) {
	requested = strings.TrimSpace(requested)
	for _, s := range p {
		if s.Applies != nil && !s.Applies(requested) {
			continue
		}
		var matched []string
		seen := make(map[string]bool)
		for _, c := range candidates {
			if seen[c] || !s.Equal(requested, c) {
				continue
			}
			seen[c] = true
			matched = append(matched, c)
		}
		if len(matched) > 0 {
			return matched, s.Tier
		}
	}
	return nil, TierNone
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
