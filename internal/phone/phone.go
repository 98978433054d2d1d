// Package phone canonicalizes phone numbers for the messaging network.
//
// A single rule is applied in both directions: outbound destinations and
// inbound sender identifiers pass through the same Plan, so one physical
// number always maps to one canonical identifier.
//
// The rule follows national plans that grew an extra mobile digit after the
// area code (Brazil's ninth digit). Accounts on the network are addressed
// without it, so a full international number carrying the digit loses it:
//
//	5511987654321 -> 551187654321
package phone

import "strings"

// Plan describes the numbering plan used for canonicalization.
type Plan struct {
	// CountryCode is the international prefix the rule applies to. An empty
	// value disables digit removal.
	CountryCode string
	// AreaCodeLen is the number of area code digits after the country code.
	AreaCodeLen int
	// MobileDigit is the digit inserted in front of mobile subscriber numbers.
	MobileDigit byte
	// SubscriberLen is the subscriber length without the mobile digit.
	SubscriberLen int
}

// DefaultPlan is the Brazilian numbering plan.
var DefaultPlan = Plan{CountryCode: "55", AreaCodeLen: 2, MobileDigit: '9', SubscriberLen: 8}

// Canonicalize returns the canonical form of raw. It strips a network
// suffix ("@server"), a device suffix (":n") and every non-digit, then drops
// the mobile digit from numbers that carry it. Canonicalize is idempotent.
func (p Plan) Canonicalize(raw string) string {
	number := Strip(raw)
	if p.CountryCode == "" || p.MobileDigit == 0 {
		return number
	}
	withDigit := len(p.CountryCode) + p.AreaCodeLen + 1 + p.SubscriberLen
	if len(number) != withDigit || !strings.HasPrefix(number, p.CountryCode) {
		return number
	}
	at := len(p.CountryCode) + p.AreaCodeLen
	if number[at] != p.MobileDigit {
		return number
	}
	return number[:at] + number[at+1:]
}

// Strip removes the network and device suffixes and every non-digit.
func Strip(raw string) string {
	if i := strings.IndexByte(raw, '@'); i >= 0 {
		raw = raw[:i]
	}
	if i := strings.IndexByte(raw, ':'); i >= 0 {
		raw = raw[:i]
	}
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if c := raw[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
