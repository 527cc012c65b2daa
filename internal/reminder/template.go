package reminder

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Template placeholders: {name} {plate} {days} {when} {date} {urgency}.
// Rendering is pure string substitution; unknown placeholders are left
// verbatim so a typo in a tenant template never breaks a send.

// Urgency classifies how close (or past) an expiry is.
type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyNone   Urgency = "none"
)

// RenderContext supplies the values a template can reference.
//
// DaysRemaining is the live expiry delta (expiry date minus today, whole
// days), NOT the reminder's lead-time: a 7-day reminder delivered three days
// late still reports the true remaining count.
type RenderContext struct {
	Name          string
	Plate         string
	DaysRemaining int
	ExpiresOn     time.Time
}

// Render substitutes the named placeholders in body.
func Render(body string, rc RenderContext) string {
	return strings.NewReplacer(
		"{name}", rc.Name,
		"{plate}", rc.Plate,
		"{days}", strconv.Itoa(rc.DaysRemaining),
		"{when}", WhenPhrase(rc.DaysRemaining),
		"{date}", rc.ExpiresOn.Format("02/01/2006"),
		"{urgency}", urgencyMarker(UrgencyFor(rc.DaysRemaining)),
	).Replace(body)
}

// WhenPhrase renders the human time phrase for a live days-remaining count.
func WhenPhrase(days int) string {
	switch {
	case days < 0:
		return fmt.Sprintf("expired %d days ago", -days)
	case days == 0:
		return "expires TODAY"
	case days == 1:
		return "expires TOMORROW"
	default:
		return fmt.Sprintf("expires in %d days", days)
	}
}

// UrgencyFor maps a live days-remaining count to an urgency level.
func UrgencyFor(days int) Urgency {
	switch {
	case days <= 1:
		return UrgencyHigh
	case days <= 7:
		return UrgencyMedium
	default:
		return UrgencyNone
	}
}

func urgencyMarker(u Urgency) string {
	switch u {
	case UrgencyHigh:
		return "🔴 URGENT! "
	case UrgencyMedium:
		return "⚠️ "
	default:
		return ""
	}
}

// defaultTemplates are the built-in per-kind bodies used when a tenant has no
// template configured (or the lookup fails). Framing escalates with proximity.
var defaultTemplates = map[Kind]string{
	Kind30Days: "Hello {name}! A reminder that the inspection for your vehicle {plate} {when} ({date}). Renew it in time!",
	Kind15Days: "Hello {name}! {urgency}The inspection for your vehicle {plate} {when} ({date}). Don't forget to renew it!",
	Kind7Days:  "Hello {name}! {urgency}The inspection for your vehicle {plate} {when} ({date}). Only a few days left!",
	Kind5Days:  "Hello {name}! {urgency}The inspection for your vehicle {plate} {when} ({date}). Renewing is now urgent!",
	Kind1Day:   "Hello {name}! {urgency}The inspection for your vehicle {plate} {when} ({date}). LAST CHANCE!",
}

// DefaultTemplate returns the built-in body for a kind. Unknown kinds get the
// most generic (30-day) framing rather than an error.
func DefaultTemplate(kind Kind) string {
	if body, ok := defaultTemplates[kind]; ok {
		return body
	}
	return defaultTemplates[Kind30Days]
}
