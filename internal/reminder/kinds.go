package reminder

// Kind identifies one lead-time in the fixed ordered set.
type Kind string

const (
	Kind30Days Kind = "30d"
	Kind15Days Kind = "15d"
	Kind7Days  Kind = "7d"
	Kind5Days  Kind = "5d"
	Kind1Day   Kind = "1d"
)

// LeadTime pairs a kind with its day offset before expiry.
type LeadTime struct {
	Kind Kind
	Days int
}

// LeadTimes is the ordered set of reminder lead-times, furthest out first.
// Scheduling, default templates and validation all derive from this one value;
// adding a lead-time here is the only change needed.
var LeadTimes = []LeadTime{
	{Kind30Days, 30},
	{Kind15Days, 15},
	{Kind7Days, 7},
	{Kind5Days, 5},
	{Kind1Day, 1},
}

// DaysFor returns the day offset for a kind (0, false when unknown).
func DaysFor(k Kind) (int, bool) {
	for _, lt := range LeadTimes {
		if lt.Kind == k {
			return lt.Days, true
		}
	}
	return 0, false
}
