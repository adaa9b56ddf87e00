// Package records implements the owner-scoped record store: key namespacing,
// per-kind operations and the error taxonomy the HTTP boundary maps from.
//
// Every key embeds the owning user id, and every operation derives its keys
// from the authenticated caller's id alone. That prefix scoping is the access
// control mechanism; there are no per-record ACLs.
package records

// Record kinds, used as key namespace prefixes.
const (
	kindProfile  = "profile"
	kindBooking  = "booking"
	kindNote     = "note"
	kindProgress = "progress"
)

// profileKey is the singleton Profile key for a user.
func profileKey(userID string) string {
	return kindProfile + ":" + userID
}

// bookingKey addresses one booking instance.
func bookingKey(userID, bookingID string) string {
	return kindBooking + ":" + userID + ":" + bookingID
}

// bookingPrefix scopes a scan to one user's bookings.
func bookingPrefix(userID string) string {
	return kindBooking + ":" + userID + ":"
}

// noteKey addresses the session note for one booking.
func noteKey(userID, bookingID string) string {
	return kindNote + ":" + userID + ":" + bookingID
}

// notePrefix scopes a scan to one user's session notes.
func notePrefix(userID string) string {
	return kindNote + ":" + userID + ":"
}

// progressKey addresses the progress entry for one period; the period label is
// the instance id, so re-submitting a week overwrites in place.
func progressKey(userID, week string) string {
	return kindProgress + ":" + userID + ":" + week
}

// progressPrefix scopes a scan to one user's progress entries.
func progressPrefix(userID string) string {
	return kindProgress + ":" + userID + ":"
}
