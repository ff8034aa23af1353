package domain

import "time"

// appleEpochOffset is 2001-01-01T00:00:00Z in Unix seconds. chat.db stores
// message dates as nanoseconds since that epoch.
const appleEpochOffset = 978307200

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// AppleTimeToTime converts a raw chat.db date to wall-clock UTC time.
func AppleTimeToTime(raw int64) time.Time {
	return time.Unix(appleEpochOffset, raw).UTC()
}

// AppleTimeToISO renders a raw chat.db date as an ISO-8601 instant with
// millisecond precision.
func AppleTimeToISO(raw int64) string {
	return AppleTimeToTime(raw).Format(isoMillis)
}

// NowISO renders the current time in the same ISO-8601 shape. Used when a
// row carries no timestamp, so the engine never fabricates a past time.
func NowISO() string {
	return time.Now().UTC().Format(isoMillis)
}
