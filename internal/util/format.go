package util

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"
)

var shortUnits, _ = durafmt.DefaultUnitsCoder.Decode("y:yrs,wk:wks,d:d,h:h,m:m,s:s,ms:ms,us:us")

// FormatBytes renders a byte count for people, e.g. "4.2 MB".
func FormatBytes(n uint64) string {
	return humanize.Bytes(n)
}

// FormatDuration renders the two largest units of d, e.g. "3h 12m".
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return "0s"
	}
	return durafmt.Parse(d.Truncate(time.Second)).LimitFirstN(2).Format(shortUnits)
}

// FormatSince renders how long ago t was, e.g. "5 minutes ago".
func FormatSince(t time.Time) string {
	return humanize.Time(t)
}
