package handlers

import (
	"time"

	"github.com/hako/durafmt"
)

var shortUnits, _ = durafmt.DefaultUnitsCoder.Decode("y:yrs,wk:wks,d:d,h:h,m:m,s:s,ms:ms,us:us")

// formatDuration renders d with its two most significant units, e.g. "3m 12s".
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return "0s"
	}
	return durafmt.Parse(d.Truncate(time.Millisecond)).LimitFirstN(2).Format(shortUnits)
}
