package http

import (
	"time"

	xutil "QuantLab/pkg/util"
)

// ParseTime accepts RFC3339, RFC3339Nano, bare dates and unix seconds, so
// query parameters stay permissive about timestamp shape.
func ParseTime(s string) (time.Time, bool) { return xutil.ParseTime(s) }
