package metrics

import (
	"strconv"
	"time"
)

// RecordHTTPRequest records one served request. route should be the matched
// route pattern, not the raw path, to keep label cardinality bounded.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	HTTPRequestsTotal.WithLabelValues(method, route, code).Inc()
	HTTPRequestDuration.WithLabelValues(method, route, code).Observe(duration.Seconds())
}
