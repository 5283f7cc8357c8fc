package gateway

import (
	"time"

	"lead-gateway/internal/session"
)

// applyRateLimit advances the per-session fixed window and reports whether
// the current request may proceed. The counter is incremented before the
// limit check, so rejected requests still consume the window. When the
// request is rejected, retryAfter holds the whole seconds until the window
// resets, never less than one.
func applyRateLimit(st *session.RateState, now time.Time, max int, window time.Duration) (allowed bool, retryAfter int) {
	if st.ResetAt == 0 {
		st.ResetAt = now.Add(window).Unix()
	}

	if now.Unix() >= st.ResetAt {
		st.Count = 0
		st.ResetAt = now.Add(window).Unix()
	}

	st.Count++
	if st.Count > max {
		retryAfter = int(st.ResetAt - now.Unix())
		if retryAfter < 1 {
			retryAfter = 1
		}
		return false, retryAfter
	}
	return true, 0
}
