package profile

import "github.com/darmie/rayzor/internal/config"

// NextTier reports the tier a function at current should be promoted to
// given callCount calls recorded at its current tier, per spec.md §4.9's
// threshold ladder {interpreter, warm, hot, blazing} driving transitions
// tier-0 -> tier-1 -> tier-2 -> tier-3. Returns current unchanged (ok
// false) if no threshold has been crossed, or the ceiling has already
// been reached.
func NextTier(current Tier, callCount uint64, t config.Tiered) (Tier, bool) {
	switch current {
	case Tier0Baseline:
		if callCount >= t.WarmThreshold {
			return Tier1Standard, true
		}
	case Tier1Standard:
		if callCount >= t.HotThreshold {
			return Tier2Optimized, true
		}
	case Tier2Optimized:
		if callCount >= t.BlazingThreshold {
			return Tier3Maximum, true
		}
	}
	return current, false
}
