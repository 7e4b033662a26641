package nvs

const (
	keyLastAP        = "scratch.last_ap"
	keyTimeAdjustSec = "scratch.time_adjust_s"
	keyTimeConfigd   = "scratch.time_ever_configured"
)

// Scratch is the crash-safe "last successful access point" and
// clock-adjustment record from §3 (PersistentScratch). It is a thin
// typed view over a Store.
type Scratch struct {
	store *Store
}

// NewScratch wraps store with PersistentScratch accessors.
func NewScratch(store *Store) *Scratch {
	return &Scratch{store: store}
}

// LastSuccessfulAP returns the persisted access-point index (0..2),
// defaulting to 0 if never set.
func (s *Scratch) LastSuccessfulAP() int {
	v, ok := s.store.GetInt(keyLastAP)
	if !ok || v < 0 || v > 2 {
		return 0
	}
	return int(v)
}

// SetLastSuccessfulAP persists idx. Per invariant 4 in §8, callers must
// only invoke this on a transition to Connected, never on Failed.
func (s *Scratch) SetLastSuccessfulAP(idx int) {
	s.store.SetInt(keyLastAP, int32(idx))
}

// TimeAdjustment returns the last-computed clock adjustment in seconds
// and whether the clock has ever been synchronized.
func (s *Scratch) TimeAdjustment() (delta int64, everConfigured bool) {
	v, ok := s.store.GetInt(keyTimeConfigd)
	everConfigured = ok && v != 0
	if !everConfigured {
		return 0, false
	}
	hi, _ := s.store.GetInt(keyTimeAdjustSec + ".hi")
	lo, _ := s.store.GetInt(keyTimeAdjustSec + ".lo")
	return int64(hi)<<32 | int64(uint32(lo)), true
}

// SetTimeAdjustment persists a new clock adjustment delta (seconds).
func (s *Scratch) SetTimeAdjustment(delta int64) {
	s.store.SetInt(keyTimeAdjustSec+".hi", int32(delta>>32))
	s.store.SetInt(keyTimeAdjustSec+".lo", int32(uint32(delta)))
	s.store.SetInt(keyTimeConfigd, 1)
}
