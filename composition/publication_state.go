package composition

// UpdateFunc refreshes a publication's outbound message immediately
// before each period or retransmission fires (§4.6 "Timer body").
type UpdateFunc func(m *Model) error

// Period byte unit table (§3 "Publication state").
const (
	PeriodUnit100ms = 0
	PeriodUnit1s    = 1
	PeriodUnit10s   = 2
	PeriodUnit10min = 3
)

// PublicationState is the publication record a publishing model owns
// (§3). ArenaIdx is the back-pointer to the owning model, stored as an
// index rather than a raw pointer (design note 9); resolve it with
// Composition.ModelAt.
type PublicationState struct {
	Addr       uint16
	AppKeyIdx  int16
	Cred       bool
	TTL        uint8
	Period     uint8 // bits 0-5 steps, bits 6-7 unit
	Retransmit uint8 // bits 0-2 count, bits 3-7 interval steps
	PeriodDiv  uint8 // 0-15
	FastPeriod bool
	Delayable  bool
	Update     UpdateFunc
	UpdateOnRetransmit bool
	// VirtualIdx is the va-store index of the destination label when
	// Addr falls in the virtual-address range; persisted as /pub's
	// trailing uuidx field (§4.7) and ignored otherwise.
	VirtualIdx uint16

	Msg []byte

	// Runtime fields mutated only by the publish engine.
	Count       int
	PeriodStart int64

	arenaIdx int
	stopped  bool
}

// MarkRunning clears the stopped flag (publish engine, on commit/provision).
func (p *PublicationState) MarkRunning() { p.stopped = false }

// MarkStopped sets the stopped flag (publish engine, on unprovision/suspend).
func (p *PublicationState) MarkStopped() { p.stopped = true }

// ArenaIdx returns the back-pointer to the owning model's arena slot.
func (p *PublicationState) ArenaIdx() int { return p.arenaIdx }

// Stopped reports whether the publication timer is currently disarmed
// (unprovisioned, suspended, or never started).
func (p *PublicationState) Stopped() bool { return p.stopped }

// PeriodMillis decodes the period byte into milliseconds (§3): base
// steps in the 6 LSBs, unit in bits 6-7.
func PeriodMillis(b uint8) int64 {
	steps := int64(b & 0x3F)
	switch b >> 6 {
	case PeriodUnit100ms:
		return steps * 100
	case PeriodUnit1s:
		return steps * 1000
	case PeriodUnit10s:
		return steps * 10_000
	default: // PeriodUnit10min
		return steps * 600_000
	}
}

// RetransmitCount decodes the retransmit byte's count field (3 LSBs).
func RetransmitCount(b uint8) int { return int(b & 0x07) }

// RetransmitIntervalMillis decodes the retransmit byte's interval field
// (5 MSBs): interval_ms = (steps+1)*50.
func RetransmitIntervalMillis(b uint8) int64 {
	steps := int64(b >> 3)
	return (steps + 1) * 50
}
