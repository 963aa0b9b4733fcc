// Package persist implements Model State Persistence (C7): per-model
// key/value records under the bt/mesh/{s|v}/... namespace (§4.7), kept
// in sync with settings on a write-through-on-flag schedule — a mutator
// marks the section it touched dirty and arms a deferred flush; the
// flush walks every dirty model, writes only the marked sections, and
// clears their bits. A section whose write fails stays marked, so the
// next flush retries it (§7 "persistence errors are logged and the
// pending flag is not cleared").
package persist

import (
	"sync"
	"time"

	"github.com/go-ble/meshaccess/clog"
	"github.com/go-ble/meshaccess/composition"
	"github.com/go-ble/meshaccess/ports"
	"github.com/go-ble/meshaccess/publish"
)

// section is a bitmask of the dirty record kinds a model can owe a
// write for.
type section uint8

const (
	sectionBind section = 1 << iota
	sectionSub
	sectionSubV
	sectionPub
)

type dataKey struct {
	m    *composition.Model
	name string
}

// Store is the coalesced settings front for every model's bind/sub/
// subv/pub records plus opaque per-model data blobs. One Store serves a
// whole Composition.
type Store struct {
	comp     *composition.Composition
	settings ports.Settings
	log      clog.Clog

	mu         sync.Mutex
	dirty      map[*composition.Model]section
	dataValues map[dataKey][]byte
	dataDirty  map[dataKey]bool
	flushTimer *time.Timer
	flushDelay time.Duration
}

// NewStore wires settings as the persistence backend for comp's models.
// flushDelay is the debounce window a deferred flush waits before
// running, coalescing any mutations that land inside it into one write
// per section (§5 "persistence writes for a model are coalesced").
func NewStore(comp *composition.Composition, settings ports.Settings, log clog.Clog, flushDelay time.Duration) *Store {
	return &Store{
		comp:       comp,
		settings:   settings,
		log:        log,
		dirty:      make(map[*composition.Model]section),
		dataValues: make(map[dataKey][]byte),
		dataDirty:  make(map[dataKey]bool),
		flushDelay: flushDelay,
	}
}

func (s *Store) markDirtyLocked(m *composition.Model, sec section) {
	s.dirty[m] |= sec
	s.scheduleFlushLocked()
}

func (s *Store) scheduleFlushLocked() {
	if s.flushTimer != nil {
		return
	}
	s.flushTimer = time.AfterFunc(s.flushDelay, s.flushTimerFire)
}

func (s *Store) flushTimerFire() {
	s.mu.Lock()
	s.flushTimer = nil
	s.flushLocked()
	s.mu.Unlock()
}

// BindStore marks m's app-key binding list dirty (§4.7 "bind_store").
// Call it after Model.Bind/Unbind.
func (s *Store) BindStore(m *composition.Model) {
	s.mu.Lock()
	s.markDirtyLocked(m, sectionBind)
	s.mu.Unlock()
}

// SubStore marks m's group-subscription list dirty (§4.7 "sub_store").
// Call it after Model.SubscribeGroup/UnsubscribeGroup.
func (s *Store) SubStore(m *composition.Model) {
	s.mu.Lock()
	s.markDirtyLocked(m, sectionSub)
	s.mu.Unlock()
}

// SubVStore marks m's virtual-label subscription list dirty. Call it
// after Model.SubscribeVirtual/UnsubscribeVirtual.
func (s *Store) SubVStore(m *composition.Model) {
	s.mu.Lock()
	s.markDirtyLocked(m, sectionSubV)
	s.mu.Unlock()
}

// PubStore marks m's publication record dirty (§4.7 "pub_store"). Call
// it after mutating m.Pub's configuration fields.
func (s *Store) PubStore(m *composition.Model) {
	if m.Pub == nil {
		return
	}
	s.mu.Lock()
	s.markDirtyLocked(m, sectionPub)
	s.mu.Unlock()
}

// DataStoreSchedule stashes an opaque model-private blob and marks it
// dirty (§4.7 "/data/<name>", restored from original_source/'s
// bt_mesh_model_data_store, listed in SPEC_FULL.md's supplemented
// features).
func (s *Store) DataStoreSchedule(m *composition.Model, name string, data []byte) {
	k := dataKey{m: m, name: name}
	s.mu.Lock()
	s.dataValues[k] = append([]byte(nil), data...)
	s.dataDirty[k] = true
	s.scheduleFlushLocked()
	s.mu.Unlock()
}

// Data returns the current value of m's "/data/<name>" blob, whether it
// came from a prior Load or a not-yet-flushed DataStoreSchedule.
func (s *Store) Data(m *composition.Model, name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.dataValues[dataKey{m: m, name: name}]
	return v, ok
}

// Flush runs the deferred write immediately instead of waiting for the
// debounce timer, for a caller that must flush pending state before
// addresses are zeroed (§5 "Cancellation").
func (s *Store) Flush() {
	s.mu.Lock()
	if s.flushTimer != nil {
		s.flushTimer.Stop()
		s.flushTimer = nil
	}
	s.flushLocked()
	s.mu.Unlock()
}

func (s *Store) flushLocked() {
	for m, sec := range s.dirty {
		remaining := sec
		if sec&sectionBind != 0 {
			if err := s.settings.SaveOne(bindKey(s.comp, m), encodeBind(m)); err != nil {
				s.log.Error("persist bind flush failed", map[string]any{"elem_idx": m.ElemIdx(), "mod_idx": m.ModIdx(), "err": err.Error()})
			} else {
				remaining &^= sectionBind
			}
		}
		if sec&sectionSub != 0 {
			if err := s.settings.SaveOne(subKey(s.comp, m), encodeSub(m)); err != nil {
				s.log.Error("persist sub flush failed", map[string]any{"elem_idx": m.ElemIdx(), "mod_idx": m.ModIdx(), "err": err.Error()})
			} else {
				remaining &^= sectionSub
			}
		}
		if sec&sectionSubV != 0 {
			if err := s.settings.SaveOne(subvKey(s.comp, m), encodeSubV(m)); err != nil {
				s.log.Error("persist subv flush failed", map[string]any{"elem_idx": m.ElemIdx(), "mod_idx": m.ModIdx(), "err": err.Error()})
			} else {
				remaining &^= sectionSubV
			}
		}
		if sec&sectionPub != 0 {
			if m.Pub == nil {
				remaining &^= sectionPub
			} else if err := s.settings.SaveOne(pubKey(s.comp, m), encodePub(m.Pub)); err != nil {
				s.log.Error("persist pub flush failed", map[string]any{"elem_idx": m.ElemIdx(), "mod_idx": m.ModIdx(), "err": err.Error()})
			} else {
				remaining &^= sectionPub
			}
		}
		if remaining == 0 {
			delete(s.dirty, m)
		} else {
			s.dirty[m] = remaining
		}
	}

	for k, data := range s.dataValues {
		if !s.dataDirty[k] {
			continue
		}
		if err := s.settings.SaveOne(dataKeyPath(s.comp, k.m, k.name), data); err != nil {
			s.log.Error("persist data flush failed", map[string]any{"elem_idx": k.m.ElemIdx(), "mod_idx": k.m.ModIdx(), "name": k.name, "err": err.Error()})
			continue
		}
		s.dataDirty[k] = false
	}

	if len(s.dirty) > 0 {
		s.scheduleFlushLocked()
		return
	}
	for _, d := range s.dataDirty {
		if d {
			s.scheduleFlushLocked()
			return
		}
	}
}

// Load restores every model's bind/sub/subv/pub/data record from
// settings (§4.7 "Load on boot restores state"). It does not start
// publication timers; call Commit afterward for that.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	read := func(key string, totalLen int, readFn func([]byte) (int, error)) error {
		buf := make([]byte, totalLen)
		if totalLen > 0 {
			if _, err := readFn(buf); err != nil {
				return err
			}
		}
		s.restoreLocked(key, buf)
		return nil
	}
	if err := s.settings.LoadSubtreeDirect(rootSig, read); err != nil {
		return err
	}
	return s.settings.LoadSubtreeDirect(rootVendor, read)
}

func (s *Store) restoreLocked(key string, buf []byte) {
	pk, ok := parseKey(key)
	if !ok {
		return
	}
	m, ok := modelAt(s.comp, pk)
	if !ok {
		s.log.Warn("persist load: stale settings record", map[string]any{"key": key})
		return
	}
	switch pk.section {
	case "bind":
		vs, err := decodeU16Array(buf)
		if err != nil {
			s.log.Warn("persist load: bad bind record", map[string]any{"key": key, "err": err.Error()})
			return
		}
		for _, v := range vs {
			_ = m.Bind(composition.BoundKey(v))
		}
	case "sub":
		vs, err := decodeU16Array(buf)
		if err != nil {
			s.log.Warn("persist load: bad sub record", map[string]any{"key": key, "err": err.Error()})
			return
		}
		for _, v := range vs {
			_ = m.SubscribeGroup(v)
		}
	case "subv":
		vs, err := decodeU16Array(buf)
		if err != nil {
			s.log.Warn("persist load: bad subv record", map[string]any{"key": key, "err": err.Error()})
			return
		}
		for _, v := range vs {
			_ = m.SubscribeVirtual(v)
		}
	case "pub":
		if m.Pub == nil {
			return
		}
		rec, err := decodePub(buf)
		if err != nil {
			s.log.Warn("persist load: bad pub record", map[string]any{"key": key, "err": err.Error()})
			return
		}
		applyPub(m.Pub, rec)
	case "data":
		s.dataValues[dataKey{m: m, name: pk.name}] = append([]byte(nil), buf...)
	}
}

// Commit starts every publishing model's timer and replays every
// subscribed group through the low-power port when it is enabled (§4.7
// "commit then starts publication timers"; low-power replay restored
// from original_source's mod_commit per SPEC_FULL.md's supplemented
// features). Call it once, after Load, during boot.
func (s *Store) Commit(lp ports.LowPower, eng *publish.Engine) {
	for _, m := range allModels(s.comp) {
		if lp != nil && lp.Enabled() {
			for _, g := range m.Groups() {
				lp.GroupAdd(g)
			}
		}
		if eng != nil && m.HasPub() {
			eng.ArmOnCommit(m)
		}
	}
}
