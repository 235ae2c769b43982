package onset

import (
	"sort"

	"pianoroll/midiparser"
	"pianoroll/viewport"
)

// Detector tracks the glow pulse of each pitch. The glow map is owned by the
// detector and rebuilt on every Tick. Not safe for concurrent use.
type Detector struct {
	cfg     Config
	glow    map[uint8]GlowEntry
	prevNow float64
	hasPrev bool
}

func New(cfg Config) *Detector {
	return &Detector{cfg: cfg, glow: map[uint8]GlowEntry{}}
}

func (d *Detector) Config() Config {
	return d.cfg
}

func (d *Detector) Reset() {
	d.glow = map[uint8]GlowEntry{}
	d.prevNow = 0
	d.hasPrev = false
}

// Tick evaluates one refresh. notes must be sorted by start. now is the
// transport position and hostNow a monotonic host clock used only for expiry.
func (d *Detector) Tick(notes []midiparser.NoteEvent, now, pixelsPerSecond, hostNow float64) Result {
	var next = make(map[uint8]GlowEntry, len(d.glow))
	for pitch, entry := range d.glow {
		if entry.ExpiresAt > hostNow {
			next[pitch] = entry
		}
	}

	var arm = func(pitch uint8) {
		next[pitch] = GlowEntry{Pitch: pitch, ExpiresAt: hostNow + d.cfg.GlowSeconds}
	}

	var epsilonPixels = d.cfg.EpsilonSeconds * pixelsPerSecond
	if pixelsPerSecond > 0 {
		var lo = sort.Search(len(notes), func(i int) bool {
			return viewport.ProjectX(notes[i].StartSeconds, now, pixelsPerSecond) >= 0
		})
		for i := lo; i < len(notes); i++ {
			if viewport.ProjectX(notes[i].StartSeconds, now, pixelsPerSecond) >= epsilonPixels {
				break
			}
			arm(notes[i].Pitch)
		}

		var gap = now - d.prevNow
		if d.hasPrev && gap > 0 && gap <= d.cfg.MaxCatchUpSeconds {
			// Onsets that were outside the window on the last tick and are
			// already past the line now.
			var from = sort.Search(len(notes), func(i int) bool {
				return viewport.ProjectX(notes[i].StartSeconds, d.prevNow, pixelsPerSecond) >= epsilonPixels
			})
			for i := from; i < len(notes); i++ {
				if viewport.ProjectX(notes[i].StartSeconds, now, pixelsPerSecond) >= 0 {
					break
				}
				arm(notes[i].Pitch)
			}
		}
	}

	for pitch, entry := range next {
		if entry.ExpiresAt <= hostNow {
			delete(next, pitch)
		}
	}
	d.glow = next
	d.prevNow = now
	d.hasPrev = true

	return Result{
		ActivePitches: ActivePitches(notes, now),
		GlowPitches:   d.GlowPitches(),
	}
}

func (d *Detector) GlowPitches() []uint8 {
	var pitches = make([]uint8, 0, len(d.glow))
	for pitch := range d.glow {
		pitches = append(pitches, pitch)
	}
	sortPitches(pitches)
	return pitches
}

func (d *Detector) Entries() []GlowEntry {
	var entries = make([]GlowEntry, 0, len(d.glow))
	for _, e := range d.glow {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Pitch < entries[j].Pitch
	})
	return entries
}

func IsActive(n midiparser.NoteEvent, now float64) bool {
	return now >= n.StartSeconds && now <= n.EndSeconds()
}

// ActivePitches returns the sorted set of pitches sounding at now. Only notes
// starting in the last MaxNoteDuration seconds can still be sounding.
func ActivePitches(notes []midiparser.NoteEvent, now float64) []uint8 {
	var earliest = now - midiparser.MaxNoteDuration
	var lo = sort.Search(len(notes), func(i int) bool {
		return notes[i].StartSeconds >= earliest
	})

	var seen = map[uint8]bool{}
	var pitches = []uint8{}
	for i := lo; i < len(notes) && notes[i].StartSeconds <= now; i++ {
		var n = notes[i]
		if IsActive(n, now) && !seen[n.Pitch] {
			seen[n.Pitch] = true
			pitches = append(pitches, n.Pitch)
		}
	}
	sortPitches(pitches)
	return pitches
}

func sortPitches(p []uint8) {
	sort.Slice(p, func(i, j int) bool { return p[i] < p[j] })
}
