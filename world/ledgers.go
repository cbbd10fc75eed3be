package world

// Bounded world-owned ledgers. Each caps at a fixed size with deterministic
// FIFO eviction (spec §3), the same discipline the substrate applies to the
// event trace (trace.Trace) — oldest entries drop silently, nothing ever
// grows unbounded.
const (
	MaxSignals        = 128
	MaxTracks         = 128
	MaxRumors         = 64
	MaxSpawnDescriptors = 64
	MaxOcclusionEdges = 256
)

// Signal is a transient world-owned sensory marker (noise, light, scent).
type Signal struct {
	ID       uint64  `json:"id"`
	Kind     string  `json:"kind"`
	Location CellRef `json:"location"`
	Strength float64 `json:"strength"`
	Tick     uint64  `json:"tick"`
}

// Track is a world-owned trace of entity movement (footprints, wagon ruts).
type Track struct {
	ID       uint64  `json:"id"`
	EntityID string  `json:"entity_id"`
	Location CellRef `json:"location"`
	Tick     uint64  `json:"tick"`
}

// Rumor is a piece of world knowledge that can propagate between NPCs/sites.
type Rumor struct {
	ID      uint64 `json:"id"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	Tick    uint64 `json:"tick"`
}

// SpawnDescriptor is a pending or recently-resolved spawn request.
type SpawnDescriptor struct {
	ID       uint64  `json:"id"`
	Kind     string  `json:"kind"`
	Location CellRef `json:"location"`
	Tick     uint64  `json:"tick"`
}

// OcclusionEdge records a line-of-sight-blocking edge between two cells.
type OcclusionEdge struct {
	ID   uint64 `json:"id"`
	From string `json:"from"`
	To   string `json:"to"`
	Tick uint64 `json:"tick"`
}

// Ledgers bundles the five bounded, world-owned FIFO ledgers.
type Ledgers struct {
	Signals          []Signal          `json:"signals"`
	Tracks           []Track           `json:"tracks"`
	Rumors           []Rumor           `json:"rumors"`
	SpawnDescriptors []SpawnDescriptor `json:"spawn_descriptors"`
	OcclusionEdges   []OcclusionEdge   `json:"occlusion_edges"`

	nextSignalID uint64
	nextTrackID  uint64
	nextRumorID  uint64
	nextSpawnID  uint64
	nextEdgeID   uint64
}

// NewLedgers constructs empty ledgers.
func NewLedgers() *Ledgers {
	return &Ledgers{
		Signals:          []Signal{},
		Tracks:           []Track{},
		Rumors:           []Rumor{},
		SpawnDescriptors: []SpawnDescriptor{},
		OcclusionEdges:   []OcclusionEdge{},
	}
}

// Normalize replaces nil slices with empty ones and recomputes the internal
// id counters from the highest id present, so load-then-append continues
// the id sequence without collisions or gaps relative to a live run.
func (l *Ledgers) Normalize() {
	if l.Signals == nil {
		l.Signals = []Signal{}
	}
	if l.Tracks == nil {
		l.Tracks = []Track{}
	}
	if l.Rumors == nil {
		l.Rumors = []Rumor{}
	}
	if l.SpawnDescriptors == nil {
		l.SpawnDescriptors = []SpawnDescriptor{}
	}
	if l.OcclusionEdges == nil {
		l.OcclusionEdges = []OcclusionEdge{}
	}
	for _, s := range l.Signals {
		if s.ID >= l.nextSignalID {
			l.nextSignalID = s.ID + 1
		}
	}
	for _, t := range l.Tracks {
		if t.ID >= l.nextTrackID {
			l.nextTrackID = t.ID + 1
		}
	}
	for _, r := range l.Rumors {
		if r.ID >= l.nextRumorID {
			l.nextRumorID = r.ID + 1
		}
	}
	for _, sd := range l.SpawnDescriptors {
		if sd.ID >= l.nextSpawnID {
			l.nextSpawnID = sd.ID + 1
		}
	}
	for _, e := range l.OcclusionEdges {
		if e.ID >= l.nextEdgeID {
			l.nextEdgeID = e.ID + 1
		}
	}
}

// AddSignal appends s (after assigning its ID), evicting the oldest entry if
// the ledger is at MaxSignals.
func (l *Ledgers) AddSignal(s Signal) Signal {
	s.ID = l.nextSignalID
	l.nextSignalID++
	l.Signals = append(l.Signals, s)
	if len(l.Signals) > MaxSignals {
		l.Signals = l.Signals[len(l.Signals)-MaxSignals:]
	}
	return s
}

// AddTrack appends t, evicting the oldest entry if the ledger is full.
func (l *Ledgers) AddTrack(t Track) Track {
	t.ID = l.nextTrackID
	l.nextTrackID++
	l.Tracks = append(l.Tracks, t)
	if len(l.Tracks) > MaxTracks {
		l.Tracks = l.Tracks[len(l.Tracks)-MaxTracks:]
	}
	return t
}

// AddRumor appends r, evicting the oldest entry if the ledger is full.
func (l *Ledgers) AddRumor(r Rumor) Rumor {
	r.ID = l.nextRumorID
	l.nextRumorID++
	l.Rumors = append(l.Rumors, r)
	if len(l.Rumors) > MaxRumors {
		l.Rumors = l.Rumors[len(l.Rumors)-MaxRumors:]
	}
	return r
}

// AddSpawnDescriptor appends sd, evicting the oldest entry if the ledger is full.
func (l *Ledgers) AddSpawnDescriptor(sd SpawnDescriptor) SpawnDescriptor {
	sd.ID = l.nextSpawnID
	l.nextSpawnID++
	l.SpawnDescriptors = append(l.SpawnDescriptors, sd)
	if len(l.SpawnDescriptors) > MaxSpawnDescriptors {
		l.SpawnDescriptors = l.SpawnDescriptors[len(l.SpawnDescriptors)-MaxSpawnDescriptors:]
	}
	return sd
}

// AddOcclusionEdge appends e, evicting the oldest entry if the ledger is full.
func (l *Ledgers) AddOcclusionEdge(e OcclusionEdge) OcclusionEdge {
	e.ID = l.nextEdgeID
	l.nextEdgeID++
	l.OcclusionEdges = append(l.OcclusionEdges, e)
	if len(l.OcclusionEdges) > MaxOcclusionEdges {
		l.OcclusionEdges = l.OcclusionEdges[len(l.OcclusionEdges)-MaxOcclusionEdges:]
	}
	return e
}
