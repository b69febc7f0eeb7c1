package merge

// State is the terminal state of a merge.
type State string

const (
	StateWritten        State = "written"
	StateDryRunReported State = "dry_run_reported"
	StateFailed         State = "failed"
)

// SourceStatus is the outcome for one source.
type SourceStatus string

const (
	SourceMerged  SourceStatus = "merged"
	SourceSkipped SourceStatus = "skipped"
)

// RemapKind names which id a remap replaced.
type RemapKind string

const (
	RemapContainer RemapKind = "container"
	RemapEntity    RemapKind = "entity"
	RemapRandom    RemapKind = "random"
)

// Remap is one applied old to new substitution.
type Remap struct {
	Kind RemapKind `json:"kind"`
	Old  int64     `json:"old"`
	New  int64     `json:"new"`
}

// SourceReport is the per-source part of a Summary.
type SourceReport struct {
	Path     string       `json:"path"`
	Status   SourceStatus `json:"status"`
	Error    string       `json:"error,omitempty"`
	Read     int          `json:"read"`
	Appended int          `json:"appended"`
	Skipped  int          `json:"skipped"`
	Remaps   []Remap      `json:"remaps,omitempty"`
}

// Summary reports a merge. Run always returns one, success or failure,
// so partial progress is observable.
type Summary struct {
	RunID  string `json:"run_id,omitempty"`
	Target string `json:"target"`
	Output string `json:"output"`
	DryRun bool   `json:"dry_run"`
	Dedupe Dedupe `json:"dedupe"`
	State  State  `json:"state"`

	SourcesOK      int `json:"sources_ok"`
	SourcesSkipped int `json:"sources_skipped"`

	TargetRecords   int `json:"target_records"`
	RecordsRead     int `json:"records_read"`
	RecordsAppended int `json:"records_appended"`
	RecordsSkipped  int `json:"records_skipped"`
	FinalRecords    int `json:"final_records"`

	CreateRemaps         int `json:"create_remaps"`
	EntityRemaps         int `json:"entity_remaps"`
	RandomRemaps         int `json:"random_remaps"`
	UnresolvedCollisions int `json:"unresolved_collisions"`

	Backup  string          `json:"backup,omitempty"`
	Sources []*SourceReport `json:"sources"`
}

// Stats flattens the counters, for the ledger.
func (s *Summary) Stats() map[string]int64 {
	return map[string]int64{
		"sources_ok":            int64(s.SourcesOK),
		"sources_skipped":       int64(s.SourcesSkipped),
		"target_records":        int64(s.TargetRecords),
		"records_read":          int64(s.RecordsRead),
		"records_appended":      int64(s.RecordsAppended),
		"records_skipped":       int64(s.RecordsSkipped),
		"final_records":         int64(s.FinalRecords),
		"create_remaps":         int64(s.CreateRemaps),
		"entity_remaps":         int64(s.EntityRemaps),
		"random_remaps":         int64(s.RandomRemaps),
		"unresolved_collisions": int64(s.UnresolvedCollisions),
	}
}

// Remaps returns the total number of id substitutions applied.
func (s *Summary) Remaps() int {
	return s.CreateRemaps + s.EntityRemaps + s.RandomRemaps
}
