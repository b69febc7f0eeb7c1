package merge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math/rand/v2"
	"os"

	"github.com/roach88/dbforge/internal/container"
	"github.com/roach88/dbforge/internal/fsutil"
	"github.com/roach88/dbforge/internal/ids"
	"github.com/roach88/dbforge/internal/record"
)

// seen holds the running sets shared by every source of one merge.
type seen struct {
	top    ids.Set             // top-level db_unique_id of every record
	entity ids.Set             // ids minted by CreateRecords
	low32  map[uint32]struct{} // low 32 bits of minted ids
	random ids.Set             // nil unless random ids are remapped
	hashes map[string]struct{} // nil unless exact dedupe

	// rewrites maps the hash of a CreateRecord as it was read to the ids
	// it was written with. Nil unless exact dedupe.
	rewrites map[string]createPlan
}

func newSeen(opts Options) *seen {
	s := &seen{
		top:    make(ids.Set),
		entity: make(ids.Set),
		low32:  make(map[uint32]struct{}),
	}
	if opts.RemapRandomIDs {
		s.random = make(ids.Set)
	}
	if opts.Dedupe == DedupeExact {
		s.hashes = make(map[string]struct{})
		s.rewrites = make(map[string]createPlan)
	}
	return s
}

func key(id int64) uint64 { return uint64(id) }

func (s *seen) hasHash(h string) bool {
	_, ok := s.hashes[h]
	return ok
}

// written records the ids a CreateRecord with hash pre was written with.
func (s *seen) written(pre string, c *record.Create) {
	if s.rewrites == nil || pre == "" {
		return
	}
	if _, ok := s.rewrites[pre]; !ok {
		s.rewrites[pre] = createPlan{container: c.ContainerID, entity: c.EntityID}
	}
}

// register marks the ids of an appended record as taken.
func (s *seen) register(rec record.Record, hashes ...string) {
	s.top.Add(key(rec.TopID()))
	if c, ok := rec.(*record.Create); ok {
		s.entity.Add(key(c.EntityID))
		s.low32[uint32(c.EntityID)] = struct{}{}
	}
	if s.random != nil {
		if r, ok := rec.RandomID(); ok {
			s.random.Add(uint64(r))
		}
	}
	if s.hashes != nil {
		for _, h := range hashes {
			s.hashes[h] = struct{}{}
		}
	}
}

// merger carries the state of one Run.
type merger struct {
	opts    Options
	log     *slog.Logger
	rng     *rand.Rand
	seen    *seen
	out     *container.Writer
	summary *Summary
}

// Run merges opts.Sources into opts.Target.
//
// The returned Summary is never nil. Per-source failures are recorded in it
// and do not fail the run. A *PreconditionError means nothing was written;
// a *ParseError means the target itself could not be read.
func Run(ctx context.Context, opts Options) (*Summary, error) {
	if opts.Dedupe == "" {
		opts.Dedupe = DedupeNone
	}
	sum := &Summary{
		RunID:   opts.RunID,
		Target:  opts.Target,
		Output:  opts.OutputPath(),
		DryRun:  opts.DryRun,
		Dedupe:  opts.Dedupe,
		State:   StateFailed,
		Sources: []*SourceReport{},
	}
	if err := opts.validate(); err != nil {
		return sum, err
	}

	m := &merger{
		opts:    opts,
		log:     opts.logger(),
		rng:     opts.rng(),
		seen:    newSeen(opts),
		summary: sum,
	}
	if opts.RunID != "" {
		m.log = m.log.With("run_id", opts.RunID)
	}

	err := m.run(ctx)
	if err != nil {
		m.log.Error("merge failed", "error", err)
	} else {
		m.log.Info("merge finished",
			"state", sum.State,
			"appended", sum.RecordsAppended,
			"skipped", sum.RecordsSkipped,
			"remaps", sum.Remaps(),
			"unresolved", sum.UnresolvedCollisions,
		)
	}
	return sum, err
}

func (m *merger) run(ctx context.Context) error {
	target := m.opts.Target
	_, err := os.Stat(target)
	exists := err == nil
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat target: %w", err)
	}
	if !exists && !m.opts.CreateTarget {
		return &PreconditionError{
			Code:    ErrCodeTargetMissing,
			Message: "target does not exist (use create-target to start a new one)",
			Path:    target,
		}
	}

	m.log.Info("merge starting",
		"target", target,
		"output", m.opts.OutputPath(),
		"sources", len(m.opts.Sources),
		"dedupe", m.opts.Dedupe,
		"dry_run", m.opts.DryRun,
	)

	var tmp *fsutil.AtomicFile
	sink := io.Discard
	if !m.opts.DryRun {
		tmp, err = fsutil.CreateAtomic(m.opts.OutputPath())
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer tmp.Abort()
		sink = tmp
	}
	m.out = container.NewWriter(sink)

	if exists {
		if err := m.copyTarget(ctx); err != nil {
			return err
		}
	}

	for _, path := range m.opts.Sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.mergeSource(ctx, path); err != nil {
			return err
		}
	}

	if m.summary.SourcesOK == 0 {
		return &PreconditionError{Code: ErrCodeNoSources, Message: "no usable sources"}
	}

	if err := m.out.Flush(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	m.summary.FinalRecords = m.out.Count()

	if m.opts.DryRun {
		m.summary.State = StateDryRunReported
		return nil
	}

	mode := fsutil.ModeOr(target, 0644)

	if m.opts.Backup {
		if m.opts.InPlace() && exists {
			bak := target + ".bak"
			if err := fsutil.CopyFile(target, bak, mode); err != nil {
				return fmt.Errorf("backup target: %w", err)
			}
			m.summary.Backup = bak
			m.log.Info("target backed up", "path", bak)
		} else {
			m.log.Debug("backup skipped: target is not overwritten")
		}
	}

	if err := tmp.Commit(mode); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	m.summary.State = StateWritten
	return nil
}

// copyTarget streams the existing target into the output and seeds the
// seen sets from it.
func (m *merger) copyTarget(ctx context.Context) error {
	err := record.EachFile(m.opts.Target, func(rec record.Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		var hash string
		if m.seen.hashes != nil {
			h, err := record.Hash(rec)
			if err != nil {
				return err
			}
			hash = h
		}
		if err := m.out.Write(rec.Block()); err != nil {
			return &writeError{err}
		}
		m.seen.register(rec, hash)
		if c, ok := rec.(*record.Create); ok {
			m.seen.written(hash, c)
		}
		m.summary.TargetRecords++
		return nil
	})
	if err != nil {
		return classify(m.opts.Target, err)
	}
	m.log.Debug("target loaded",
		"records", m.summary.TargetRecords,
		"entities", len(m.seen.entity),
	)
	return nil
}

// mergeSource runs both passes for one source. It returns an error only
// for failures that must stop the whole merge.
func (m *merger) mergeSource(ctx context.Context, path string) error {
	rep := &SourceReport{Path: path, Status: SourceSkipped}
	m.summary.Sources = append(m.summary.Sources, rep)
	log := m.log.With("source", path)

	creates, n, err := m.scan(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rep.Error = err.Error()
		m.summary.SourcesSkipped++
		log.Warn("source skipped", "error", err)
		return nil
	}

	plan, err := m.buildRemap(creates)
	if err != nil {
		rep.Error = err.Error()
		m.summary.SourcesSkipped++
		log.Warn("source skipped", "error", err)
		return nil
	}
	rep.Read = n
	rep.Remaps = plan.remaps
	m.summary.RecordsRead += n
	m.summary.UnresolvedCollisions += plan.unresolved
	for _, r := range plan.remaps {
		switch r.Kind {
		case RemapContainer:
			m.summary.CreateRemaps++
		case RemapEntity:
			m.summary.EntityRemaps++
		}
		log.Debug("id remapped", "kind", r.Kind, "old", r.Old, "new", r.New)
	}
	if plan.unresolved > 0 {
		log.Warn("collisions left unresolved", "count", plan.unresolved)
	}

	if err := m.appendSource(ctx, path, plan, rep); err != nil {
		return err
	}

	rep.Status = SourceMerged
	m.summary.SourcesOK++
	m.summary.RecordsAppended += rep.Appended
	m.summary.RecordsSkipped += rep.Skipped
	log.Info("source merged",
		"read", rep.Read,
		"appended", rep.Appended,
		"skipped", rep.Skipped,
		"remaps", len(rep.Remaps),
	)
	return nil
}

// createInfo is what the first pass keeps of each CreateRecord.
type createInfo struct {
	container int64
	entity    int64
	hash      string // only under exact dedupe
}

// scan parses the whole source and returns its CreateRecords in file order
// plus the total record count.
func (m *merger) scan(ctx context.Context, path string) ([]createInfo, int, error) {
	var (
		creates []createInfo
		n       int
	)
	err := record.EachFile(path, func(rec record.Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		n++
		c, ok := rec.(*record.Create)
		if !ok {
			return nil
		}
		info := createInfo{container: c.ContainerID, entity: c.EntityID}
		if m.seen.hashes != nil {
			h, err := record.Hash(c)
			if err != nil {
				return err
			}
			info.hash = h
		}
		creates = append(creates, info)
		return nil
	})
	if err != nil {
		return nil, 0, classify(path, err)
	}
	return creates, n, nil
}

// route is where records of one source entity go.
type route struct {
	id   int64
	drop bool
}

// createPlan is the rewrite decided for one CreateRecord, by file ordinal.
type createPlan struct {
	drop      bool
	container int64
	entity    int64
	hash      string // as read; only under exact dedupe
}

// remapPlan is the per-source collision map.
type remapPlan struct {
	creates []createPlan

	// entityMap holds the route of the first CreateRecord of each old
	// entity id. It routes attribute records that appear before their
	// CreateRecord.
	entityMap map[int64]route

	remaps     []Remap
	unresolved int
}

// buildRemap decides, for every CreateRecord of a source, whether it is
// dropped, kept or given fresh ids. It reads the seen sets but does not
// modify them.
func (m *merger) buildRemap(creates []createInfo) (*remapPlan, error) {
	plan := &remapPlan{
		creates:   make([]createPlan, len(creates)),
		entityMap: make(map[int64]route),
	}
	localTop := make(ids.Set)
	localEntity := make(ids.Set)
	localLow32 := make(map[uint32]struct{})
	localMinted := make(ids.Set)
	byHash := make(map[string]int)

	topFree := func(v uint64) bool {
		return !m.seen.top.Has(v) && !localTop.Has(v) &&
			!m.seen.entity.Has(v) && !localEntity.Has(v)
	}
	entityFree := func(v uint64) bool {
		if !ids.LowBitsBelow31(v) || !topFree(v) {
			return false
		}
		low := uint32(v)
		_, a := m.seen.low32[low]
		_, b := localLow32[low]
		return !a && !b
	}

	for i, c := range creates {
		if m.opts.Dedupe == DedupeCreate {
			if m.seen.entity.Has(key(c.entity)) || localMinted.Has(key(c.entity)) {
				plan.creates[i] = createPlan{drop: true}
				if _, ok := plan.entityMap[c.entity]; !ok {
					plan.entityMap[c.entity] = route{drop: true}
				}
				continue
			}
			localMinted.Add(key(c.entity))
		}
		if m.opts.Dedupe == DedupeExact {
			// Duplicates keep the decision of what they duplicate, so the
			// rewritten record hashes the same and is filtered.
			if prev, ok := m.seen.rewrites[c.hash]; ok {
				prev.hash = c.hash
				plan.creates[i] = prev
				continue
			}
			if m.seen.hasHash(c.hash) {
				plan.creates[i] = createPlan{container: c.container, entity: c.entity, hash: c.hash}
				continue
			}
			if prev, ok := byHash[c.hash]; ok {
				plan.creates[i] = plan.creates[prev]
				continue
			}
			byHash[c.hash] = i
		}

		p := createPlan{container: c.container, entity: c.entity, hash: c.hash}

		if m.seen.top.Has(key(c.container)) || localTop.Has(key(c.container)) {
			if m.opts.AutoRemap {
				v, err := m.draw(ids.Space64, "create", topFree)
				if err != nil {
					return nil, err
				}
				p.container = int64(v)
				plan.remaps = append(plan.remaps, Remap{Kind: RemapContainer, Old: c.container, New: p.container})
			} else {
				plan.unresolved++
			}
		}
		localTop.Add(key(p.container))

		if m.seen.entity.Has(key(c.entity)) || localEntity.Has(key(c.entity)) {
			if m.opts.AutoRemap {
				v, err := m.draw(ids.Space64, "entity", entityFree)
				if err != nil {
					return nil, err
				}
				p.entity = int64(v)
				plan.remaps = append(plan.remaps, Remap{Kind: RemapEntity, Old: c.entity, New: p.entity})
			} else {
				plan.unresolved++
			}
		}
		if _, ok := plan.entityMap[c.entity]; !ok {
			plan.entityMap[c.entity] = route{id: p.entity}
		}
		localEntity.Add(key(p.entity))
		localLow32[uint32(p.entity)] = struct{}{}

		plan.creates[i] = p
	}
	return plan, nil
}

// draw picks a uniformly random id in space accepted by free.
func (m *merger) draw(space ids.Space, label string, free ids.Predicate) (uint64, error) {
	for n := 0; n < MaxRemapDraws; n++ {
		v := m.rng.Uint64N(space.Max()) + 1
		if free(v) {
			return v, nil
		}
	}
	return 0, &ids.ExhaustedError{Label: "remap|" + label, Space: space, Attempts: MaxRemapDraws}
}

// appendSource is the second pass: rewrite, filter, append and register.
func (m *merger) appendSource(ctx context.Context, path string, plan *remapPlan, rep *SourceReport) error {
	active := make(map[int64]route)
	ordinal := 0

	err := record.EachFile(path, func(rec record.Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec = rec.Clone()
		var (
			created *record.Create
			pre     string
		)

		switch r := rec.(type) {
		case *record.Create:
			if ordinal >= len(plan.creates) {
				return fmt.Errorf("source changed between passes")
			}
			p := plan.creates[ordinal]
			ordinal++
			active[r.EntityID] = route{id: p.entity, drop: p.drop}
			if p.drop {
				rep.Skipped++
				return nil
			}
			r.ContainerID = p.container
			r.EntityID = p.entity
			created, pre = r, p.hash

		case *record.Attribute:
			rt, ok := active[r.EntityID]
			if !ok {
				rt, ok = plan.entityMap[r.EntityID]
			}
			if ok {
				if rt.drop {
					rep.Skipped++
					return nil
				}
				r.EntityID = rt.id
			}
		}

		var hashes []string
		if m.seen.hashes != nil {
			h, err := record.Hash(rec)
			if err != nil {
				return err
			}
			if m.seen.hasHash(h) {
				rep.Skipped++
				return nil
			}
			hashes = append(hashes, h)
		}

		if m.seen.random != nil {
			if rid, ok := rec.RandomID(); ok && m.seen.random.Has(uint64(rid)) {
				v, err := m.draw(ids.Space32, "random", func(v uint64) bool { return !m.seen.random.Has(v) })
				if err != nil {
					return err
				}
				rec.SetRandomID(uint32(v))
				rep.Remaps = append(rep.Remaps, Remap{Kind: RemapRandom, Old: int64(rid), New: int64(v)})
				m.summary.RandomRemaps++
				if m.seen.hashes != nil {
					h, err := record.Hash(rec)
					if err != nil {
						return err
					}
					hashes = append(hashes, h)
				}
			}
		}

		if err := m.out.Write(rec.Block()); err != nil {
			return &writeError{err}
		}
		m.seen.register(rec, hashes...)
		if created != nil {
			m.seen.written(pre, created)
		}
		rep.Appended++
		return nil
	})
	if err != nil {
		return fmt.Errorf("append %s: %w", path, err)
	}
	return nil
}

// writeError marks output failures so they are not mistaken for input
// parse errors.
type writeError struct{ err error }

func (e *writeError) Error() string { return "write output: " + e.err.Error() }
func (e *writeError) Unwrap() error { return e.err }

// classify turns a read failure of path into a *ParseError, passing
// cancellation and output failures through unchanged.
func classify(path string, err error) error {
	var we *writeError
	if errors.As(err, &we) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var le *container.LineError
	if errors.As(err, &le) {
		return &ParseError{Path: path, Line: le.Line, Err: le.Err}
	}
	return &ParseError{Path: path, Err: err}
}
