// Package aggregate reshapes joined metric rows into aligned per-owner series.
//
// The owner is the exposure or particle each series position belongs to. An
// owner lacking a value for any requested key is dropped from every series,
// so all series of a Result have the same length and index i of each refers
// to Owners[i].
package aggregate

import (
	"github.com/RoaringBitmap/roaring"

	"github.com/d-j-hatton/python-smartem/errors"
	"github.com/d-j-hatton/python-smartem/join"
	"github.com/d-j-hatton/python-smartem/model"
	"github.com/d-j-hatton/python-smartem/schema"
)

// ErrMissingEntity is returned when a row lacks the record needed to place its value.
var ErrMissingEntity = errors.New("row is missing a required entity")

// Mode is how series are indexed.
type Mode int

const (
	ModeNone Mode = iota
	// ModeExposure indexes series per exposure, exposure keys only.
	ModeExposure
	// ModeParticle indexes series per particle.
	ModeParticle
	// ModeAveraged indexes series per exposure, particle values are averaged.
	ModeAveraged
)

func (m Mode) String() string {
	switch m {
	case ModeExposure:
		return "exposure"
	case ModeParticle:
		return "particle"
	case ModeAveraged:
		return "averaged"
	}
	return "none"
}

// Request names the keys to collect and, optionally, the owners in output order.
type Request struct {
	ExposureKeys    []string
	ParticleKeys    []string
	ParticleSetKeys []string

	// AverageParticles collapses particle values per exposure even without
	// exposure keys.
	AverageParticles bool

	// Exposures fixes the owners of exposure and averaged modes. When nil,
	// owners are taken from the rows in first-seen order.
	Exposures []string
	// Particles fixes the owners of particle mode.
	Particles []int64
}

// Mode derives the indexing mode from the requested keys.
func (r Request) Mode() Mode {
	particles := len(r.ParticleKeys)+len(r.ParticleSetKeys) > 0
	switch {
	case particles && (len(r.ExposureKeys) > 0 || r.AverageParticles):
		return ModeAveraged
	case particles:
		return ModeParticle
	case len(r.ExposureKeys) > 0:
		return ModeExposure
	}
	return ModeNone
}

// Keys lists the requested keys: exposure, then particle, then particle set.
func (r Request) Keys() []string {
	keys := make([]string, 0, len(r.ExposureKeys)+len(r.ParticleKeys)+len(r.ParticleSetKeys))
	keys = append(keys, r.ExposureKeys...)
	keys = append(keys, r.ParticleKeys...)
	return append(keys, r.ParticleSetKeys...)
}

// Owner is one aligned position. Particle is zero outside particle mode.
// FoilHole and GridSquare are filled when the rows carry them.
type Owner struct {
	Exposure   string
	Particle   int64
	FoilHole   string
	GridSquare string
}

// Result is the aligned output of Aggregate.
type Result struct {
	Mode   Mode
	Keys   []string
	Owners []Owner
	Series map[string][]float64

	// Groups holds per-group means when WithGroupAverages is used:
	// key -> group name -> mean over the group's aligned owners.
	Groups map[string]map[string]float64
	// GroupOrder lists group names in first-seen order.
	GroupOrder []string
}

// Len is the length of every series.
func (r Result) Len() int {
	return len(r.Owners)
}

type options struct {
	groupBy schema.Entity
}

// Option configures Aggregate.
type Option func(*options)

// WithGroupAverages also averages the aligned values per FoilHole or GridSquare.
func WithGroupAverages(level schema.Entity) Option {
	return func(o *options) { o.groupBy = level }
}

// Aggregate reshapes rows into aligned series. Rows for keys that were not
// requested, or for owners outside a fixed owner list, are ignored.
func Aggregate(rows []join.Row, req Request, opts ...Option) (Result, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.groupBy != "" && o.groupBy != schema.FoilHole && o.groupBy != schema.GridSquare {
		return Result{}, errors.NewInvalidRequestError("group averages by %s, want FoilHole or GridSquare", o.groupBy)
	}

	acc, err := newAccumulator(req)
	if err != nil {
		return Result{}, err
	}
	if acc.mode == ModeNone {
		return Result{Mode: ModeNone, Series: map[string][]float64{}}, nil
	}

	for i, row := range rows {
		if err := acc.add(row); err != nil {
			return Result{}, errors.Wrapf(err, "row %d", i)
		}
	}

	res := acc.result()
	if o.groupBy != "" {
		if err := res.groupAverages(o.groupBy); err != nil {
			return Result{}, err
		}
	}
	return res, nil
}

type accumulator struct {
	mode   Mode
	keys   []string
	levels map[schema.Entity]map[string]bool

	fixed     bool
	owners    []Owner
	exposures map[string]int
	particles map[int64]int

	sums     map[string][]float64
	counts   map[string][]int
	coverage map[string]*roaring.Bitmap
}

func newAccumulator(req Request) (*accumulator, error) {
	acc := &accumulator{
		mode: req.Mode(),
		keys: req.Keys(),
		levels: map[schema.Entity]map[string]bool{
			schema.ExposureInfo:    set(req.ExposureKeys),
			schema.ParticleInfo:    set(req.ParticleKeys),
			schema.ParticleSetInfo: set(req.ParticleSetKeys),
		},
		exposures: map[string]int{},
		particles: map[int64]int{},
		sums:      map[string][]float64{},
		counts:    map[string][]int{},
		coverage:  map[string]*roaring.Bitmap{},
	}

	seen := make(map[string]bool, len(acc.keys))
	for _, k := range acc.keys {
		if seen[k] {
			return nil, errors.NewInvalidRequestError("key %q requested twice", k)
		}
		seen[k] = true
		acc.coverage[k] = roaring.New()
	}

	switch acc.mode {
	case ModeParticle:
		if req.Particles != nil {
			acc.fixed = true
			for _, id := range req.Particles {
				acc.particleOwner(id)
			}
		}
	default:
		if req.Exposures != nil {
			acc.fixed = true
			for _, name := range req.Exposures {
				acc.exposureOwner(name)
			}
		}
	}
	return acc, nil
}

func set(keys []string) map[string]bool {
	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		out[k] = true
	}
	return out
}

func (a *accumulator) exposureOwner(name string) int {
	if i, ok := a.exposures[name]; ok {
		return i
	}
	a.exposures[name] = len(a.owners)
	a.owners = append(a.owners, Owner{Exposure: name})
	return len(a.owners) - 1
}

func (a *accumulator) particleOwner(id int64) int {
	if i, ok := a.particles[id]; ok {
		return i
	}
	a.particles[id] = len(a.owners)
	a.owners = append(a.owners, Owner{Particle: id})
	return len(a.owners) - 1
}

func (a *accumulator) add(row join.Row) error {
	info, ok := row.Info()
	if !ok {
		return errors.Wrap(ErrMissingEntity, "no info record")
	}
	m := info.Measurement()
	if !a.levels[info.Entity()][m.Key] {
		return nil
	}

	idx, ok, err := a.locate(row, info)
	if err != nil || !ok {
		return err
	}
	a.describe(idx, row)

	sums, counts := a.sums[m.Key], a.counts[m.Key]
	for len(sums) <= idx {
		sums = append(sums, 0)
		counts = append(counts, 0)
	}
	// exposure values are carried through: the first row for an exposure wins
	if info.Entity() == schema.ExposureInfo && counts[idx] > 0 {
		return nil
	}
	sums[idx] += m.Value
	counts[idx]++
	a.sums[m.Key], a.counts[m.Key] = sums, counts
	a.coverage[m.Key].Add(uint32(idx))
	return nil
}

// locate finds the owner index of row. ok is false for owners outside a fixed list.
func (a *accumulator) locate(row join.Row, info model.Info) (int, bool, error) {
	if a.mode == ModeParticle {
		id, found := particleOf(row, info)
		if !found {
			return 0, false, errors.Wrapf(ErrMissingEntity, "no particle for %s", info.Entity())
		}
		if i, ok := a.particles[id]; ok {
			return i, true, nil
		}
		if a.fixed {
			return 0, false, nil
		}
		return a.particleOwner(id), true, nil
	}

	name, found := exposureOf(row, info)
	if !found {
		return 0, false, errors.Wrapf(ErrMissingEntity, "no exposure for %s", info.Entity())
	}
	if i, ok := a.exposures[name]; ok {
		return i, true, nil
	}
	if a.fixed {
		return 0, false, nil
	}
	return a.exposureOwner(name), true, nil
}

func particleOf(row join.Row, info model.Info) (int64, bool) {
	if pi, ok := info.(*model.ParticleInfo); ok {
		return pi.ParticleID, true
	}
	if p, ok := join.Get[*model.Particle](row); ok {
		return p.ParticleID, true
	}
	if l, ok := join.Get[*model.ParticleSetLinker](row); ok {
		return l.ParticleID, true
	}
	return 0, false
}

func exposureOf(row join.Row, info model.Info) (string, bool) {
	if ei, ok := info.(*model.ExposureInfo); ok {
		return ei.ExposureName, true
	}
	if e, ok := join.Get[*model.Exposure](row); ok {
		return e.ExposureName, true
	}
	if p, ok := join.Get[*model.Particle](row); ok {
		return p.ExposureName, true
	}
	return "", false
}

// describe fills owner context from whatever records the row carries.
func (a *accumulator) describe(idx int, row join.Row) {
	o := &a.owners[idx]
	if o.Exposure == "" {
		if p, ok := join.Get[*model.Particle](row); ok {
			o.Exposure = p.ExposureName
		}
	}
	if o.FoilHole == "" {
		if e, ok := join.Get[*model.Exposure](row); ok {
			o.FoilHole = e.FoilHoleName
		} else if f, ok := join.Get[*model.FoilHole](row); ok {
			o.FoilHole = f.FoilHoleName
		}
	}
	if o.GridSquare == "" {
		if f, ok := join.Get[*model.FoilHole](row); ok {
			o.GridSquare = f.GridSquareName
		} else if g, ok := join.Get[*model.GridSquare](row); ok {
			o.GridSquare = g.GridSquareName
		}
	}
}

// complete is the set of owners covered by every key.
func (a *accumulator) complete() *roaring.Bitmap {
	if len(a.keys) == 0 {
		return roaring.New()
	}
	bitmaps := make([]*roaring.Bitmap, len(a.keys))
	for i, k := range a.keys {
		bitmaps[i] = a.coverage[k]
	}
	return roaring.FastAnd(bitmaps...)
}

func (a *accumulator) result() Result {
	complete := a.complete()
	res := Result{
		Mode:   a.mode,
		Keys:   a.keys,
		Owners: make([]Owner, 0, complete.GetCardinality()),
		Series: make(map[string][]float64, len(a.keys)),
	}
	for _, k := range a.keys {
		res.Series[k] = make([]float64, 0, complete.GetCardinality())
	}

	it := complete.Iterator()
	for it.HasNext() {
		idx := int(it.Next())
		res.Owners = append(res.Owners, a.owners[idx])
		for _, k := range a.keys {
			// a zero count divides to NaN rather than failing
			res.Series[k] = append(res.Series[k], a.sums[k][idx]/float64(a.counts[k][idx]))
		}
	}
	return res
}

func (r *Result) groupAverages(level schema.Entity) error {
	sums := make(map[string]map[string]float64, len(r.Keys))
	counts := make(map[string]int)
	r.GroupOrder = nil

	for i, owner := range r.Owners {
		group := owner.FoilHole
		if level == schema.GridSquare {
			group = owner.GridSquare
		}
		if group == "" {
			return errors.Wrapf(ErrMissingEntity, "no %s for owner %d", level, i)
		}
		if _, ok := counts[group]; !ok {
			r.GroupOrder = append(r.GroupOrder, group)
		}
		counts[group]++

		for _, k := range r.Keys {
			if sums[k] == nil {
				sums[k] = map[string]float64{}
			}
			sums[k][group] += r.Series[k][i]
		}
	}

	r.Groups = make(map[string]map[string]float64, len(r.Keys))
	for _, k := range r.Keys {
		r.Groups[k] = make(map[string]float64, len(counts))
		for group, n := range counts {
			r.Groups[k][group] = sums[k][group] / float64(n)
		}
	}
	return nil
}
