// Package session owns everything that lives for one page view: the parsed
// schema and record set, the rollup index, one hierarchy per dimension, and
// the selection controller. There are no package-level singletons; every
// operation takes the session by reference.
package session

import (
	"fmt"
	"io"
	"log"

	"github.com/lowbkg/crossrate/api"
	"github.com/lowbkg/crossrate/internal/datatable"
	"github.com/lowbkg/crossrate/internal/hierarchy"
	"github.com/lowbkg/crossrate/internal/rollup"
	"github.com/lowbkg/crossrate/internal/selection"
)

// SchemaError reports a reference to a dimension or value-type name that
// does not exist in the loaded schema.
type SchemaError struct {
	Kind string // "dimension" or "value"
	Name string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Kind, e.Name)
}

// LoadError reports a failed load. There is no retry: the session stays
// permanently unloaded for its lifetime.
type LoadError struct{ Err error }

func (e *LoadError) Error() string { return fmt.Sprintf("load failed: %v", e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

// Session is the shared state for one page view. Single-threaded: every
// renderer and filter mutation operates on the same session with no
// locking, and no operation re-enters mid-mutation.
type Session struct {
	cfg api.ViewConfig

	schema  *datatable.Schema
	records []datatable.Record
	index   *rollup.Index
	trees   map[string]*hierarchy.Tree
	ctrl    *selection.Controller

	loaded  bool
	loadErr error
	ready   []func()
}

// New creates an unloaded session.
func New(cfg api.ViewConfig) *Session {
	return &Session{cfg: cfg, trees: make(map[string]*hierarchy.Tree)}
}

// Load performs the single blocking fetch-and-parse sequence, builds the
// rollup index and every dimension's hierarchy, then drains the readiness
// queue in registration order. A failure leaves the session unloaded and
// unusable; Load must not be called twice.
func (s *Session) Load(r io.Reader) error {
	if s.loaded || s.loadErr != nil {
		return fmt.Errorf("session: already loaded")
	}
	schema, records, err := datatable.ParseTable(r, s.cfg.JoinKey)
	if err != nil {
		s.loadErr = &LoadError{Err: err}
		log.Printf("session: %v", s.loadErr)
		return s.loadErr
	}
	s.schema = schema
	s.records = records
	s.index = rollup.New(schema, records)
	s.ctrl = selection.NewController(s.index)
	s.ctrl.OnChange(s.refresh)

	for _, dim := range schema.Dimensions {
		if err := s.buildTree(dim); err != nil {
			// The dimension stays unset; renderers that reference
			// it get a SchemaError.
			log.Printf("session: %v", err)
		}
	}

	s.loaded = true
	for _, fn := range s.ready {
		fn()
	}
	s.ready = nil
	return nil
}

func (s *Session) buildTree(dim string) error {
	leaves, err := s.index.Leaves(dim)
	if err != nil {
		return err
	}
	aggs, err := s.index.GroupAggregates(dim)
	if err != nil {
		return err
	}
	tree, err := hierarchy.Build(dim, leaves, aggs, len(s.schema.ValueTypes),
		hierarchy.Options{SortOrder: s.cfg.SortOrder(dim)})
	if err != nil {
		return err
	}
	s.trees[dim] = tree
	return nil
}

// refresh re-aggregates after dimension's tests changed. The changed
// dimension's own breakdown is unaffected by its own filter, so only the
// other dimensions are recomputed.
func (s *Session) refresh(dimension string) {
	for _, dim := range s.schema.Dimensions {
		if dim == dimension {
			continue
		}
		tree, ok := s.trees[dim]
		if !ok {
			continue
		}
		aggs, err := s.index.GroupAggregates(dim)
		if err != nil {
			log.Printf("session: refresh %s: %v", dim, err)
			continue
		}
		tree.Reaggregate(aggs)
	}
}

// OnReady queues fn until the load completes; callbacks registered before
// the load fire once, in registration order, immediately after it. After a
// successful load fn runs synchronously right here. Callbacks never fire
// on a failed load.
func (s *Session) OnReady(fn func()) {
	if s.loaded {
		fn()
		return
	}
	if s.loadErr != nil {
		return
	}
	s.ready = append(s.ready, fn)
}

// Err returns the load error, if the load failed.
func (s *Session) Err() error { return s.loadErr }

// Loaded reports whether the single load has completed successfully.
func (s *Session) Loaded() bool { return s.loaded }

// Config returns the view configuration.
func (s *Session) Config() api.ViewConfig { return s.cfg }

// Schema returns the loaded schema, nil before a successful load.
func (s *Session) Schema() *datatable.Schema { return s.schema }

// Records returns the immutable loaded record set.
func (s *Session) Records() []datatable.Record { return s.records }

// Index returns the rollup index.
func (s *Session) Index() *rollup.Index { return s.index }

// Selection returns the filter controller.
func (s *Session) Selection() *selection.Controller { return s.ctrl }

// Tree returns a dimension's hierarchy. Unknown or failed dimensions
// produce a SchemaError.
func (s *Session) Tree(dimension string) (*hierarchy.Tree, error) {
	tree, ok := s.trees[dimension]
	if !ok {
		return nil, &SchemaError{Kind: "dimension", Name: dimension}
	}
	return tree, nil
}

// DimensionIndex resolves a dimension name to its Record.Groups index.
func (s *Session) DimensionIndex(name string) (int, error) {
	if s.schema == nil {
		return 0, &SchemaError{Kind: "dimension", Name: name}
	}
	i, ok := s.schema.DimensionIndex(name)
	if !ok {
		return 0, &SchemaError{Kind: "dimension", Name: name}
	}
	return i, nil
}

// ValueIndex resolves a value-type name, with units stripped away by the
// parser already.
func (s *Session) ValueIndex(name string) (int, error) {
	if s.schema == nil {
		return 0, &SchemaError{Kind: "value", Name: name}
	}
	i, ok := s.schema.ValueIndex(name)
	if !ok {
		return 0, &SchemaError{Kind: "value", Name: name}
	}
	return i, nil
}
