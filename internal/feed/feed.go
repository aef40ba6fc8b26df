// Package feed holds a session's view of an organization's reports: paged
// history loaded newest first, live inserts merged without duplicates, and
// the signed-in resident's derived karma.
package feed

import (
	"context"
	"sync"

	"github.com/AnshRaj112/civicpulse-backend/internal/models"
)

const PageSize = 50

// Source loads one page of an organization's reports, newest first.
type Source interface {
	List(ctx context.Context, orgID string, offset, limit int) ([]models.Report, error)
}

type Feed struct {
	mu       sync.Mutex
	src      Source
	orgID    string
	pageSize int

	reports  []models.Report
	index    map[string]int
	offset   int
	hasMore  bool
	inflight int
	// gen advances on every LoadInitial; pages fetched under an older
	// generation are discarded.
	gen      uint64
	loaded   bool
	identity *models.Identity
	derived  Derived
}

func New(src Source, orgID string) *Feed {
	return &Feed{
		src:      src,
		orgID:    orgID,
		pageSize: PageSize,
		index:    make(map[string]int),
		hasMore:  true,
	}
}

func (f *Feed) OrganizationID() string { return f.orgID }

// LoadInitial replaces the list with the first page. Pages from loads still
// in flight when it starts are dropped on arrival.
func (f *Feed) LoadInitial(ctx context.Context) error {
	f.mu.Lock()
	f.inflight++
	f.gen++
	gen := f.gen
	f.mu.Unlock()

	page, err := f.src.List(ctx, f.orgID, 0, f.pageSize)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inflight--
	if err != nil {
		return err
	}
	if gen != f.gen {
		return nil
	}

	// Inserts that raced the first fetch stay on top. A reload drops them so
	// the list matches the backend again.
	var live []models.Report
	if !f.loaded {
		for _, r := range f.reports {
			if !containsID(page, r.ID) {
				live = append(live, r)
			}
		}
	}
	f.reports = live
	for _, r := range page {
		if r.OrganizationID == f.orgID {
			f.reports = append(f.reports, r)
		}
	}
	f.offset = len(page)
	f.hasMore = len(page) == f.pageSize
	f.loaded = true
	f.reindex()
	f.recompute()
	return nil
}

// LoadMore appends the next page. It returns false without fetching when a
// load is in flight or the last page came back short.
func (f *Feed) LoadMore(ctx context.Context) (bool, error) {
	f.mu.Lock()
	if f.inflight > 0 || !f.hasMore {
		f.mu.Unlock()
		return false, nil
	}
	f.inflight++
	gen := f.gen
	offset := f.offset
	f.mu.Unlock()

	page, err := f.src.List(ctx, f.orgID, offset, f.pageSize)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inflight--
	if err != nil {
		return true, err
	}
	if gen != f.gen {
		return true, nil
	}
	for _, r := range page {
		if _, dup := f.index[r.ID]; dup || r.OrganizationID != f.orgID {
			continue
		}
		f.index[r.ID] = len(f.reports)
		f.reports = append(f.reports, r)
	}
	f.offset += len(page)
	f.hasMore = len(page) == f.pageSize
	f.recompute()
	return true, nil
}

// ApplyInsert prepends r when it belongs to this organization and is not
// already present. It reports whether the list changed.
func (f *Feed) ApplyInsert(r models.Report) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.OrganizationID != f.orgID {
		return false
	}
	if _, dup := f.index[r.ID]; dup {
		return false
	}
	f.reports = append([]models.Report{r.Clone()}, f.reports...)
	f.reindex()
	f.recompute()
	return true
}

// InsertOptimistic shows a locally created report before it is persisted.
func (f *Feed) InsertOptimistic(r models.Report) bool {
	return f.ApplyInsert(r)
}

// ApplyUpdate replaces an existing entry in place.
func (f *Feed) ApplyUpdate(r models.Report) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.index[r.ID]
	if !ok || r.OrganizationID != f.orgID {
		return false
	}
	f.reports[i] = r.Clone()
	f.recompute()
	return true
}

// SetIdentity changes whose karma is derived.
func (f *Feed) SetIdentity(id *models.Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id != nil {
		cp := *id
		id = &cp
	}
	f.identity = id
	f.recompute()
}

func (f *Feed) Reports() []models.Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Report, len(f.reports))
	for i, r := range f.reports {
		out[i] = r.Clone()
	}
	return out
}

func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reports)
}

func (f *Feed) HasMore() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasMore
}

func (f *Feed) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inflight > 0
}

func (f *Feed) Derived() Derived {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.derived
}

// Nearby returns reports within radius of p on both axes.
func (f *Feed) Nearby(p models.Point, radius float64) []models.Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Report
	for _, r := range f.reports {
		if r.Location.Near(p, radius) {
			out = append(out, r.Clone())
		}
	}
	return out
}

func (f *Feed) reindex() {
	f.index = make(map[string]int, len(f.reports))
	for i, r := range f.reports {
		f.index[r.ID] = i
	}
}

// recompute derives state from scratch; never patch it incrementally.
func (f *Feed) recompute() {
	f.derived = Derive(f.reports, f.identity)
}

func containsID(list []models.Report, id string) bool {
	for _, r := range list {
		if r.ID == id {
			return true
		}
	}
	return false
}
