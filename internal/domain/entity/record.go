package entity

import "time"

// DefaultOrdering is the listing order shared by every persisted entity:
// newest first.
const DefaultOrdering = "-created_on"

// Record carries the bookkeeping timestamps every persisted entity embeds.
// CreatedOn is set once on the first save, UpdatedOn on every save.
// DeletedOn marks a soft delete; readers filter on it.
type Record struct {
	CreatedOn time.Time  `json:"created_on"`
	UpdatedOn time.Time  `json:"updated_on"`
	DeletedOn *time.Time `json:"deleted_on,omitempty"`
}

// Model is implemented by entities that go through the validate-then-persist
// save path.
type Model interface {
	Meta() *Record
	// FullClean normalises the entity and runs every field rule. It returns a
	// *validation.Error holding all failures.
	FullClean() error
}

func (r *Record) Meta() *Record { return r }

func (r *Record) IsNew() bool { return r.CreatedOn.IsZero() }

// Touch stamps the record for a save happening at now.
func (r *Record) Touch(now time.Time) {
	if r.CreatedOn.IsZero() {
		r.CreatedOn = now
	}
	r.UpdatedOn = now
}

func (r *Record) IsDeleted() bool { return r.DeletedOn != nil }

func (r *Record) SoftDelete(now time.Time) {
	if r.DeletedOn == nil {
		t := now
		r.DeletedOn = &t
	}
}

func (r *Record) Restore() { r.DeletedOn = nil }
