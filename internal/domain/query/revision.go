package query

import (
	"time"

	"github.com/lllypuk/querydeck/internal/domain/errs"
	"github.com/lllypuk/querydeck/internal/domain/uuid"
)

// Revision is an immutable point-in-time copy of an item's name, content and
// collection. Revisions are recorded after a mutation settles, so each one is
// a save point of the state that held right after that mutation.
type Revision struct {
	id          uuid.UUID
	queryItemID uuid.UUID
	collection  uuid.UUID
	name        string
	content     Content
	createdBy   uuid.UUID
	createdAt   time.Time
}

// NewRevision snapshots item, stamped with the user who triggered the
// mutation.
func NewRevision(item *Item, createdBy uuid.UUID) (*Revision, error) {
	if item == nil || createdBy.IsZero() {
		return nil, errs.ErrInvalidInput
	}

	return &Revision{
		id:          uuid.NewUUID(),
		queryItemID: item.ID(),
		collection:  item.CollectionID(),
		name:        item.Name(),
		content:     item.Content(),
		createdBy:   createdBy,
		createdAt:   time.Now(),
	}, nil
}

// ReconstructRevision restores a revision from storage.
func ReconstructRevision(
	id, queryItemID, collectionID uuid.UUID,
	name string,
	content Content,
	createdBy uuid.UUID,
	createdAt time.Time,
) *Revision {
	return &Revision{
		id:          id,
		queryItemID: queryItemID,
		collection:  collectionID,
		name:        name,
		content:     content,
		createdBy:   createdBy,
		createdAt:   createdAt,
	}
}

// ID returns the revision id.
func (r *Revision) ID() uuid.UUID { return r.id }

// QueryItemID returns the id of the item this revision snapshots.
func (r *Revision) QueryItemID() uuid.UUID { return r.queryItemID }

// CollectionID returns the collection the item belonged to at snapshot time.
func (r *Revision) CollectionID() uuid.UUID { return r.collection }

// Name returns the item name at snapshot time.
func (r *Revision) Name() string { return r.name }

// Content returns the payload at snapshot time.
func (r *Revision) Content() Content { return r.content }

// CreatedBy returns the user whose mutation triggered this snapshot.
func (r *Revision) CreatedBy() uuid.UUID { return r.createdBy }

// CreatedAt returns the snapshot time.
func (r *Revision) CreatedAt() time.Time { return r.createdAt }

// Fields returns the item fields a restore would write back.
func (r *Revision) Fields() Fields {
	return Fields{
		CollectionID: r.collection,
		Name:         r.name,
		Content:      r.content,
	}
}
