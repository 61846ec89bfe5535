// Package query contains the saved-query aggregate: the item itself, its
// revision history, and the access scope used to filter both.
package query

import (
	"time"

	"github.com/lllypuk/querydeck/internal/domain/errs"
	"github.com/lllypuk/querydeck/internal/domain/uuid"
)

// SchemaVersion is the only supported content schema version.
const SchemaVersion = 1

// Content is the query document payload. Version and Query are the only
// fields the core interprets; Variables carries the rest of the document
// opaquely.
type Content struct {
	Version   int            `bson:"version"             json:"version"`
	Query     string         `bson:"query"               json:"query"`
	Variables map[string]any `bson:"variables,omitempty" json:"variables,omitempty"`
}

// Validate checks the content against the creation rules.
func (c Content) Validate() error {
	if c.Query == "" {
		return errs.ErrInvalidInput
	}
	if c.Version != SchemaVersion {
		return errs.ErrInvalidInput
	}
	return nil
}

// Item is a versioned query document. It belongs to exactly one collection;
// ownership and team visibility are transitive through the collection's
// workspace.
type Item struct {
	id           uuid.UUID
	collectionID uuid.UUID
	name         string
	content      Content
	createdAt    time.Time
	updatedAt    time.Time
}

// NewItem creates a query item in collectionID.
func NewItem(collectionID uuid.UUID, name string, content Content) (*Item, error) {
	if collectionID.IsZero() || name == "" {
		return nil, errs.ErrInvalidInput
	}
	if err := content.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	return &Item{
		id:           uuid.NewUUID(),
		collectionID: collectionID,
		name:         name,
		content:      content,
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// ReconstructItem restores an item from storage.
func ReconstructItem(
	id, collectionID uuid.UUID,
	name string,
	content Content,
	createdAt, updatedAt time.Time,
) *Item {
	return &Item{
		id:           id,
		collectionID: collectionID,
		name:         name,
		content:      content,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

// ID returns the item id.
func (i *Item) ID() uuid.UUID { return i.id }

// CollectionID returns the owning collection id.
func (i *Item) CollectionID() uuid.UUID { return i.collectionID }

// Name returns the item name.
func (i *Item) Name() string { return i.name }

// Content returns the query document payload.
func (i *Item) Content() Content { return i.content }

// CreatedAt returns the creation time.
func (i *Item) CreatedAt() time.Time { return i.createdAt }

// UpdatedAt returns the last modification time.
func (i *Item) UpdatedAt() time.Time { return i.updatedAt }

// Fields is the mutable subset of an item used by bulk matching updates.
type Fields struct {
	CollectionID uuid.UUID
	Name         string
	Content      Content
}

// FieldsOf extracts the mutable fields of an item.
func FieldsOf(i *Item) Fields {
	return Fields{
		CollectionID: i.CollectionID(),
		Name:         i.Name(),
		Content:      i.Content(),
	}
}
