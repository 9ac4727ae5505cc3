// Package apimodels contains the response models served by the metadata
// store API. Every entity read from the store is represented by one of
// these models; access control operates on them through the ResponseModel
// interface, which lets the RBAC engine traverse and rebuild an object
// graph without knowing the concrete types.
package apimodels

import (
	"time"

	"github.com/google/uuid"
)

// ResponseModel is implemented by every API response model. The traversal
// methods (Submodels, MapSubmodels, Redacted) form the dehydration
// capability: each concrete model enumerates its own sub-resource fields
// and rebuilds its own containers, so a generic engine can walk the graph
// and replace denied sub-resources without reflection.
type ResponseModel interface {
	// GetID returns the model's stable identifier.
	GetID() uuid.UUID

	// GetName returns the model's human-readable name, or "" if the model
	// has no name field.
	GetName() string

	// GetOwner returns the user that owns this model, or nil if the model
	// is not user-scoped.
	GetOwner() *UserRef

	// Submodels returns the model's direct sub-resource models, in field
	// order. Nil-valued fields are omitted.
	Submodels() []ResponseModel

	// MapSubmodels returns a copy of the model in which every direct
	// submodel has been replaced by fn's result. Containers (maps, slices)
	// are rebuilt with their original kind. fn must return a value of the
	// same concrete type it was given.
	MapSubmodels(fn func(ResponseModel) ResponseModel) ResponseModel

	// Redacted returns a permission-denied stand-in for the model: every
	// field is replaced by its zero value except the ID and name, which
	// are retained when keepID/keepName are set. Nested required models
	// are redacted recursively with identity fields stripped.
	Redacted(keepID, keepName bool) ResponseModel

	// IsRedacted reports whether this model is a permission-denied
	// stand-in produced by Redacted.
	IsRedacted() bool
}

// UserRef identifies a user without carrying the full user model. It is a
// plain value, not a ResponseModel: user references never require a
// permission check and are never redacted.
type UserRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// BaseResponse carries the fields common to all response models.
type BaseResponse struct {
	ID      uuid.UUID `json:"id"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`

	// MissingPermissions marks a redacted stand-in so consumers can
	// distinguish "truly empty" from "hidden".
	MissingPermissions bool `json:"missing_permissions,omitempty"`
}

// GetID implements ResponseModel.
func (b BaseResponse) GetID() uuid.UUID { return b.ID }

// IsRedacted implements ResponseModel.
func (b BaseResponse) IsRedacted() bool { return b.MissingPermissions }

// redactedBase builds the BaseResponse of a permission-denied stand-in.
func redactedBase(b BaseResponse, keepID bool) BaseResponse {
	out := BaseResponse{MissingPermissions: true}
	if keepID {
		out.ID = b.ID
	}
	return out
}
