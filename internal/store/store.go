package store

import (
	"errors"

	"github.com/yourorg/apitestgen/pkg/types"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

type Store interface {
	SaveUpload(u *types.Upload) error
	GetUpload(id string) (*types.Upload, error)
	// FindUploadByTitleKey returns the newest upload whose title key equals
	// key, or whose normalized filename contains it.
	FindUploadByTitleKey(key string) (*types.Upload, error)

	// SaveArtifact inserts a new artifact or overwrites the one with the same
	// filename, bumping its revision.
	SaveArtifact(a *types.Artifact) error
	GetArtifact(filename string) (*types.Artifact, error)
	UpdateArtifactContent(filename, content string) (*types.Artifact, error)
	ListArtifacts() ([]types.Artifact, error)
	DeleteArtifact(filename string) error

	SaveRefinement(r *types.Refinement) error
	ListRefinements(filename string) ([]types.Refinement, error)

	Close() error
}
