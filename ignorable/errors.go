package ignorable

import "github.com/pkg/errors"

var (
	ErrDuplicateType    = errors.New("entity type already defined")
	ErrUnknownType      = errors.New("unknown entity type")
	ErrReentrantScope   = errors.New("included columns scope is already active for this type")
	ErrUnknownAttribute = errors.New("unknown attribute")
	ErrNotPersisted     = errors.New("instance is not persisted")
	ErrNoPrimaryKey     = errors.New("entity type has no primary key")
)
