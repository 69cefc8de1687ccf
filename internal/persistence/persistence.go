// Package persistence defines the durable task-descriptor store used
// for crash recovery.
package persistence

import "github.com/ChuLiYu/beaver-engine/pkg/types"

// Store is the collaborator interface itself.
type Store interface {
	All() (map[string]types.TaskDescriptor, error)
	Purge() error
}
