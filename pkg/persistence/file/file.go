// Package file provides file-based persistence for workflow definitions,
// instances, history and approvals. Intended for development and tests; the
// whole store is serialized by one mutex.
package file

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/gateflow/gateflow/pkg/persistence"
)

// Persistence implements persistence.Persistence on the local file system.
type Persistence struct {
	root string
	mu   sync.Mutex

	definitions *DefinitionRepository
	instances   *InstanceRepository
	history     *HistoryRepository
	approvals   *ApprovalRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
// A "file://" prefix is stripped so persistence URLs can be passed directly.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	p := &Persistence{root: cleanRoot}
	p.definitions = &DefinitionRepository{store: p}
	p.instances = &InstanceRepository{store: p}
	p.history = &HistoryRepository{store: p}
	p.approvals = &ApprovalRepository{store: p}

	return p
}

func (p *Persistence) Definitions() persistence.DefinitionRepository {
	return p.definitions
}

func (p *Persistence) Instances() persistence.InstanceRepository {
	return p.instances
}

func (p *Persistence) History() persistence.HistoryRepository {
	return p.history
}

func (p *Persistence) Approvals() persistence.ApprovalRepository {
	return p.approvals
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. Nothing to do for files.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}
