package file

import (
	"context"
	"errors"
	"os"

	"github.com/gateflow/gateflow/pkg/models"
	"github.com/gateflow/gateflow/pkg/persistence"
)

const instancesDir = "instances"

// InstanceRepository stores instances as one JSON document per ID. The store
// mutex makes the create-uniqueness and version checks atomic.
type InstanceRepository struct {
	store *Persistence
}

func (r *InstanceRepository) Create(_ context.Context, instance *models.WorkflowInstance) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	existing, err := r.findByEntityLocked(instance.EntityType, instance.EntityID)
	if err != nil {
		return err
	}

	if existing != nil {
		return &persistence.InstanceError{
			Op:         "Create",
			EntityType: instance.EntityType,
			EntityID:   instance.EntityID,
			Err:        persistence.ErrInstanceAlreadyExists,
		}
	}

	return r.store.writeDocument(instancesDir, instance.ID, instance)
}

func (r *InstanceRepository) GetByID(_ context.Context, id string) (*models.WorkflowInstance, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.getLocked(id)
}

func (r *InstanceRepository) GetByEntity(_ context.Context, entityType, entityID string) (*models.WorkflowInstance, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	instance, err := r.findByEntityLocked(entityType, entityID)
	if err != nil {
		return nil, err
	}

	if instance == nil {
		return nil, &persistence.InstanceError{
			Op:         "GetByEntity",
			EntityType: entityType,
			EntityID:   entityID,
			Err:        persistence.ErrInstanceNotFound,
		}
	}

	return instance, nil
}

func (r *InstanceRepository) Update(_ context.Context, instance *models.WorkflowInstance) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	stored, err := r.getLocked(instance.ID)
	if err != nil {
		return err
	}

	if stored.Version != instance.Version {
		return &persistence.InstanceError{Op: "Update", InstanceID: instance.ID, Err: persistence.ErrVersionConflict}
	}

	instance.Version++

	return r.store.writeDocument(instancesDir, instance.ID, instance)
}

func (r *InstanceRepository) getLocked(id string) (*models.WorkflowInstance, error) {
	var instance models.WorkflowInstance
	if err := r.store.readDocument(instancesDir, id, &instance); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &persistence.InstanceError{Op: "GetByID", InstanceID: id, Err: persistence.ErrInstanceNotFound}
		}

		return nil, err
	}

	return &instance, nil
}

func (r *InstanceRepository) findByEntityLocked(entityType, entityID string) (*models.WorkflowInstance, error) {
	ids, err := r.store.listDocumentIDs(instancesDir)
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		var instance models.WorkflowInstance
		if err := r.store.readDocument(instancesDir, id, &instance); err != nil {
			return nil, err
		}

		if instance.EntityType == entityType && instance.EntityID == entityID {
			return &instance, nil
		}
	}

	return nil, nil
}
