package storage

import (
	"context"
	"time"

	"github.com/fluxbpm/fluxbpm/pkg/bpmn/runtime"
)

// ExecutionStorage is the contract command handlers use to read and write the
// runtime execution state of all process instances.
//
// Query evaluation is a full scan over the live entities; backends are free
// to index, the in-memory reference implementation deliberately does not.
type ExecutionStorage interface {
	ExecutionReader
	ExecutionWriter
	ExecutionQuerier
	ExecutionMaintenance
}

type ExecutionReader interface {
	// FindExecutionById returns ErrNotFound when no execution with the given id exists.
	FindExecutionById(ctx context.Context, executionId string) (*runtime.ExecutionEntity, error)

	FindChildExecutionsByParentExecutionId(ctx context.Context, parentExecutionId string) ([]*runtime.ExecutionEntity, error)

	FindExecutionsByProcessInstanceId(ctx context.Context, processInstanceId string) ([]*runtime.ExecutionEntity, error)

	FindExecutionsByRootProcessInstanceId(ctx context.Context, rootProcessInstanceId string) ([]*runtime.ExecutionEntity, error)

	// FindInactiveExecutionsByProcessInstanceId returns the executions of the
	// tree that are present but not currently active.
	FindInactiveExecutionsByProcessInstanceId(ctx context.Context, processInstanceId string) ([]*runtime.ExecutionEntity, error)

	FindInactiveExecutionsByActivityIdAndProcessInstanceId(ctx context.Context, activityId string, processInstanceId string) ([]*runtime.ExecutionEntity, error)

	// FindExecutionIdsByProcessDefinitionId returns the distinct ids of all
	// executions running against the given definition.
	FindExecutionIdsByProcessDefinitionId(ctx context.Context, processDefinitionId string) ([]string, error)

	// FindSubProcessInstanceBySuperExecutionId resolves the process instance
	// spawned by the given call-activity execution.
	FindSubProcessInstanceBySuperExecutionId(ctx context.Context, superExecutionId string) (*runtime.ExecutionEntity, error)
}

type ExecutionWriter interface {
	// Create returns a new detached execution with a generated id and empty
	// relationship collections. The entity is not stored until Insert.
	Create(ctx context.Context) *runtime.ExecutionEntity

	Insert(ctx context.Context, execution *runtime.ExecutionEntity) error

	// Update returns the stored, possibly normalized entity.
	Update(ctx context.Context, execution *runtime.ExecutionEntity) (*runtime.ExecutionEntity, error)

	Delete(ctx context.Context, executionId string) error
}

type ExecutionQuerier interface {
	FindExecutionsByQueryCriteria(ctx context.Context, query *ExecutionQuery) ([]*runtime.ExecutionEntity, error)

	// CountExecutionsByQueryCriteria returns the size of the unsorted,
	// unsliced match set of the query.
	CountExecutionsByQueryCriteria(ctx context.Context, query *ExecutionQuery) (int64, error)

	FindProcessInstancesByQueryCriteria(ctx context.Context, query *ProcessInstanceQuery) ([]*runtime.ExecutionEntity, error)

	CountProcessInstancesByQueryCriteria(ctx context.Context, query *ProcessInstanceQuery) (int64, error)

	// FindExecutionsByNativeQuery and CountExecutionsByNativeQuery exist for
	// SQL backends only; other implementations fail fast with an
	// UnsupportedOperationError instead of silently returning nothing.
	FindExecutionsByNativeQuery(ctx context.Context, query string, params map[string]interface{}) ([]*runtime.ExecutionEntity, error)

	CountExecutionsByNativeQuery(ctx context.Context, query string, params map[string]interface{}) (int64, error)
}

type ExecutionMaintenance interface {
	// UpdateExecutionTenantIdForDeployment reassigns the tenant of every
	// execution whose definition belongs to the given deployment, in place.
	// It returns the number of changed executions.
	UpdateExecutionTenantIdForDeployment(ctx context.Context, deploymentId string, newTenantId string) (int64, error)

	UpdateAllExecutionRelatedEntityCountFlags(ctx context.Context, countEnabled bool) error

	// UpdateProcessInstanceLockTime claims the process instance tree for the
	// given lock owner. An existing lock is only overwritten when it expires
	// strictly before expirationTime; otherwise the claim is not granted and
	// the method reports false.
	UpdateProcessInstanceLockTime(ctx context.Context, processInstanceId string, lockTime time.Time, lockOwner string, expirationTime time.Time) (bool, error)

	ClearProcessInstanceLockTime(ctx context.Context, processInstanceId string) error

	// ClearAllProcessInstanceLockTimes releases every lock held by the given
	// owner, used for crash recovery of an async worker.
	ClearAllProcessInstanceLockTimes(ctx context.Context, lockOwner string) error
}

// ProcessDefinitionReader is the definition-repository lookup the query
// pipeline joins against for category and engine-version filters.
type ProcessDefinitionReader interface {
	FindProcessDefinitionById(ctx context.Context, processDefinitionId string) (runtime.ProcessDefinition, error)
}

// ActivityInstanceCounter reports how many activity instances exist for an
// activity of a process instance.
type ActivityInstanceCounter interface {
	CountActivityInstances(ctx context.Context, processInstanceId string, activityId string, unfinished bool) (int64, error)
}

type EventSubscriptionReader interface {
	FindEventSubscriptionsByExecutionId(ctx context.Context, executionId string) ([]runtime.EventSubscription, error)
}

type TimerJobReader interface {
	FindTimerJobsByProcessInstanceId(ctx context.Context, processInstanceId string) ([]runtime.Job, error)
}

type IdentityLinkReader interface {
	FindIdentityLinksByProcessInstanceId(ctx context.Context, processInstanceId string) ([]runtime.IdentityLink, error)
}

type VariableReader interface {
	FindVariablesByExecutionId(ctx context.Context, executionId string) ([]runtime.VariableInstance, error)

	FindVariablesByProcessInstanceId(ctx context.Context, processInstanceId string) ([]runtime.VariableInstance, error)
}
