package inmemory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hashicorp/go-hclog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fluxbpm/fluxbpm/internal/config"
	"github.com/fluxbpm/fluxbpm/pkg/bpmn/runtime"
	"github.com/fluxbpm/fluxbpm/pkg/storage"
)

// Collaborators are the read-only stores the query pipeline joins against by
// foreign key. A nil collaborator behaves as an empty store: predicates that
// need it match nothing.
type Collaborators struct {
	Definitions        storage.ProcessDefinitionReader
	Activities         storage.ActivityInstanceCounter
	EventSubscriptions storage.EventSubscriptionReader
	Jobs               storage.TimerJobReader
	IdentityLinks      storage.IdentityLinkReader
	Variables          storage.VariableReader
}

// ExecutionStore keeps the execution trees of all live process instances in
// memory, please use NewExecutionStore to create a new object of this type.
//
// The entity table is a sync.Map so that full scans tolerate concurrent
// single-key writes from parallel command threads; the store itself holds no
// mutex and each query operates on whatever snapshot of the table it observes
// during its scan. State does not survive a process restart.
type ExecutionStore struct {
	executions sync.Map // execution id -> *runtime.ExecutionEntity

	// lockMu serializes the check-and-set of process instance claims; table
	// scans and all other operations stay lock-free.
	lockMu sync.Mutex

	logger      hclog.Logger
	tracer      trace.Tracer
	node        *snowflake.Node
	comparators *comparatorCache

	definitions        storage.ProcessDefinitionReader
	activities         storage.ActivityInstanceCounter
	eventSubscriptions storage.EventSubscriptionReader
	jobs               storage.TimerJobReader
	identityLinks      storage.IdentityLinkReader
	variables          storage.VariableReader
}

var _ storage.ExecutionStorage = &ExecutionStore{}

func NewExecutionStore(logger hclog.Logger, cfg config.Store, collaborators Collaborators) (*ExecutionStore, error) {
	if logger == nil {
		logger = hclog.Default().Named("execution-store")
	}
	node, err := snowflake.NewNode(cfg.IdGeneratorNode)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node %d: %w", cfg.IdGeneratorNode, err)
	}
	return &ExecutionStore{
		logger:             logger,
		tracer:             otel.GetTracerProvider().Tracer("in-memory-execution-store"),
		node:               node,
		comparators:        newComparatorCache(cfg.ComparatorCacheSize, cfg.ComparatorCacheTTL),
		definitions:        collaborators.Definitions,
		activities:         collaborators.Activities,
		eventSubscriptions: collaborators.EventSubscriptions,
		jobs:               collaborators.Jobs,
		identityLinks:      collaborators.IdentityLinks,
		variables:          collaborators.Variables,
	}, nil
}

var _ storage.ExecutionWriter = &ExecutionStore{}

func (s *ExecutionStore) Create(ctx context.Context) *runtime.ExecutionEntity {
	e := runtime.NewExecutionEntity()
	e.Id = s.node.Generate().String()
	return e
}

func (s *ExecutionStore) Insert(ctx context.Context, execution *runtime.ExecutionEntity) error {
	if err := checkEntityShape(execution); err != nil {
		return err
	}
	if execution.Id == "" {
		execution.Id = s.node.Generate().String()
	}
	normalizeEntity(execution)
	s.executions.Store(execution.Id, execution)
	return nil
}

func (s *ExecutionStore) Update(ctx context.Context, execution *runtime.ExecutionEntity) (*runtime.ExecutionEntity, error) {
	if err := checkEntityShape(execution); err != nil {
		return nil, err
	}
	if _, ok := s.executions.Load(execution.Id); !ok {
		return nil, storage.ErrNotFound
	}
	normalizeEntity(execution)
	s.executions.Store(execution.Id, execution)
	return execution, nil
}

func (s *ExecutionStore) Delete(ctx context.Context, executionId string) error {
	if _, ok := s.executions.LoadAndDelete(executionId); !ok {
		return storage.ErrNotFound
	}
	return nil
}

// checkEntityShape rejects executions that were not constructed through
// runtime.NewExecutionEntity: without the concurrency-safe variable
// collection the entity is unsafe under parallel branches.
func checkEntityShape(execution *runtime.ExecutionEntity) error {
	if execution == nil || execution.Variables == nil {
		return storage.NewUnsupportedOperationErrorf(
			"in-memory execution store only supports executions created via runtime.NewExecutionEntity")
	}
	return nil
}

// normalizeEntity fills the derivable identity fields: a root is its own
// process instance, and a tree that was not spawned through a call activity
// is its own root tree.
func normalizeEntity(execution *runtime.ExecutionEntity) {
	if execution.ProcessInstanceId == "" && execution.IsProcessInstance() {
		execution.ProcessInstanceId = execution.Id
	}
	if execution.RootProcessInstanceId == "" {
		execution.RootProcessInstanceId = execution.ProcessInstanceId
	}
}

var _ storage.ExecutionReader = &ExecutionStore{}

func (s *ExecutionStore) FindExecutionById(ctx context.Context, executionId string) (*runtime.ExecutionEntity, error) {
	e, ok := s.lookupExecution(executionId)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return e, nil
}

func (s *ExecutionStore) FindChildExecutionsByParentExecutionId(ctx context.Context, parentExecutionId string) ([]*runtime.ExecutionEntity, error) {
	if parentExecutionId == "" {
		return []*runtime.ExecutionEntity{}, nil
	}
	return s.scan(func(e *runtime.ExecutionEntity) bool {
		return e.ParentId == parentExecutionId
	}), nil
}

func (s *ExecutionStore) FindExecutionsByProcessInstanceId(ctx context.Context, processInstanceId string) ([]*runtime.ExecutionEntity, error) {
	if processInstanceId == "" {
		return []*runtime.ExecutionEntity{}, nil
	}
	return s.scan(func(e *runtime.ExecutionEntity) bool {
		return e.ProcessInstanceId == processInstanceId
	}), nil
}

func (s *ExecutionStore) FindExecutionsByRootProcessInstanceId(ctx context.Context, rootProcessInstanceId string) ([]*runtime.ExecutionEntity, error) {
	if rootProcessInstanceId == "" {
		return []*runtime.ExecutionEntity{}, nil
	}
	return s.scan(func(e *runtime.ExecutionEntity) bool {
		return e.RootProcessInstanceId == rootProcessInstanceId
	}), nil
}

func (s *ExecutionStore) FindInactiveExecutionsByProcessInstanceId(ctx context.Context, processInstanceId string) ([]*runtime.ExecutionEntity, error) {
	if processInstanceId == "" {
		return []*runtime.ExecutionEntity{}, nil
	}
	return s.scan(func(e *runtime.ExecutionEntity) bool {
		return e.ProcessInstanceId == processInstanceId && !e.IsActive
	}), nil
}

func (s *ExecutionStore) FindInactiveExecutionsByActivityIdAndProcessInstanceId(ctx context.Context, activityId string, processInstanceId string) ([]*runtime.ExecutionEntity, error) {
	if processInstanceId == "" || activityId == "" {
		return []*runtime.ExecutionEntity{}, nil
	}
	return s.scan(func(e *runtime.ExecutionEntity) bool {
		return e.ProcessInstanceId == processInstanceId && e.ActivityId == activityId && !e.IsActive
	}), nil
}

func (s *ExecutionStore) FindExecutionIdsByProcessDefinitionId(ctx context.Context, processDefinitionId string) ([]string, error) {
	if processDefinitionId == "" {
		return []string{}, nil
	}
	matches := s.scan(func(e *runtime.ExecutionEntity) bool {
		return e.ProcessDefinitionId == processDefinitionId
	})
	ids := make([]string, 0, len(matches))
	for _, e := range matches {
		ids = append(ids, e.Id)
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}

func (s *ExecutionStore) FindSubProcessInstanceBySuperExecutionId(ctx context.Context, superExecutionId string) (*runtime.ExecutionEntity, error) {
	if superExecutionId == "" {
		return nil, storage.ErrNotFound
	}
	matches := s.scan(func(e *runtime.ExecutionEntity) bool {
		return e.SuperExecutionId == superExecutionId && e.IsProcessInstance()
	})
	if len(matches) == 0 {
		return nil, storage.ErrNotFound
	}
	return matches[0], nil
}

var _ storage.ExecutionQuerier = &ExecutionStore{}

func (s *ExecutionStore) FindExecutionsByQueryCriteria(ctx context.Context, query *storage.ExecutionQuery) ([]*runtime.ExecutionEntity, error) {
	ctx, span := s.tracer.Start(ctx, "find-executions-by-query")
	defer span.End()
	view := newExecutionQueryView(query)
	results := s.findByView(ctx, view)
	span.SetAttributes(attribute.Int("matches", len(results)))
	return paginate(results, view.FirstResult(), view.MaxResults()), nil
}

func (s *ExecutionStore) CountExecutionsByQueryCriteria(ctx context.Context, query *storage.ExecutionQuery) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "count-executions-by-query")
	defer span.End()
	return int64(len(s.matchByView(ctx, newExecutionQueryView(query)))), nil
}

func (s *ExecutionStore) FindProcessInstancesByQueryCriteria(ctx context.Context, query *storage.ProcessInstanceQuery) ([]*runtime.ExecutionEntity, error) {
	ctx, span := s.tracer.Start(ctx, "find-process-instances-by-query")
	defer span.End()
	view := newProcessInstanceQueryView(query)
	results := s.findByView(ctx, view)
	span.SetAttributes(attribute.Int("matches", len(results)))
	return paginate(results, view.FirstResult(), view.MaxResults()), nil
}

func (s *ExecutionStore) CountProcessInstancesByQueryCriteria(ctx context.Context, query *storage.ProcessInstanceQuery) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "count-process-instances-by-query")
	defer span.End()
	return int64(len(s.matchByView(ctx, newProcessInstanceQueryView(query)))), nil
}

func (s *ExecutionStore) FindExecutionsByNativeQuery(ctx context.Context, query string, params map[string]interface{}) ([]*runtime.ExecutionEntity, error) {
	return nil, storage.NewUnsupportedOperationErrorf(
		"native queries are not supported by the in-memory execution store")
}

func (s *ExecutionStore) CountExecutionsByNativeQuery(ctx context.Context, query string, params map[string]interface{}) (int64, error) {
	return 0, storage.NewUnsupportedOperationErrorf(
		"native queries are not supported by the in-memory execution store")
}

// matchByView runs every live execution through the predicate pipeline and
// returns the unsorted match set.
func (s *ExecutionStore) matchByView(ctx context.Context, query queryView) []*runtime.ExecutionEntity {
	return s.scan(func(e *runtime.ExecutionEntity) bool {
		return s.matchesQuery(ctx, e, query)
	})
}

// findByView additionally sorts the match set when the query carries an
// order-by specification.
func (s *ExecutionStore) findByView(ctx context.Context, query queryView) []*runtime.ExecutionEntity {
	results := s.matchByView(ctx, query)
	if comparator := s.comparators.resolve(query.OrderBy()); comparator != nil {
		slices.SortStableFunc(results, comparator)
	}
	return results
}

func (s *ExecutionStore) scan(filter func(*runtime.ExecutionEntity) bool) []*runtime.ExecutionEntity {
	results := make([]*runtime.ExecutionEntity, 0)
	s.executions.Range(func(_, value any) bool {
		e := value.(*runtime.ExecutionEntity)
		if filter(e) {
			results = append(results, e)
		}
		return true
	})
	return results
}

func (s *ExecutionStore) lookupExecution(executionId string) (*runtime.ExecutionEntity, bool) {
	if executionId == "" {
		return nil, false
	}
	value, ok := s.executions.Load(executionId)
	if !ok {
		return nil, false
	}
	return value.(*runtime.ExecutionEntity), true
}

func (s *ExecutionStore) lookupDefinition(ctx context.Context, processDefinitionId string) (runtime.ProcessDefinition, error) {
	if s.definitions == nil || processDefinitionId == "" {
		return runtime.ProcessDefinition{}, storage.ErrNotFound
	}
	return s.definitions.FindProcessDefinitionById(ctx, processDefinitionId)
}

// paginate slices [first, first+max) of the sorted result set. A max of zero
// or less means no limit.
func paginate(entities []*runtime.ExecutionEntity, first int, max int) []*runtime.ExecutionEntity {
	if first < 0 {
		first = 0
	}
	if first >= len(entities) {
		return []*runtime.ExecutionEntity{}
	}
	end := len(entities)
	if max > 0 && first+max < end {
		end = first + max
	}
	return entities[first:end]
}

var _ storage.ExecutionMaintenance = &ExecutionStore{}

func (s *ExecutionStore) UpdateExecutionTenantIdForDeployment(ctx context.Context, deploymentId string, newTenantId string) (int64, error) {
	if deploymentId == "" {
		return 0, nil
	}
	var changed int64
	s.executions.Range(func(_, value any) bool {
		e := value.(*runtime.ExecutionEntity)
		matched := e.DeploymentId == deploymentId
		if !matched {
			definition, err := s.lookupDefinition(ctx, e.ProcessDefinitionId)
			matched = err == nil && definition.DeploymentId == deploymentId
		}
		if matched {
			e.TenantId = newTenantId
			changed++
		}
		return true
	})
	s.logger.Debug("reassigned execution tenant for deployment",
		"deploymentId", deploymentId, "tenantId", newTenantId, "executions", changed)
	return changed, nil
}

func (s *ExecutionStore) UpdateAllExecutionRelatedEntityCountFlags(ctx context.Context, countEnabled bool) error {
	s.executions.Range(func(_, value any) bool {
		value.(*runtime.ExecutionEntity).IsCountEnabled = countEnabled
		return true
	})
	return nil
}

func (s *ExecutionStore) UpdateProcessInstanceLockTime(ctx context.Context, processInstanceId string, lockTime time.Time, lockOwner string, expirationTime time.Time) (bool, error) {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	root, ok := s.lookupExecution(processInstanceId)
	if !ok {
		return false, storage.ErrNotFound
	}
	if root.LockTime != nil && !root.LockTime.Before(expirationTime) {
		// the current claim outlives the new one, leave it untouched
		return false, nil
	}
	tree := s.scan(func(e *runtime.ExecutionEntity) bool {
		return e.ProcessInstanceId == processInstanceId
	})
	for _, e := range tree {
		t := lockTime
		e.LockTime = &t
		e.LockOwner = lockOwner
	}
	return true, nil
}

func (s *ExecutionStore) ClearProcessInstanceLockTime(ctx context.Context, processInstanceId string) error {
	if processInstanceId == "" {
		return nil
	}
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	tree := s.scan(func(e *runtime.ExecutionEntity) bool {
		return e.ProcessInstanceId == processInstanceId
	})
	for _, e := range tree {
		e.LockTime = nil
		e.LockOwner = ""
	}
	return nil
}

func (s *ExecutionStore) ClearAllProcessInstanceLockTimes(ctx context.Context, lockOwner string) error {
	if lockOwner == "" {
		return nil
	}
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	locked := s.scan(func(e *runtime.ExecutionEntity) bool {
		return e.LockOwner == lockOwner
	})
	for _, e := range locked {
		e.LockTime = nil
		e.LockOwner = ""
	}
	s.logger.Debug("cleared process instance locks", "lockOwner", lockOwner, "executions", len(locked))
	return nil
}
