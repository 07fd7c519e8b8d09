package inmemory

import (
	"context"
	"sync"

	"github.com/fluxbpm/fluxbpm/pkg/bpmn/runtime"
	"github.com/fluxbpm/fluxbpm/pkg/storage"
)

// The collaborator stores below are the in-memory counterparts of the
// foreign-key lookups the query pipeline consumes. They are deliberately kept
// separate from the execution table: concurrent branches mutate them
// independently, so their collections are never embedded in the entity.

// DefinitionStore keeps deployed process definitions keyed by definition id.
type DefinitionStore struct {
	mu          sync.RWMutex
	definitions map[string]runtime.ProcessDefinition
}

var _ storage.ProcessDefinitionReader = &DefinitionStore{}

func NewDefinitionStore() *DefinitionStore {
	return &DefinitionStore{
		definitions: make(map[string]runtime.ProcessDefinition),
	}
}

func (ds *DefinitionStore) SaveProcessDefinition(ctx context.Context, definition runtime.ProcessDefinition) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.definitions[definition.Id] = definition
	return nil
}

func (ds *DefinitionStore) FindProcessDefinitionById(ctx context.Context, processDefinitionId string) (runtime.ProcessDefinition, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	definition, ok := ds.definitions[processDefinitionId]
	if !ok {
		return definition, storage.ErrNotFound
	}
	return definition, nil
}

// ActivityInstanceStore counts activity instances per process instance and
// activity. Unfinished instances are the ones without an end time recorded.
type ActivityInstanceStore struct {
	mu        sync.RWMutex
	instances []activityInstance
}

type activityInstance struct {
	processInstanceId string
	activityId        string
	finished          bool
}

var _ storage.ActivityInstanceCounter = &ActivityInstanceStore{}

func NewActivityInstanceStore() *ActivityInstanceStore {
	return &ActivityInstanceStore{
		instances: make([]activityInstance, 0),
	}
}

func (as *ActivityInstanceStore) RecordActivityInstance(ctx context.Context, processInstanceId string, activityId string, finished bool) error {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.instances = append(as.instances, activityInstance{
		processInstanceId: processInstanceId,
		activityId:        activityId,
		finished:          finished,
	})
	return nil
}

func (as *ActivityInstanceStore) CountActivityInstances(ctx context.Context, processInstanceId string, activityId string, unfinished bool) (int64, error) {
	as.mu.RLock()
	defer as.mu.RUnlock()
	var count int64
	for _, instance := range as.instances {
		if instance.processInstanceId != processInstanceId || instance.activityId != activityId {
			continue
		}
		if unfinished && instance.finished {
			continue
		}
		count++
	}
	return count, nil
}

// EventSubscriptionStore keeps event subscriptions keyed by execution id.
type EventSubscriptionStore struct {
	mu            sync.RWMutex
	subscriptions map[string][]runtime.EventSubscription
}

var _ storage.EventSubscriptionReader = &EventSubscriptionStore{}

func NewEventSubscriptionStore() *EventSubscriptionStore {
	return &EventSubscriptionStore{
		subscriptions: make(map[string][]runtime.EventSubscription),
	}
}

func (es *EventSubscriptionStore) SaveEventSubscription(ctx context.Context, subscription runtime.EventSubscription) error {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.subscriptions[subscription.ExecutionId] = append(es.subscriptions[subscription.ExecutionId], subscription)
	return nil
}

func (es *EventSubscriptionStore) FindEventSubscriptionsByExecutionId(ctx context.Context, executionId string) ([]runtime.EventSubscription, error) {
	es.mu.RLock()
	defer es.mu.RUnlock()
	subscriptions := make([]runtime.EventSubscription, 0, len(es.subscriptions[executionId]))
	subscriptions = append(subscriptions, es.subscriptions[executionId]...)
	return subscriptions, nil
}

// JobStore keeps timer jobs keyed by process instance id.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string][]runtime.Job
}

var _ storage.TimerJobReader = &JobStore{}

func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string][]runtime.Job),
	}
}

func (js *JobStore) SaveJob(ctx context.Context, job runtime.Job) error {
	js.mu.Lock()
	defer js.mu.Unlock()
	js.jobs[job.ProcessInstanceId] = append(js.jobs[job.ProcessInstanceId], job)
	return nil
}

func (js *JobStore) FindTimerJobsByProcessInstanceId(ctx context.Context, processInstanceId string) ([]runtime.Job, error) {
	js.mu.RLock()
	defer js.mu.RUnlock()
	jobs := make([]runtime.Job, 0, len(js.jobs[processInstanceId]))
	jobs = append(jobs, js.jobs[processInstanceId]...)
	return jobs, nil
}

// IdentityLinkStore keeps identity links keyed by process instance id.
type IdentityLinkStore struct {
	mu    sync.RWMutex
	links map[string][]runtime.IdentityLink
}

var _ storage.IdentityLinkReader = &IdentityLinkStore{}

func NewIdentityLinkStore() *IdentityLinkStore {
	return &IdentityLinkStore{
		links: make(map[string][]runtime.IdentityLink),
	}
}

func (ls *IdentityLinkStore) SaveIdentityLink(ctx context.Context, link runtime.IdentityLink) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.links[link.ProcessInstanceId] = append(ls.links[link.ProcessInstanceId], link)
	return nil
}

func (ls *IdentityLinkStore) FindIdentityLinksByProcessInstanceId(ctx context.Context, processInstanceId string) ([]runtime.IdentityLink, error) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	links := make([]runtime.IdentityLink, 0, len(ls.links[processInstanceId]))
	links = append(links, ls.links[processInstanceId]...)
	return links, nil
}

// VariableStore keeps variable instances, readable by execution scope and by
// process instance scope.
type VariableStore struct {
	mu        sync.RWMutex
	variables []runtime.VariableInstance
}

var _ storage.VariableReader = &VariableStore{}

func NewVariableStore() *VariableStore {
	return &VariableStore{
		variables: make([]runtime.VariableInstance, 0),
	}
}

func (vs *VariableStore) SaveVariable(ctx context.Context, variable runtime.VariableInstance) error {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	for i, existing := range vs.variables {
		if existing.ExecutionId == variable.ExecutionId && existing.Name == variable.Name {
			vs.variables[i] = variable
			return nil
		}
	}
	vs.variables = append(vs.variables, variable)
	return nil
}

func (vs *VariableStore) FindVariablesByExecutionId(ctx context.Context, executionId string) ([]runtime.VariableInstance, error) {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	variables := make([]runtime.VariableInstance, 0)
	for _, variable := range vs.variables {
		if variable.ExecutionId == executionId {
			variables = append(variables, variable)
		}
	}
	return variables, nil
}

func (vs *VariableStore) FindVariablesByProcessInstanceId(ctx context.Context, processInstanceId string) ([]runtime.VariableInstance, error) {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	variables := make([]runtime.VariableInstance, 0)
	for _, variable := range vs.variables {
		if variable.ProcessInstanceId == processInstanceId {
			variables = append(variables, variable)
		}
	}
	return variables, nil
}
