package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fluxbpm/fluxbpm/internal/config"
	"github.com/fluxbpm/fluxbpm/pkg/bpmn/runtime"
	"github.com/fluxbpm/fluxbpm/pkg/ptr"
	"github.com/fluxbpm/fluxbpm/pkg/storage"
)

func newTestStore(t *testing.T, collaborators Collaborators) *ExecutionStore {
	t.Helper()
	store, err := NewExecutionStore(nil, config.Store{ComparatorCacheSize: 8}, collaborators)
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func insertRoot(t *testing.T, store *ExecutionStore, mutate func(e *runtime.ExecutionEntity)) *runtime.ExecutionEntity {
	t.Helper()
	ctx := context.TODO()
	e := store.Create(ctx)
	e.IsActive = true
	if mutate != nil {
		mutate(e)
	}
	err := store.Insert(ctx, e)
	assert.NoError(t, err)
	return e
}

func TestResolveMatch(t *testing.T) {
	// AND semantics: a failed predicate rejects, a satisfied one defers
	assert.Equal(t, matchReject, resolveMatch(false, false))
	assert.Equal(t, matchUndecided, resolveMatch(true, false))
	// OR semantics: a satisfied predicate accepts, a failed one defers
	assert.Equal(t, matchAccept, resolveMatch(true, true))
	assert.Equal(t, matchUndecided, resolveMatch(false, true))
}

func TestAndQueryRejectsOnAnyFailedPredicate(t *testing.T) {
	store := newTestStore(t, Collaborators{})
	ctx := context.TODO()

	insertRoot(t, store, func(e *runtime.ExecutionEntity) {
		e.TenantId = "acme"
		e.BusinessKey = "order-1"
	})

	results, err := store.FindExecutionsByQueryCriteria(ctx, &storage.ExecutionQuery{
		TenantId:    "acme",
		BusinessKey: "order-2",
	})
	assert.NoError(t, err)
	assert.Empty(t, results)
}

func TestOrGroupAcceptsOnAnyMatchedPredicate(t *testing.T) {
	store := newTestStore(t, Collaborators{})
	ctx := context.TODO()

	e := insertRoot(t, store, func(e *runtime.ExecutionEntity) {
		e.TenantId = "acme"
		e.BusinessKey = "order-1"
	})

	// the business key predicate of the group fails, the tenant one matches
	results, err := store.FindExecutionsByQueryCriteria(ctx, &storage.ExecutionQuery{
		OrQueries: []*storage.ExecutionQuery{{
			BusinessKey: "no-such-key",
			TenantId:    "acme",
		}},
	})
	assert.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, e.Id, results[0].Id)
}

func TestOrGroupStillRequiresTopLevelPredicates(t *testing.T) {
	store := newTestStore(t, Collaborators{})
	ctx := context.TODO()

	insertRoot(t, store, func(e *runtime.ExecutionEntity) {
		e.TenantId = "acme"
	})

	results, err := store.FindExecutionsByQueryCriteria(ctx, &storage.ExecutionQuery{
		TenantId: "globex",
		OrQueries: []*storage.ExecutionQuery{{
			TenantId: "acme",
		}},
	})
	assert.NoError(t, err)
	assert.Empty(t, results)
}

// An OR group without any defined predicate never reaches a decisive result
// and falls back to "matches nothing". This mirrors the SQL-backed behavior
// for empty groups, deliberately so.
func TestEmptyOrGroupMatchesNothing(t *testing.T) {
	store := newTestStore(t, Collaborators{})
	ctx := context.TODO()

	insertRoot(t, store, func(e *runtime.ExecutionEntity) {
		e.TenantId = "acme"
	})

	results, err := store.FindExecutionsByQueryCriteria(ctx, &storage.ExecutionQuery{
		TenantId:  "acme",
		OrQueries: []*storage.ExecutionQuery{{}},
	})
	assert.NoError(t, err)
	assert.Empty(t, results)
}

// The implicit root-only scope of the instance query belongs to the top-level
// AND pass only; an OR group must be decided by its own predicates.
func TestProcessInstanceOrGroupRequiresOwnPredicates(t *testing.T) {
	store := newTestStore(t, Collaborators{})
	ctx := context.TODO()

	root := insertRoot(t, store, func(e *runtime.ExecutionEntity) {
		e.Name = "invoice-run"
	})

	results, err := store.FindProcessInstancesByQueryCriteria(ctx, &storage.ProcessInstanceQuery{
		OrQueries: []*storage.ProcessInstanceQuery{{TenantId: "no-such-tenant"}},
	})
	assert.NoError(t, err)
	assert.Empty(t, results)

	results, err = store.FindProcessInstancesByQueryCriteria(ctx, &storage.ProcessInstanceQuery{
		OrQueries: []*storage.ProcessInstanceQuery{{}},
	})
	assert.NoError(t, err)
	assert.Empty(t, results)

	results, err = store.FindProcessInstancesByQueryCriteria(ctx, &storage.ProcessInstanceQuery{
		OrQueries: []*storage.ProcessInstanceQuery{{
			TenantId: "no-such-tenant",
			Name:     "invoice-run",
		}},
	})
	assert.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, root.Id, results[0].Id)
}

func TestStructuralScopePredicates(t *testing.T) {
	store := newTestStore(t, Collaborators{})
	ctx := context.TODO()

	root := insertRoot(t, store, nil)
	child := insertRoot(t, store, func(e *runtime.ExecutionEntity) {
		e.ParentId = root.Id
		e.ProcessInstanceId = root.Id
		e.ActivityId = "reviewTask"
		e.IsActive = false
	})

	instances, err := store.FindExecutionsByQueryCriteria(ctx, &storage.ExecutionQuery{OnlyProcessInstances: true})
	assert.NoError(t, err)
	assert.Len(t, instances, 1)
	assert.Equal(t, root.Id, instances[0].Id)

	children, err := store.FindExecutionsByQueryCriteria(ctx, &storage.ExecutionQuery{OnlyChildExecutions: true})
	assert.NoError(t, err)
	assert.Len(t, children, 1)
	assert.Equal(t, child.Id, children[0].Id)

	active, err := store.FindExecutionsByQueryCriteria(ctx, &storage.ExecutionQuery{OnlyActive: true})
	assert.NoError(t, err)
	assert.Len(t, active, 1)
	assert.Equal(t, root.Id, active[0].Id)

	byActivity, err := store.FindExecutionsByQueryCriteria(ctx, &storage.ExecutionQuery{ActivityId: "reviewTask"})
	assert.NoError(t, err)
	assert.Len(t, byActivity, 1)
	assert.Equal(t, child.Id, byActivity[0].Id)
}

func TestStartTimeAndNamePredicates(t *testing.T) {
	store := newTestStore(t, Collaborators{})
	ctx := context.TODO()
	t1 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	early := insertRoot(t, store, func(e *runtime.ExecutionEntity) {
		e.StartTime = t1
		e.Name = "Invoice Handling"
	})
	late := insertRoot(t, store, func(e *runtime.ExecutionEntity) {
		e.StartTime = t1.Add(time.Hour)
		e.Name = "Order Handling"
	})

	before, err := store.FindExecutionsByQueryCriteria(ctx, &storage.ExecutionQuery{
		StartedBefore: ptr.To(t1.Add(time.Minute)),
	})
	assert.NoError(t, err)
	assert.Len(t, before, 1)
	assert.Equal(t, early.Id, before[0].Id)

	after, err := store.FindExecutionsByQueryCriteria(ctx, &storage.ExecutionQuery{
		StartedAfter: ptr.To(t1.Add(time.Minute)),
	})
	assert.NoError(t, err)
	assert.Len(t, after, 1)
	assert.Equal(t, late.Id, after[0].Id)

	byName, err := store.FindExecutionsByQueryCriteria(ctx, &storage.ExecutionQuery{
		NameLikeIgnoreCase: "%handling",
	})
	assert.NoError(t, err)
	assert.Len(t, byName, 2)

	byLike, err := store.FindExecutionsByQueryCriteria(ctx, &storage.ExecutionQuery{
		NameLike: "Invoice%",
	})
	assert.NoError(t, err)
	assert.Len(t, byLike, 1)
	assert.Equal(t, early.Id, byLike[0].Id)
}

func TestDefinitionPredicatesWithRepositoryLookup(t *testing.T) {
	definitions := NewDefinitionStore()
	store := newTestStore(t, Collaborators{Definitions: definitions})
	ctx := context.TODO()

	err := definitions.SaveProcessDefinition(ctx, runtime.ProcessDefinition{
		Id:            "order:1:abc",
		Key:           "order",
		Category:      "http://fluxbpm.example/orders",
		EngineVersion: "v5",
	})
	assert.NoError(t, err)

	matching := insertRoot(t, store, func(e *runtime.ExecutionEntity) {
		e.ProcessDefinitionId = "order:1:abc"
		e.ProcessDefinitionKey = "order"
		e.ProcessDefinitionVersion = 1
	})
	insertRoot(t, store, func(e *runtime.ExecutionEntity) {
		e.ProcessDefinitionId = "invoice:2:def"
		e.ProcessDefinitionKey = "invoice"
		e.ProcessDefinitionVersion = 2
	})

	byCategory, err := store.FindExecutionsByQueryCriteria(ctx, &storage.ExecutionQuery{
		ProcessDefinitionCategory: "http://fluxbpm.example/orders",
	})
	assert.NoError(t, err)
	assert.Len(t, byCategory, 1)
	assert.Equal(t, matching.Id, byCategory[0].Id)

	byEngineVersion, err := store.FindExecutionsByQueryCriteria(ctx, &storage.ExecutionQuery{
		ProcessDefinitionEngineVersion: "v5",
	})
	assert.NoError(t, err)
	assert.Len(t, byEngineVersion, 1)

	// a definition the repository does not know cannot match
	unknown, err := store.FindExecutionsByQueryCriteria(ctx, &storage.ExecutionQuery{
		ProcessDefinitionCategory: "http://fluxbpm.example/invoices",
	})
	assert.NoError(t, err)
	assert.Empty(t, unknown)

	byVersion, err := store.FindExecutionsByQueryCriteria(ctx, &storage.ExecutionQuery{
		ProcessDefinitionVersion: ptr.To(int32(2)),
	})
	assert.NoError(t, err)
	assert.Len(t, byVersion, 1)

	byKeys, err := store.FindExecutionsByQueryCriteria(ctx, &storage.ExecutionQuery{
		ProcessDefinitionKeys: []string{"order", "invoice"},
	})
	assert.NoError(t, err)
	assert.Len(t, byKeys, 2)
}

func TestBusinessKeyWidensThroughChildExecutions(t *testing.T) {
	store := newTestStore(t, Collaborators{})
	ctx := context.TODO()

	root := insertRoot(t, store, func(e *runtime.ExecutionEntity) {
		e.BusinessKey = "order-77"
	})
	child := insertRoot(t, store, func(e *runtime.ExecutionEntity) {
		e.ParentId = root.Id
		e.ProcessInstanceId = root.Id
	})

	strict, err := store.FindExecutionsByQueryCriteria(ctx, &storage.ExecutionQuery{
		BusinessKey: "order-77",
	})
	assert.NoError(t, err)
	assert.Len(t, strict, 1)
	assert.Equal(t, root.Id, strict[0].Id)

	widened, err := store.FindExecutionsByQueryCriteria(ctx, &storage.ExecutionQuery{
		BusinessKey:                           "order-77",
		IncludeChildExecutionsWithBusinessKey: true,
		OrderBy:                               "id asc",
	})
	assert.NoError(t, err)
	assert.Len(t, widened, 2)
	assert.Contains(t, []string{widened[0].Id, widened[1].Id}, child.Id)
}

func TestProcessLinkagePredicates(t *testing.T) {
	store := newTestStore(t, Collaborators{})
	ctx := context.TODO()

	superRoot := insertRoot(t, store, nil)
	callActivity := insertRoot(t, store, func(e *runtime.ExecutionEntity) {
		e.ParentId = superRoot.Id
		e.ProcessInstanceId = superRoot.Id
		e.ActivityId = "callOrderProcess"
	})
	subRoot := insertRoot(t, store, func(e *runtime.ExecutionEntity) {
		e.SuperExecutionId = callActivity.Id
	})

	bySuper, err := store.FindExecutionsByQueryCriteria(ctx, &storage.ExecutionQuery{
		SuperProcessInstanceId: superRoot.Id,
	})
	assert.NoError(t, err)
	assert.Len(t, bySuper, 1)
	assert.Equal(t, subRoot.Id, bySuper[0].Id)

	bySub, err := store.FindProcessInstancesByQueryCriteria(ctx, &storage.ProcessInstanceQuery{
		SubProcessInstanceId: subRoot.Id,
	})
	assert.NoError(t, err)
	assert.Len(t, bySub, 1)
	assert.Equal(t, superRoot.Id, bySub[0].Id)

	resolved, err := store.FindSubProcessInstanceBySuperExecutionId(ctx, callActivity.Id)
	assert.NoError(t, err)
	assert.Equal(t, subRoot.Id, resolved.Id)

	// dangling reference degrades to "no match" instead of failing the query
	dangling, err := store.FindExecutionsByQueryCriteria(ctx, &storage.ExecutionQuery{
		SubProcessInstanceId: "gone",
	})
	assert.NoError(t, err)
	assert.Empty(t, dangling)
}

func TestCollaboratorBackedPredicates(t *testing.T) {
	subscriptions := NewEventSubscriptionStore()
	jobs := NewJobStore()
	links := NewIdentityLinkStore()
	activities := NewActivityInstanceStore()
	store := newTestStore(t, Collaborators{
		EventSubscriptions: subscriptions,
		Jobs:               jobs,
		IdentityLinks:      links,
		Activities:         activities,
	})
	ctx := context.TODO()

	waiting := insertRoot(t, store, nil)
	insertRoot(t, store, nil)

	err := subscriptions.SaveEventSubscription(ctx, runtime.EventSubscription{
		EventName:   "paymentReceived",
		EventType:   "message",
		ExecutionId: waiting.Id,
	})
	assert.NoError(t, err)
	err = jobs.SaveJob(ctx, runtime.Job{
		ProcessInstanceId: waiting.Id,
		ExceptionMessage:  "connection refused",
	})
	assert.NoError(t, err)
	err = links.SaveIdentityLink(ctx, runtime.IdentityLink{
		UserId:            "kermit",
		Type:              "participant",
		ProcessInstanceId: waiting.Id,
	})
	assert.NoError(t, err)
	err = links.SaveIdentityLink(ctx, runtime.IdentityLink{
		GroupId:           "sales",
		Type:              "candidate",
		ProcessInstanceId: waiting.Id,
	})
	assert.NoError(t, err)
	err = activities.RecordActivityInstance(ctx, waiting.Id, "waitForPayment", false)
	assert.NoError(t, err)

	bySubscription, err := store.FindExecutionsByQueryCriteria(ctx, &storage.ExecutionQuery{
		EventSubscriptions: []storage.EventSubscriptionQueryValue{
			{EventName: "paymentReceived", EventType: "message"},
		},
	})
	assert.NoError(t, err)
	assert.Len(t, bySubscription, 1)
	assert.Equal(t, waiting.Id, bySubscription[0].Id)

	wrongType, err := store.FindExecutionsByQueryCriteria(ctx, &storage.ExecutionQuery{
		EventSubscriptions: []storage.EventSubscriptionQueryValue{
			{EventName: "paymentReceived", EventType: "signal"},
		},
	})
	assert.NoError(t, err)
	assert.Empty(t, wrongType)

	withException, err := store.FindExecutionsByQueryCriteria(ctx, &storage.ExecutionQuery{
		WithJobException: true,
	})
	assert.NoError(t, err)
	assert.Len(t, withException, 1)

	byUser, err := store.FindExecutionsByQueryCriteria(ctx, &storage.ExecutionQuery{
		InvolvedUser: "kermit",
	})
	assert.NoError(t, err)
	assert.Len(t, byUser, 1)

	byGroup, err := store.FindExecutionsByQueryCriteria(ctx, &storage.ExecutionQuery{
		InvolvedGroups: []string{"sales", "engineering"},
	})
	assert.NoError(t, err)
	assert.Len(t, byGroup, 1)

	byActivity, err := store.FindExecutionsByQueryCriteria(ctx, &storage.ExecutionQuery{
		ActiveActivityIds: []string{"waitForPayment"},
	})
	assert.NoError(t, err)
	assert.Len(t, byActivity, 1)
}

func TestVariablePredicates(t *testing.T) {
	variables := NewVariableStore()
	store := newTestStore(t, Collaborators{Variables: variables})
	ctx := context.TODO()

	root := insertRoot(t, store, nil)
	child := insertRoot(t, store, func(e *runtime.ExecutionEntity) {
		e.ParentId = root.Id
		e.ProcessInstanceId = root.Id
	})

	err := variables.SaveVariable(ctx, runtime.VariableInstance{
		Name:              "amount",
		Value:             250.0,
		ExecutionId:       root.Id,
		ProcessInstanceId: root.Id,
	})
	assert.NoError(t, err)
	err = variables.SaveVariable(ctx, runtime.VariableInstance{
		Name:              "reviewer",
		Value:             "gonzo",
		ExecutionId:       child.Id,
		ProcessInstanceId: root.Id,
	})
	assert.NoError(t, err)

	// process-instance scope sees variables of the whole tree
	byAmount, err := store.FindExecutionsByQueryCriteria(ctx, &storage.ExecutionQuery{
		OnlyProcessInstances: true,
		Variables: []storage.QueryVariableValue{
			{Name: "amount", Value: 100, Operator: storage.QueryOperatorGreaterThan},
		},
	})
	assert.NoError(t, err)
	assert.Len(t, byAmount, 1)
	assert.Equal(t, root.Id, byAmount[0].Id)

	// execution-local scope only sees the candidate's own variables
	local, err := store.FindExecutionsByQueryCriteria(ctx, &storage.ExecutionQuery{
		Variables: []storage.QueryVariableValue{
			{Name: "reviewer", Value: "gonzo", Operator: storage.QueryOperatorEquals, LocalScope: true},
		},
	})
	assert.NoError(t, err)
	assert.Len(t, local, 1)
	assert.Equal(t, child.Id, local[0].Id)

	noMatch, err := store.FindExecutionsByQueryCriteria(ctx, &storage.ExecutionQuery{
		Variables: []storage.QueryVariableValue{
			{Name: "amount", Value: 500, Operator: storage.QueryOperatorGreaterThanEqual},
		},
	})
	assert.NoError(t, err)
	assert.Empty(t, noMatch)
}
