package inmemory

import (
	"time"

	"github.com/fluxbpm/fluxbpm/pkg/bpmn/runtime"
	"github.com/fluxbpm/fluxbpm/pkg/storage"
)

// queryView presents one read-only accessor surface over the two physically
// distinct query objects, so the predicate pipeline and the sorting logic are
// written once and never branch on which query kind was supplied. Features
// that exist only on one side return a safe zero value on the other.
//
// Adapters are side-effect-free and stateless except for the memoized
// OR-group list.
type queryView interface {
	OnlyProcessInstances() bool
	OnlyChildExecutions() bool
	OnlySubProcessExecutions() bool
	OnlyActive() bool

	StartedBefore() *time.Time
	StartedAfter() *time.Time
	StartedBy() string

	ExecutionId() string
	ProcessInstanceId() string
	ProcessInstanceIds() []string
	RootProcessInstanceId() string
	ParentId() string
	ActivityId() string
	DeploymentId() string
	DeploymentIds() []string

	TenantId() string
	TenantIdLike() string
	WithoutTenantId() bool

	Name() string
	NameLike() string
	NameLikeIgnoreCase() string

	SuspensionState() runtime.SuspensionState

	ProcessDefinitionId() string
	ProcessDefinitionIds() []string
	ProcessDefinitionKey() string
	ProcessDefinitionKeys() []string
	ProcessDefinitionName() string
	ProcessDefinitionVersion() *int32
	ProcessDefinitionCategory() string
	ProcessDefinitionEngineVersion() string

	BusinessKey() string
	IncludeChildExecutionsWithBusinessKey() bool
	BusinessStatus() string

	SuperProcessInstanceId() string
	SubProcessInstanceId() string

	ActiveActivityIds() []string
	EventSubscriptions() []storage.EventSubscriptionQueryValue
	WithJobException() bool
	InvolvedUser() string
	InvolvedGroups() []string
	QueryVariableValues() []storage.QueryVariableValue

	OrderBy() string
	FirstResult() int
	MaxResults() int

	// IsOrQuery is false for the top-level query and true for every nested group.
	IsOrQuery() bool
	// OrQueryViews lazily wraps each nested query object into its own view,
	// memoized after the first call.
	OrQueryViews() []queryView
}

type executionQueryView struct {
	query   *storage.ExecutionQuery
	orQuery bool
	orViews []queryView
}

func newExecutionQueryView(query *storage.ExecutionQuery) *executionQueryView {
	return &executionQueryView{query: query}
}

func (v *executionQueryView) OnlyProcessInstances() bool { return v.query.OnlyProcessInstances }
func (v *executionQueryView) OnlyChildExecutions() bool { return v.query.OnlyChildExecutions }
func (v *executionQueryView) OnlySubProcessExecutions() bool { return v.query.OnlySubProcessExecutions }
func (v *executionQueryView) OnlyActive() bool { return v.query.OnlyActive }

func (v *executionQueryView) StartedBefore() *time.Time { return v.query.StartedBefore }
func (v *executionQueryView) StartedAfter() *time.Time { return v.query.StartedAfter }
func (v *executionQueryView) StartedBy() string { return v.query.StartedBy }

func (v *executionQueryView) ExecutionId() string { return v.query.ExecutionId }
func (v *executionQueryView) ProcessInstanceId() string { return v.query.ProcessInstanceId }
func (v *executionQueryView) ProcessInstanceIds() []string { return v.query.ProcessInstanceIds }
func (v *executionQueryView) RootProcessInstanceId() string { return v.query.RootProcessInstanceId }
func (v *executionQueryView) ParentId() string { return v.query.ParentId }
func (v *executionQueryView) ActivityId() string { return v.query.ActivityId }
func (v *executionQueryView) DeploymentId() string { return v.query.DeploymentId }
func (v *executionQueryView) DeploymentIds() []string { return v.query.DeploymentIds }

func (v *executionQueryView) TenantId() string { return v.query.TenantId }
func (v *executionQueryView) TenantIdLike() string { return v.query.TenantIdLike }
func (v *executionQueryView) WithoutTenantId() bool { return v.query.WithoutTenantId }

func (v *executionQueryView) Name() string { return v.query.Name }
func (v *executionQueryView) NameLike() string { return v.query.NameLike }
func (v *executionQueryView) NameLikeIgnoreCase() string { return v.query.NameLikeIgnoreCase }

func (v *executionQueryView) SuspensionState() runtime.SuspensionState {
	return v.query.SuspensionState
}

func (v *executionQueryView) ProcessDefinitionId() string { return v.query.ProcessDefinitionId }
func (v *executionQueryView) ProcessDefinitionIds() []string { return v.query.ProcessDefinitionIds }
func (v *executionQueryView) ProcessDefinitionKey() string { return v.query.ProcessDefinitionKey }
func (v *executionQueryView) ProcessDefinitionKeys() []string {
	return v.query.ProcessDefinitionKeys
}
func (v *executionQueryView) ProcessDefinitionName() string { return v.query.ProcessDefinitionName }
func (v *executionQueryView) ProcessDefinitionVersion() *int32 { return v.query.ProcessDefinitionVersion }
func (v *executionQueryView) ProcessDefinitionCategory() string {
	return v.query.ProcessDefinitionCategory
}
func (v *executionQueryView) ProcessDefinitionEngineVersion() string {
	return v.query.ProcessDefinitionEngineVersion
}

func (v *executionQueryView) BusinessKey() string { return v.query.BusinessKey }
func (v *executionQueryView) IncludeChildExecutionsWithBusinessKey() bool {
	return v.query.IncludeChildExecutionsWithBusinessKey
}
func (v *executionQueryView) BusinessStatus() string { return v.query.BusinessStatus }

func (v *executionQueryView) SuperProcessInstanceId() string { return v.query.SuperProcessInstanceId }
func (v *executionQueryView) SubProcessInstanceId() string { return v.query.SubProcessInstanceId }

func (v *executionQueryView) ActiveActivityIds() []string { return v.query.ActiveActivityIds }
func (v *executionQueryView) EventSubscriptions() []storage.EventSubscriptionQueryValue {
	return v.query.EventSubscriptions
}
func (v *executionQueryView) WithJobException() bool { return v.query.WithJobException }
func (v *executionQueryView) InvolvedUser() string { return v.query.InvolvedUser }
func (v *executionQueryView) InvolvedGroups() []string { return v.query.InvolvedGroups }
func (v *executionQueryView) QueryVariableValues() []storage.QueryVariableValue {
	return v.query.Variables
}

func (v *executionQueryView) OrderBy() string { return v.query.OrderBy }
func (v *executionQueryView) FirstResult() int { return v.query.FirstResult }
func (v *executionQueryView) MaxResults() int { return v.query.MaxResults }
func (v *executionQueryView) IsOrQuery() bool { return v.orQuery }

func (v *executionQueryView) OrQueryViews() []queryView {
	if v.orViews == nil {
		v.orViews = make([]queryView, 0, len(v.query.OrQueries))
		for _, or := range v.query.OrQueries {
			v.orViews = append(v.orViews, &executionQueryView{query: or, orQuery: true})
		}
	}
	return v.orViews
}

type processInstanceQueryView struct {
	query   *storage.ProcessInstanceQuery
	orQuery bool
	orViews []queryView
}

func newProcessInstanceQueryView(query *storage.ProcessInstanceQuery) *processInstanceQueryView {
	return &processInstanceQueryView{query: query}
}

// OnlyProcessInstances is implicit for the instance-scoped query: only roots
// are candidates. The top-level view alone carries it; inside an OR group a
// constant predicate would decisively accept every entity before the group's
// real predicates are consulted.
func (v *processInstanceQueryView) OnlyProcessInstances() bool { return !v.orQuery }
func (v *processInstanceQueryView) OnlyChildExecutions() bool { return false }
func (v *processInstanceQueryView) OnlySubProcessExecutions() bool { return false }
func (v *processInstanceQueryView) OnlyActive() bool { return v.query.OnlyActive }

func (v *processInstanceQueryView) StartedBefore() *time.Time { return v.query.StartedBefore }
func (v *processInstanceQueryView) StartedAfter() *time.Time { return v.query.StartedAfter }
func (v *processInstanceQueryView) StartedBy() string { return v.query.StartedBy }

func (v *processInstanceQueryView) ExecutionId() string { return "" }
func (v *processInstanceQueryView) ProcessInstanceId() string { return v.query.ProcessInstanceId }
func (v *processInstanceQueryView) ProcessInstanceIds() []string { return v.query.ProcessInstanceIds }
func (v *processInstanceQueryView) RootProcessInstanceId() string { return v.query.RootProcessInstanceId }
func (v *processInstanceQueryView) ParentId() string { return "" }
func (v *processInstanceQueryView) ActivityId() string { return "" }
func (v *processInstanceQueryView) DeploymentId() string { return v.query.DeploymentId }
func (v *processInstanceQueryView) DeploymentIds() []string { return v.query.DeploymentIds }

func (v *processInstanceQueryView) TenantId() string { return v.query.TenantId }
func (v *processInstanceQueryView) TenantIdLike() string { return v.query.TenantIdLike }
func (v *processInstanceQueryView) WithoutTenantId() bool { return v.query.WithoutTenantId }

func (v *processInstanceQueryView) Name() string { return v.query.Name }
func (v *processInstanceQueryView) NameLike() string { return v.query.NameLike }
func (v *processInstanceQueryView) NameLikeIgnoreCase() string { return v.query.NameLikeIgnoreCase }

func (v *processInstanceQueryView) SuspensionState() runtime.SuspensionState {
	return v.query.SuspensionState
}

func (v *processInstanceQueryView) ProcessDefinitionId() string { return v.query.ProcessDefinitionId }
func (v *processInstanceQueryView) ProcessDefinitionIds() []string {
	return v.query.ProcessDefinitionIds
}
func (v *processInstanceQueryView) ProcessDefinitionKey() string { return v.query.ProcessDefinitionKey }
func (v *processInstanceQueryView) ProcessDefinitionKeys() []string {
	return v.query.ProcessDefinitionKeys
}
func (v *processInstanceQueryView) ProcessDefinitionName() string {
	return v.query.ProcessDefinitionName
}
func (v *processInstanceQueryView) ProcessDefinitionVersion() *int32 {
	return v.query.ProcessDefinitionVersion
}
func (v *processInstanceQueryView) ProcessDefinitionCategory() string {
	return v.query.ProcessDefinitionCategory
}
func (v *processInstanceQueryView) ProcessDefinitionEngineVersion() string {
	return v.query.ProcessDefinitionEngineVersion
}

func (v *processInstanceQueryView) BusinessKey() string { return v.query.BusinessKey }
func (v *processInstanceQueryView) IncludeChildExecutionsWithBusinessKey() bool {
	return v.query.IncludeChildExecutionsWithBusinessKey
}
func (v *processInstanceQueryView) BusinessStatus() string { return v.query.BusinessStatus }

func (v *processInstanceQueryView) SuperProcessInstanceId() string {
	return v.query.SuperProcessInstanceId
}
func (v *processInstanceQueryView) SubProcessInstanceId() string { return v.query.SubProcessInstanceId }

func (v *processInstanceQueryView) ActiveActivityIds() []string { return v.query.ActiveActivityIds }
func (v *processInstanceQueryView) EventSubscriptions() []storage.EventSubscriptionQueryValue {
	return v.query.EventSubscriptions
}
func (v *processInstanceQueryView) WithJobException() bool { return v.query.WithJobException }
func (v *processInstanceQueryView) InvolvedUser() string { return v.query.InvolvedUser }
func (v *processInstanceQueryView) InvolvedGroups() []string { return v.query.InvolvedGroups }
func (v *processInstanceQueryView) QueryVariableValues() []storage.QueryVariableValue {
	return v.query.Variables
}

func (v *processInstanceQueryView) OrderBy() string { return v.query.OrderBy }
func (v *processInstanceQueryView) FirstResult() int { return v.query.FirstResult }
func (v *processInstanceQueryView) MaxResults() int { return v.query.MaxResults }
func (v *processInstanceQueryView) IsOrQuery() bool { return v.orQuery }

func (v *processInstanceQueryView) OrQueryViews() []queryView {
	if v.orViews == nil {
		v.orViews = make([]queryView, 0, len(v.query.OrQueries))
		for _, or := range v.query.OrQueries {
			v.orViews = append(v.orViews, &processInstanceQueryView{query: or, orQuery: true})
		}
	}
	return v.orViews
}
