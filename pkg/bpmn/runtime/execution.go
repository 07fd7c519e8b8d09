package runtime

import "time"

// ExecutionEntity is one node of a running process instance's execution tree.
// A process instance is the root node of its own tree: its Id equals its
// ProcessInstanceId and it has no parent.
//
// Relationship entities (variables, identity links, event subscriptions,
// jobs) are resolved through their own stores by foreign key; the collections
// held here are only the locally created ones of a fresh entity.
type ExecutionEntity struct {
	Id                    string
	ProcessInstanceId     string
	RootProcessInstanceId string // top-most tree when nested via call activities
	ParentId              string // empty only for roots
	SuperExecutionId      string // calling execution when spawned by a call activity

	ProcessDefinitionId            string
	ProcessDefinitionKey           string
	ProcessDefinitionName          string
	ProcessDefinitionVersion       int32
	ProcessDefinitionCategory      string
	ProcessDefinitionEngineVersion string
	ActivityId                     string
	DeploymentId                   string

	BusinessKey    string
	BusinessStatus string
	Name           string
	TenantId       string
	StartTime      time.Time
	StartUserId    string

	IsActive        bool
	SuspensionState SuspensionState
	LockTime        *time.Time
	LockOwner       string
	IsCountEnabled  bool

	ChildExecutions    []*ExecutionEntity
	EventSubscriptions []EventSubscription
	IdentityLinks      []IdentityLink
	Variables          *VariableHolder
}

// NewExecutionEntity creates a detached execution with empty relationship
// collections, so that first access never triggers a fetch into the
// collaborator stores. The variable collection is the concurrency-safe
// VariableHolder because parallel branches of the same process instance may
// write variables into the same scope at the same time.
func NewExecutionEntity() *ExecutionEntity {
	return &ExecutionEntity{
		SuspensionState:    SuspensionStateActive,
		ChildExecutions:    []*ExecutionEntity{},
		EventSubscriptions: []EventSubscription{},
		IdentityLinks:      []IdentityLink{},
		Variables:          NewVariableHolder(nil, nil),
	}
}

func (e *ExecutionEntity) IsProcessInstance() bool {
	return e.ParentId == ""
}

func (e *ExecutionEntity) IsSuspended() bool {
	return e.SuspensionState == SuspensionStateSuspended
}

// GetVariable reads from the execution's local variable scope.
func (e *ExecutionEntity) GetVariable(key string) interface{} {
	return e.Variables.GetLocalVariable(key)
}

// SetVariable writes into the execution's local variable scope.
func (e *ExecutionEntity) SetVariable(key string, value interface{}) {
	e.Variables.SetLocalVariable(key, value)
}
