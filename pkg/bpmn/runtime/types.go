package runtime

import "time"

type ProcessDefinition struct {
	Id            string // The engines id for this definition version
	Key           string // The ID as defined in the BPMN file
	Name          string
	Version       int32  // A version of the process, default=1, incremented, when another process with the same key is deployed
	Category      string // The targetNamespace of the definitions element
	EngineVersion string // set when the definition was deployed by an older engine generation
	DeploymentId  string
	TenantId      string
}

// SuspensionState covers a whole execution tree in well-formed usage;
// the store does not enforce tree-wide consistency.
type SuspensionState int32

const (
	SuspensionStateActive    SuspensionState = 1
	SuspensionStateSuspended SuspensionState = 2
)

// IdentityLink relates a user or a group to a process instance,
// e.g. as starter, owner or candidate.
type IdentityLink struct {
	Id                string
	UserId            string
	GroupId           string
	Type              string
	ProcessInstanceId string
}

type EventSubscription struct {
	Id                string
	EventName         string
	EventType         string
	ExecutionId       string
	ProcessInstanceId string
	ActivityId        string
	CreatedAt         time.Time
}

// Job is the async-work record attached to a process instance. Only the
// fields the runtime query surface joins against are carried here.
type Job struct {
	Id                string
	ProcessInstanceId string
	ExecutionId       string
	JobType           string
	Retries           int32
	ExceptionMessage  string
	DueAt             time.Time
}

func (j Job) HasException() bool {
	return j.ExceptionMessage != ""
}

type VariableInstance struct {
	Id                string
	Name              string
	Value             interface{}
	ExecutionId       string
	ProcessInstanceId string
}
