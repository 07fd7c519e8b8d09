package storage

import (
	"strings"
	"time"

	"github.com/fluxbpm/fluxbpm/pkg/bpmn/runtime"
)

// Order-by columns recognized by the query surface. An order-by specification
// is a comma separated list of "column [asc|desc] [nulls first|last]"
// clauses; direction defaults to ascending. Unrecognized columns do not
// contribute to ordering and must not fail the query.
const (
	OrderById                   = "id"
	OrderByProcessInstanceId    = "processInstanceId"
	OrderByProcessDefinitionId  = "processDefinitionId"
	OrderByProcessDefinitionKey = "processDefinitionKey"
	OrderByTenantId             = "tenantId"
	OrderByStartTime            = "startTime"
	OrderByName                 = "name"
	OrderByBusinessKey          = "businessKey"
)

// QueryOperator is the comparison applied by a variable-value predicate.
type QueryOperator string

const (
	QueryOperatorEquals           QueryOperator = "eq"
	QueryOperatorNotEquals        QueryOperator = "neq"
	QueryOperatorGreaterThan      QueryOperator = "gt"
	QueryOperatorGreaterThanEqual QueryOperator = "gte"
	QueryOperatorLessThan         QueryOperator = "lt"
	QueryOperatorLessThanEqual    QueryOperator = "lte"
	QueryOperatorLike             QueryOperator = "like"
	QueryOperatorLikeIgnoreCase   QueryOperator = "likeIgnoreCase"
	QueryOperatorExists           QueryOperator = "exists"
)

// QueryVariableValue is one variable predicate of a query. LocalScope limits
// the lookup to variables of the candidate execution itself instead of its
// whole process instance.
type QueryVariableValue struct {
	Name       string
	Value      interface{}
	Operator   QueryOperator
	LocalScope bool
}

// Matches reports whether a stored variable value satisfies this predicate.
// Values of incomparable types never match.
func (qv QueryVariableValue) Matches(value interface{}) bool {
	switch qv.Operator {
	case QueryOperatorExists:
		return true
	case QueryOperatorLike, QueryOperatorLikeIgnoreCase:
		expected, eOk := qv.Value.(string)
		actual, aOk := value.(string)
		if !eOk || !aOk {
			return false
		}
		if qv.Operator == QueryOperatorLikeIgnoreCase {
			expected = strings.ToLower(expected)
			actual = strings.ToLower(actual)
		}
		return LikeMatch(actual, expected)
	}

	cmp, comparable := compareValues(value, qv.Value)
	switch qv.Operator {
	case QueryOperatorEquals, "":
		return comparable && cmp == 0
	case QueryOperatorNotEquals:
		return !comparable || cmp != 0
	case QueryOperatorGreaterThan:
		return comparable && cmp > 0
	case QueryOperatorGreaterThanEqual:
		return comparable && cmp >= 0
	case QueryOperatorLessThan:
		return comparable && cmp < 0
	case QueryOperatorLessThanEqual:
		return comparable && cmp <= 0
	}
	return false
}

func compareValues(a, b interface{}) (cmp int, comparable bool) {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			// false sorts before true
			return -1, true
		}
		return 1, true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	}
	return 0, false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// LikeMatch implements SQL LIKE semantics with % wildcards over plain strings.
func LikeMatch(value string, pattern string) bool {
	segments := strings.Split(pattern, "%")
	if len(segments) == 1 {
		return value == pattern
	}
	if !strings.HasPrefix(value, segments[0]) {
		return false
	}
	value = value[len(segments[0]):]
	last := segments[len(segments)-1]
	for _, segment := range segments[1 : len(segments)-1] {
		if segment == "" {
			continue
		}
		idx := strings.Index(value, segment)
		if idx < 0 {
			return false
		}
		value = value[idx+len(segment):]
	}
	return strings.HasSuffix(value, last)
}

// EventSubscriptionQueryValue is one event-subscription predicate, matched on
// event name and type against the subscriptions of the candidate execution.
type EventSubscriptionQueryValue struct {
	EventName string
	EventType string
}

// ExecutionQuery filters individual nodes of the execution trees. The zero
// value of a field means the filter is not set. Nested OrQueries carry
// predicates that are satisfied disjunctively; the top-level query must still
// be satisfied in full.
type ExecutionQuery struct {
	ExecutionId           string
	ProcessInstanceId     string
	ProcessInstanceIds    []string
	RootProcessInstanceId string
	ParentId              string
	ActivityId            string

	OnlyProcessInstances     bool
	OnlyChildExecutions      bool
	OnlySubProcessExecutions bool
	OnlyActive               bool

	ProcessDefinitionId            string
	ProcessDefinitionIds           []string
	ProcessDefinitionKey           string
	ProcessDefinitionKeys          []string
	ProcessDefinitionName          string
	ProcessDefinitionVersion       *int32
	ProcessDefinitionCategory      string
	ProcessDefinitionEngineVersion string
	DeploymentId                   string
	DeploymentIds                  []string

	BusinessKey                           string
	IncludeChildExecutionsWithBusinessKey bool
	BusinessStatus                        string

	Name               string
	NameLike           string
	NameLikeIgnoreCase string

	TenantId        string
	TenantIdLike    string
	WithoutTenantId bool

	StartedBefore *time.Time
	StartedAfter  *time.Time
	StartedBy     string

	SuspensionState runtime.SuspensionState

	SuperProcessInstanceId string
	SubProcessInstanceId   string

	ActiveActivityIds  []string
	EventSubscriptions []EventSubscriptionQueryValue
	WithJobException   bool
	InvolvedUser       string
	InvolvedGroups     []string
	Variables          []QueryVariableValue

	OrQueries []*ExecutionQuery

	OrderBy     string
	FirstResult int
	MaxResults  int
}

// ProcessInstanceQuery filters root executions only. Features that exist only
// on the execution-scoped side (parent, activity, child-only scope) have no
// equivalent here.
type ProcessInstanceQuery struct {
	ProcessInstanceId     string
	ProcessInstanceIds    []string
	RootProcessInstanceId string

	OnlyActive bool

	ProcessDefinitionId            string
	ProcessDefinitionIds           []string
	ProcessDefinitionKey           string
	ProcessDefinitionKeys          []string
	ProcessDefinitionName          string
	ProcessDefinitionVersion       *int32
	ProcessDefinitionCategory      string
	ProcessDefinitionEngineVersion string
	DeploymentId                   string
	DeploymentIds                  []string

	BusinessKey                           string
	IncludeChildExecutionsWithBusinessKey bool
	BusinessStatus                        string

	Name               string
	NameLike           string
	NameLikeIgnoreCase string

	TenantId        string
	TenantIdLike    string
	WithoutTenantId bool

	StartedBefore *time.Time
	StartedAfter  *time.Time
	StartedBy     string

	SuspensionState runtime.SuspensionState

	SuperProcessInstanceId string
	SubProcessInstanceId   string

	ActiveActivityIds  []string
	EventSubscriptions []EventSubscriptionQueryValue
	WithJobException   bool
	InvolvedUser       string
	InvolvedGroups     []string
	Variables          []QueryVariableValue

	OrQueries []*ProcessInstanceQuery

	OrderBy     string
	FirstResult int
	MaxResults  int
}
