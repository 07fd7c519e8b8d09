package inmemory

import (
	"context"
	"slices"
	"strings"

	"github.com/fluxbpm/fluxbpm/pkg/bpmn/runtime"
	"github.com/fluxbpm/fluxbpm/pkg/storage"
)

// matchResult is the tri-state outcome of a single predicate. A non-decisive
// result is distinct from both decisive outcomes so the pipeline can tell
// "keep checking" apart from "reject" and "accept".
type matchResult int

const (
	// matchUndecided defers the decision to the remaining predicates.
	matchUndecided matchResult = iota
	// matchAccept ends evaluation of an OR group: one satisfied predicate is enough.
	matchAccept
	// matchReject ends evaluation of an AND query: one failed predicate excludes the entity.
	matchReject
)

// resolveMatch converts a single predicate outcome into the tri-state result.
// Under AND semantics a failed predicate rejects the whole entity and a
// satisfied one defers to the remaining predicates; under OR semantics a
// satisfied predicate accepts the whole group and a failed one defers.
func resolveMatch(matched bool, orQuery bool) matchResult {
	if orQuery {
		if matched {
			return matchAccept
		}
		return matchUndecided
	}
	if !matched {
		return matchReject
	}
	return matchUndecided
}

// matchesQuery decides whether an execution satisfies the whole query: every
// AND predicate, plus at least one nested OR group when any are present. An
// OR group whose predicates are all non-decisive matches nothing; an empty
// group therefore never matches, mirroring the SQL-backed behavior.
func (s *ExecutionStore) matchesQuery(ctx context.Context, e *runtime.ExecutionEntity, query queryView) bool {
	if s.evaluatePredicates(ctx, e, query) == matchReject {
		return false
	}
	orViews := query.OrQueryViews()
	if len(orViews) == 0 {
		return true
	}
	for _, or := range orViews {
		if s.evaluatePredicates(ctx, e, or) == matchAccept {
			return true
		}
	}
	return false
}

// evaluatePredicates runs the predicate groups in a fixed order, cheap
// structural checks before collaborator lookups, and returns the first
// decisive result.
func (s *ExecutionStore) evaluatePredicates(ctx context.Context, e *runtime.ExecutionEntity, query queryView) matchResult {
	checks := []func(context.Context, *runtime.ExecutionEntity, queryView) matchResult{
		s.checkScope,
		s.checkStartTime,
		s.checkStructuralIds,
		s.checkTenant,
		s.checkName,
		s.checkSuspensionState,
		s.checkDefinition,
		s.checkBusinessKey,
		s.checkProcessLinkage,
		s.checkActiveActivities,
		s.checkEventSubscriptions,
		s.checkJobException,
		s.checkIdentityLinks,
		s.checkVariables,
	}
	for _, check := range checks {
		if res := check(ctx, e, query); res != matchUndecided {
			return res
		}
	}
	return matchUndecided
}

func (s *ExecutionStore) checkScope(ctx context.Context, e *runtime.ExecutionEntity, query queryView) matchResult {
	or := query.IsOrQuery()
	if query.OnlyProcessInstances() {
		if res := resolveMatch(e.IsProcessInstance(), or); res != matchUndecided {
			return res
		}
	}
	if query.OnlyChildExecutions() {
		if res := resolveMatch(!e.IsProcessInstance(), or); res != matchUndecided {
			return res
		}
	}
	if query.OnlySubProcessExecutions() {
		if res := resolveMatch(e.SuperExecutionId != "", or); res != matchUndecided {
			return res
		}
	}
	if query.OnlyActive() {
		if res := resolveMatch(e.IsActive, or); res != matchUndecided {
			return res
		}
	}
	return matchUndecided
}

func (s *ExecutionStore) checkStartTime(ctx context.Context, e *runtime.ExecutionEntity, query queryView) matchResult {
	or := query.IsOrQuery()
	if before := query.StartedBefore(); before != nil {
		matched := !e.StartTime.IsZero() && e.StartTime.Before(*before)
		if res := resolveMatch(matched, or); res != matchUndecided {
			return res
		}
	}
	if after := query.StartedAfter(); after != nil {
		matched := !e.StartTime.IsZero() && e.StartTime.After(*after)
		if res := resolveMatch(matched, or); res != matchUndecided {
			return res
		}
	}
	if startedBy := query.StartedBy(); startedBy != "" {
		if res := resolveMatch(e.StartUserId == startedBy, or); res != matchUndecided {
			return res
		}
	}
	return matchUndecided
}

func (s *ExecutionStore) checkStructuralIds(ctx context.Context, e *runtime.ExecutionEntity, query queryView) matchResult {
	or := query.IsOrQuery()
	if parentId := query.ParentId(); parentId != "" {
		if res := resolveMatch(e.ParentId == parentId, or); res != matchUndecided {
			return res
		}
	}
	if executionId := query.ExecutionId(); executionId != "" {
		if res := resolveMatch(e.Id == executionId, or); res != matchUndecided {
			return res
		}
	}
	if processInstanceId := query.ProcessInstanceId(); processInstanceId != "" {
		if res := resolveMatch(e.ProcessInstanceId == processInstanceId, or); res != matchUndecided {
			return res
		}
	}
	if ids := query.ProcessInstanceIds(); len(ids) > 0 {
		if res := resolveMatch(slices.Contains(ids, e.ProcessInstanceId), or); res != matchUndecided {
			return res
		}
	}
	if rootId := query.RootProcessInstanceId(); rootId != "" {
		if res := resolveMatch(e.RootProcessInstanceId == rootId, or); res != matchUndecided {
			return res
		}
	}
	if activityId := query.ActivityId(); activityId != "" {
		if res := resolveMatch(e.ActivityId == activityId, or); res != matchUndecided {
			return res
		}
	}
	if deploymentId := query.DeploymentId(); deploymentId != "" {
		if res := resolveMatch(e.DeploymentId == deploymentId, or); res != matchUndecided {
			return res
		}
	}
	if deploymentIds := query.DeploymentIds(); len(deploymentIds) > 0 {
		if res := resolveMatch(slices.Contains(deploymentIds, e.DeploymentId), or); res != matchUndecided {
			return res
		}
	}
	return matchUndecided
}

func (s *ExecutionStore) checkTenant(ctx context.Context, e *runtime.ExecutionEntity, query queryView) matchResult {
	or := query.IsOrQuery()
	if tenantId := query.TenantId(); tenantId != "" {
		if res := resolveMatch(e.TenantId == tenantId, or); res != matchUndecided {
			return res
		}
	}
	if pattern := query.TenantIdLike(); pattern != "" {
		if res := resolveMatch(storage.LikeMatch(e.TenantId, pattern), or); res != matchUndecided {
			return res
		}
	}
	if query.WithoutTenantId() {
		if res := resolveMatch(e.TenantId == "", or); res != matchUndecided {
			return res
		}
	}
	return matchUndecided
}

func (s *ExecutionStore) checkName(ctx context.Context, e *runtime.ExecutionEntity, query queryView) matchResult {
	or := query.IsOrQuery()
	if name := query.Name(); name != "" {
		if res := resolveMatch(e.Name == name, or); res != matchUndecided {
			return res
		}
	}
	if pattern := query.NameLike(); pattern != "" {
		if res := resolveMatch(storage.LikeMatch(e.Name, pattern), or); res != matchUndecided {
			return res
		}
	}
	if pattern := query.NameLikeIgnoreCase(); pattern != "" {
		matched := storage.LikeMatch(strings.ToLower(e.Name), strings.ToLower(pattern))
		if res := resolveMatch(matched, or); res != matchUndecided {
			return res
		}
	}
	return matchUndecided
}

func (s *ExecutionStore) checkSuspensionState(ctx context.Context, e *runtime.ExecutionEntity, query queryView) matchResult {
	if state := query.SuspensionState(); state != 0 {
		if res := resolveMatch(e.SuspensionState == state, query.IsOrQuery()); res != matchUndecided {
			return res
		}
	}
	return matchUndecided
}

func (s *ExecutionStore) checkDefinition(ctx context.Context, e *runtime.ExecutionEntity, query queryView) matchResult {
	or := query.IsOrQuery()
	if definitionId := query.ProcessDefinitionId(); definitionId != "" {
		if res := resolveMatch(e.ProcessDefinitionId == definitionId, or); res != matchUndecided {
			return res
		}
	}
	if ids := query.ProcessDefinitionIds(); len(ids) > 0 {
		if res := resolveMatch(slices.Contains(ids, e.ProcessDefinitionId), or); res != matchUndecided {
			return res
		}
	}
	if key := query.ProcessDefinitionKey(); key != "" {
		if res := resolveMatch(e.ProcessDefinitionKey == key, or); res != matchUndecided {
			return res
		}
	}
	if keys := query.ProcessDefinitionKeys(); len(keys) > 0 {
		if res := resolveMatch(slices.Contains(keys, e.ProcessDefinitionKey), or); res != matchUndecided {
			return res
		}
	}
	if name := query.ProcessDefinitionName(); name != "" {
		if res := resolveMatch(e.ProcessDefinitionName == name, or); res != matchUndecided {
			return res
		}
	}
	if version := query.ProcessDefinitionVersion(); version != nil {
		if res := resolveMatch(e.ProcessDefinitionVersion == *version, or); res != matchUndecided {
			return res
		}
	}
	if category := query.ProcessDefinitionCategory(); category != "" {
		definition, err := s.lookupDefinition(ctx, e.ProcessDefinitionId)
		matched := err == nil && definition.Category == category
		if res := resolveMatch(matched, or); res != matchUndecided {
			return res
		}
	}
	if engineVersion := query.ProcessDefinitionEngineVersion(); engineVersion != "" {
		definition, err := s.lookupDefinition(ctx, e.ProcessDefinitionId)
		matched := err == nil && definition.EngineVersion == engineVersion
		if res := resolveMatch(matched, or); res != matchUndecided {
			return res
		}
	}
	return matchUndecided
}

func (s *ExecutionStore) checkBusinessKey(ctx context.Context, e *runtime.ExecutionEntity, query queryView) matchResult {
	or := query.IsOrQuery()
	if businessKey := query.BusinessKey(); businessKey != "" {
		matched := e.BusinessKey == businessKey
		if !matched && query.IncludeChildExecutionsWithBusinessKey() {
			// widen the match through the tree root so children of a matching
			// process instance qualify as well
			if root, ok := s.lookupExecution(e.ProcessInstanceId); ok {
				matched = root.BusinessKey == businessKey
			}
		}
		if res := resolveMatch(matched, or); res != matchUndecided {
			return res
		}
	}
	if businessStatus := query.BusinessStatus(); businessStatus != "" {
		if res := resolveMatch(e.BusinessStatus == businessStatus, or); res != matchUndecided {
			return res
		}
	}
	return matchUndecided
}

// checkProcessLinkage evaluates the call-activity relation between two trees.
// A dangling reference counts as "no match", never as an error: queries
// degrade gracefully instead of aborting a whole result set.
func (s *ExecutionStore) checkProcessLinkage(ctx context.Context, e *runtime.ExecutionEntity, query queryView) matchResult {
	or := query.IsOrQuery()
	if superInstanceId := query.SuperProcessInstanceId(); superInstanceId != "" {
		matched := false
		if e.SuperExecutionId != "" {
			if superExecution, ok := s.lookupExecution(e.SuperExecutionId); ok {
				matched = superExecution.ProcessInstanceId == superInstanceId
			}
		}
		if res := resolveMatch(matched, or); res != matchUndecided {
			return res
		}
	}
	if subInstanceId := query.SubProcessInstanceId(); subInstanceId != "" {
		matched := false
		if subInstance, ok := s.lookupExecution(subInstanceId); ok && subInstance.SuperExecutionId != "" {
			if superExecution, ok := s.lookupExecution(subInstance.SuperExecutionId); ok {
				matched = superExecution.ProcessInstanceId == e.ProcessInstanceId
			}
		}
		if res := resolveMatch(matched, or); res != matchUndecided {
			return res
		}
	}
	return matchUndecided
}

func (s *ExecutionStore) checkActiveActivities(ctx context.Context, e *runtime.ExecutionEntity, query queryView) matchResult {
	activityIds := query.ActiveActivityIds()
	if len(activityIds) == 0 {
		return matchUndecided
	}
	matched := false
	if s.activities != nil {
		for _, activityId := range activityIds {
			count, err := s.activities.CountActivityInstances(ctx, e.ProcessInstanceId, activityId, true)
			if err == nil && count > 0 {
				matched = true
				break
			}
		}
	}
	return resolveMatch(matched, query.IsOrQuery())
}

func (s *ExecutionStore) checkEventSubscriptions(ctx context.Context, e *runtime.ExecutionEntity, query queryView) matchResult {
	values := query.EventSubscriptions()
	if len(values) == 0 {
		return matchUndecided
	}
	var subscriptions []runtime.EventSubscription
	if s.eventSubscriptions != nil {
		subscriptions, _ = s.eventSubscriptions.FindEventSubscriptionsByExecutionId(ctx, e.Id)
	}
	for _, value := range values {
		matched := false
		for _, subscription := range subscriptions {
			if subscription.EventName == value.EventName && subscription.EventType == value.EventType {
				matched = true
				break
			}
		}
		if res := resolveMatch(matched, query.IsOrQuery()); res != matchUndecided {
			return res
		}
	}
	return matchUndecided
}

func (s *ExecutionStore) checkJobException(ctx context.Context, e *runtime.ExecutionEntity, query queryView) matchResult {
	if !query.WithJobException() {
		return matchUndecided
	}
	matched := false
	if s.jobs != nil {
		jobs, _ := s.jobs.FindTimerJobsByProcessInstanceId(ctx, e.ProcessInstanceId)
		for _, job := range jobs {
			if job.HasException() {
				matched = true
				break
			}
		}
	}
	return resolveMatch(matched, query.IsOrQuery())
}

func (s *ExecutionStore) checkIdentityLinks(ctx context.Context, e *runtime.ExecutionEntity, query queryView) matchResult {
	or := query.IsOrQuery()
	involvedUser := query.InvolvedUser()
	involvedGroups := query.InvolvedGroups()
	if involvedUser == "" && len(involvedGroups) == 0 {
		return matchUndecided
	}
	var links []runtime.IdentityLink
	if s.identityLinks != nil {
		links, _ = s.identityLinks.FindIdentityLinksByProcessInstanceId(ctx, e.ProcessInstanceId)
	}
	if involvedUser != "" {
		matched := false
		for _, link := range links {
			if link.UserId == involvedUser {
				matched = true
				break
			}
		}
		if res := resolveMatch(matched, or); res != matchUndecided {
			return res
		}
	}
	if len(involvedGroups) > 0 {
		matched := false
		for _, link := range links {
			if link.GroupId != "" && slices.Contains(involvedGroups, link.GroupId) {
				matched = true
				break
			}
		}
		if res := resolveMatch(matched, or); res != matchUndecided {
			return res
		}
	}
	return matchUndecided
}

// checkVariables evaluates each variable predicate against the execution
// scoped or process-instance scoped variables of the candidate.
func (s *ExecutionStore) checkVariables(ctx context.Context, e *runtime.ExecutionEntity, query queryView) matchResult {
	values := query.QueryVariableValues()
	if len(values) == 0 {
		return matchUndecided
	}
	for _, value := range values {
		var variables []runtime.VariableInstance
		if s.variables != nil {
			if value.LocalScope {
				variables, _ = s.variables.FindVariablesByExecutionId(ctx, e.Id)
			} else {
				variables, _ = s.variables.FindVariablesByProcessInstanceId(ctx, e.ProcessInstanceId)
			}
		}
		matched := false
		for _, variable := range variables {
			if variable.Name == value.Name && value.Matches(variable.Value) {
				matched = true
				break
			}
		}
		if res := resolveMatch(matched, query.IsOrQuery()); res != matchUndecided {
			return res
		}
	}
	return matchUndecided
}
