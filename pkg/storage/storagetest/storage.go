package storagetest

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	stdruntime "runtime"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	bpmnruntime "github.com/fluxbpm/fluxbpm/pkg/bpmn/runtime"
	"github.com/fluxbpm/fluxbpm/pkg/storage"
)

// StoreTestFunc is one behavioral test of the ExecutionStorage contract,
// runnable against any implementation.
type StoreTestFunc func(s storage.ExecutionStorage, t *testing.T) func(t *testing.T)

type StoreTester struct {
}

func (st *StoreTester) GetTests() map[string]StoreTestFunc {
	tests := map[string]StoreTestFunc{}

	// all test functions need to be registered here
	functions := []StoreTestFunc{
		st.TestExecutionRoundTrip,
		st.TestExecutionQueryFilterSortPaginate,
		st.TestExecutionQuerySortStability,
		st.TestProcessInstanceQueryCount,
		st.TestTenantReassignment,
		st.TestProcessInstanceLockClaim,
		st.TestClearLocksByOwner,
		st.TestNativeQueryUnsupported,
	}

	for _, function := range functions {
		funcName := getFunctionName(function)
		strippedName := funcName[strings.LastIndex(funcName, ".")+1:]
		tests[strippedName] = function
	}
	return tests
}

func getFunctionName(i any) string {
	return stdruntime.FuncForPC(reflect.ValueOf(i).Pointer()).Name()
}

// newRootInstance builds a stored process instance with a unique tenant so
// suite runs against a shared store do not observe each other's data.
func newRootInstance(ctx context.Context, s storage.ExecutionStorage, t *testing.T, tenantId string, startTime time.Time) *bpmnruntime.ExecutionEntity {
	e := s.Create(ctx)
	e.ProcessInstanceId = e.Id
	e.RootProcessInstanceId = e.Id
	e.TenantId = tenantId
	e.StartTime = startTime
	e.IsActive = true
	err := s.Insert(ctx, e)
	assert.NoError(t, err)
	return e
}

func (st *StoreTester) TestExecutionRoundTrip(s storage.ExecutionStorage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		ctx := context.TODO()

		e := s.Create(ctx)
		assert.NotEmpty(t, e.Id)
		e.BusinessKey = uuid.NewString()
		err := s.Insert(ctx, e)
		assert.NoError(t, err)

		found, err := s.FindExecutionById(ctx, e.Id)
		assert.NoError(t, err)
		assert.Equal(t, e.BusinessKey, found.BusinessKey)
		// a stored root is its own process instance and tree
		assert.Equal(t, e.Id, found.ProcessInstanceId)
		assert.Equal(t, e.Id, found.RootProcessInstanceId)

		found.Name = "renamed"
		updated, err := s.Update(ctx, found)
		assert.NoError(t, err)
		assert.Equal(t, "renamed", updated.Name)

		err = s.Delete(ctx, e.Id)
		assert.NoError(t, err)
		_, err = s.FindExecutionById(ctx, e.Id)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	}
}

func (st *StoreTester) TestExecutionQueryFilterSortPaginate(s storage.ExecutionStorage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		ctx := context.TODO()
		tenantId := uuid.NewString()
		t1 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
		t2 := t1.Add(time.Hour)

		first := newRootInstance(ctx, s, t, tenantId, t1)
		second := newRootInstance(ctx, s, t, tenantId, t2)

		results, err := s.FindExecutionsByQueryCriteria(ctx, &storage.ExecutionQuery{
			TenantId: tenantId,
			OrderBy:  "startTime desc",
		})
		assert.NoError(t, err)
		assert.Len(t, results, 2)
		assert.Equal(t, second.Id, results[0].Id)
		assert.Equal(t, first.Id, results[1].Id)

		// count ignores pagination and equals the pre-slice match set size
		count, err := s.CountExecutionsByQueryCriteria(ctx, &storage.ExecutionQuery{
			TenantId:    tenantId,
			OrderBy:     "startTime desc",
			FirstResult: 1,
			MaxResults:  1,
		})
		assert.NoError(t, err)
		assert.Equal(t, int64(2), count)

		page, err := s.FindExecutionsByQueryCriteria(ctx, &storage.ExecutionQuery{
			TenantId:    tenantId,
			OrderBy:     "startTime desc",
			FirstResult: 1,
			MaxResults:  1,
		})
		assert.NoError(t, err)
		assert.Len(t, page, 1)
		assert.Equal(t, first.Id, page[0].Id)

		empty, err := s.FindExecutionsByQueryCriteria(ctx, &storage.ExecutionQuery{
			TenantId: uuid.NewString(),
		})
		assert.NoError(t, err)
		assert.Empty(t, empty)
		emptyCount, err := s.CountExecutionsByQueryCriteria(ctx, &storage.ExecutionQuery{
			TenantId: uuid.NewString(),
		})
		assert.NoError(t, err)
		assert.Equal(t, int64(0), emptyCount)
	}
}

func (st *StoreTester) TestExecutionQuerySortStability(s storage.ExecutionStorage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		ctx := context.TODO()
		tenantId := uuid.NewString()
		startTime := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

		// all entities tie on startTime, ordering falls back to ascending id
		for i := 0; i < 5; i++ {
			newRootInstance(ctx, s, t, tenantId, startTime)
		}
		query := &storage.ExecutionQuery{TenantId: tenantId, OrderBy: "startTime asc"}

		firstRun, err := s.FindExecutionsByQueryCriteria(ctx, query)
		assert.NoError(t, err)
		secondRun, err := s.FindExecutionsByQueryCriteria(ctx, query)
		assert.NoError(t, err)

		assert.Len(t, firstRun, 5)
		for i := range firstRun {
			assert.Equal(t, firstRun[i].Id, secondRun[i].Id)
			if i > 0 {
				assert.Less(t, firstRun[i-1].Id, firstRun[i].Id)
			}
		}
	}
}

func (st *StoreTester) TestProcessInstanceQueryCount(s storage.ExecutionStorage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		ctx := context.TODO()
		tenantId := uuid.NewString()
		root := newRootInstance(ctx, s, t, tenantId, time.Now())

		// a child execution of the same tree must not appear in instance results
		child := s.Create(ctx)
		child.ParentId = root.Id
		child.ProcessInstanceId = root.Id
		child.RootProcessInstanceId = root.Id
		child.TenantId = tenantId
		err := s.Insert(ctx, child)
		assert.NoError(t, err)

		instances, err := s.FindProcessInstancesByQueryCriteria(ctx, &storage.ProcessInstanceQuery{
			TenantId: tenantId,
		})
		assert.NoError(t, err)
		assert.Len(t, instances, 1)
		assert.Equal(t, root.Id, instances[0].Id)

		count, err := s.CountProcessInstancesByQueryCriteria(ctx, &storage.ProcessInstanceQuery{
			TenantId: tenantId,
		})
		assert.NoError(t, err)
		assert.Equal(t, int64(1), count)

		executionCount, err := s.CountExecutionsByQueryCriteria(ctx, &storage.ExecutionQuery{
			TenantId: tenantId,
		})
		assert.NoError(t, err)
		assert.Equal(t, int64(2), executionCount)
	}
}

func (st *StoreTester) TestTenantReassignment(s storage.ExecutionStorage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		ctx := context.TODO()
		deploymentId := uuid.NewString()
		migrated := newRootInstance(ctx, s, t, "acme", time.Now())
		migrated.DeploymentId = deploymentId
		_, err := s.Update(ctx, migrated)
		assert.NoError(t, err)

		untouched := newRootInstance(ctx, s, t, uuid.NewString(), time.Now())
		untouchedTenant := untouched.TenantId

		changed, err := s.UpdateExecutionTenantIdForDeployment(ctx, deploymentId, "globex")
		assert.NoError(t, err)
		assert.Equal(t, int64(1), changed)

		found, err := s.FindExecutionById(ctx, migrated.Id)
		assert.NoError(t, err)
		assert.Equal(t, "globex", found.TenantId)

		other, err := s.FindExecutionById(ctx, untouched.Id)
		assert.NoError(t, err)
		assert.Equal(t, untouchedTenant, other.TenantId)
	}
}

func (st *StoreTester) TestProcessInstanceLockClaim(s storage.ExecutionStorage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		ctx := context.TODO()
		root := newRootInstance(ctx, s, t, uuid.NewString(), time.Now())
		base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

		claimed, err := s.UpdateProcessInstanceLockTime(ctx, root.Id, base.Add(time.Minute), "worker-1", base)
		assert.NoError(t, err)
		assert.True(t, claimed)

		// the held lock expires after this claim's expiration, leave it untouched
		claimed, err = s.UpdateProcessInstanceLockTime(ctx, root.Id, base.Add(2*time.Minute), "worker-2", base.Add(30*time.Second))
		assert.NoError(t, err)
		assert.False(t, claimed)
		found, err := s.FindExecutionById(ctx, root.Id)
		assert.NoError(t, err)
		assert.Equal(t, "worker-1", found.LockOwner)

		// the held lock expires strictly before this claim's expiration
		claimed, err = s.UpdateProcessInstanceLockTime(ctx, root.Id, base.Add(10*time.Minute), "worker-2", base.Add(5*time.Minute))
		assert.NoError(t, err)
		assert.True(t, claimed)
		found, err = s.FindExecutionById(ctx, root.Id)
		assert.NoError(t, err)
		assert.Equal(t, "worker-2", found.LockOwner)

		err = s.ClearProcessInstanceLockTime(ctx, root.Id)
		assert.NoError(t, err)
		found, err = s.FindExecutionById(ctx, root.Id)
		assert.NoError(t, err)
		assert.Nil(t, found.LockTime)
		assert.Empty(t, found.LockOwner)

		_, err = s.UpdateProcessInstanceLockTime(ctx, uuid.NewString(), base, "worker-1", base)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	}
}

func (st *StoreTester) TestClearLocksByOwner(s storage.ExecutionStorage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		ctx := context.TODO()
		owner := uuid.NewString()
		base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

		first := newRootInstance(ctx, s, t, uuid.NewString(), time.Now())
		second := newRootInstance(ctx, s, t, uuid.NewString(), time.Now())
		for _, root := range []*bpmnruntime.ExecutionEntity{first, second} {
			claimed, err := s.UpdateProcessInstanceLockTime(ctx, root.Id, base.Add(time.Minute), owner, base)
			assert.NoError(t, err)
			assert.True(t, claimed)
		}

		err := s.ClearAllProcessInstanceLockTimes(ctx, owner)
		assert.NoError(t, err)

		for _, root := range []*bpmnruntime.ExecutionEntity{first, second} {
			found, err := s.FindExecutionById(ctx, root.Id)
			assert.NoError(t, err)
			assert.Nil(t, found.LockTime)
			assert.Empty(t, found.LockOwner)
		}
	}
}

func (st *StoreTester) TestNativeQueryUnsupported(s storage.ExecutionStorage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		ctx := context.TODO()

		_, err := s.FindExecutionsByNativeQuery(ctx, "SELECT * FROM ACT_RU_EXECUTION", nil)
		assert.Error(t, err)
		var unsupported *storage.UnsupportedOperationError
		assert.ErrorAs(t, err, &unsupported)

		_, err = s.CountExecutionsByNativeQuery(ctx, "SELECT count(*) FROM ACT_RU_EXECUTION", nil)
		assert.ErrorAs(t, err, &unsupported)
	}
}
