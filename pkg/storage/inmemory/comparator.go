package inmemory

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/fluxbpm/fluxbpm/pkg/bpmn/runtime"
)

// executionComparator is a total order over executions; it returns a negative
// number when a sorts before b.
type executionComparator func(a, b *runtime.ExecutionEntity) int

type nullOrder int

const (
	nullsDefault nullOrder = iota
	nullsFirst
	nullsLast
)

type sortClause struct {
	column     string
	descending bool
	nulls      nullOrder
}

// comparatorCache resolves order-by specifications into comparators, keyed by
// the literal specification string. The specification vocabulary is small and
// finite in practice, so the cache never needs to evict for correctness.
type comparatorCache struct {
	cache *expirable.LRU[string, executionComparator]
}

func newComparatorCache(size int, ttl time.Duration) *comparatorCache {
	return &comparatorCache{
		cache: expirable.NewLRU[string, executionComparator](size, nil, ttl),
	}
}

// resolve returns nil for an empty specification; callers then skip sorting.
// A non-empty specification always yields a comparator, even when none of its
// columns is recognized: the id tie-break keeps pagination stable across
// repeated calls with the same inputs.
func (c *comparatorCache) resolve(orderBy string) executionComparator {
	if strings.TrimSpace(orderBy) == "" {
		return nil
	}
	if comparator, ok := c.cache.Get(orderBy); ok {
		return comparator
	}
	comparator := buildComparator(parseOrderBy(orderBy))
	c.cache.Add(orderBy, comparator)
	return comparator
}

// parseOrderBy splits "column [asc|desc] [nulls first|last]" clauses.
// Unrecognized columns are kept in the clause list and skipped during
// comparison; they must not fail the parse.
func parseOrderBy(orderBy string) []sortClause {
	clauses := make([]sortClause, 0, 2)
	for _, part := range strings.Split(orderBy, ",") {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		clause := sortClause{column: normalizeColumn(fields[0])}
		rest := strings.ToLower(strings.Join(fields[1:], " "))
		if strings.HasPrefix(rest, "desc") {
			clause.descending = true
		}
		switch {
		case strings.HasSuffix(rest, "nulls first"):
			clause.nulls = nullsFirst
		case strings.HasSuffix(rest, "nulls last"):
			clause.nulls = nullsLast
		}
		clauses = append(clauses, clause)
	}
	return clauses
}

// normalizeColumn tolerates the SQL-side spelling of a column reference,
// e.g. "RES.TENANT_ID_" for tenantId.
func normalizeColumn(column string) string {
	column = strings.ToLower(column)
	if idx := strings.LastIndex(column, "."); idx >= 0 {
		column = column[idx+1:]
	}
	column = strings.Trim(column, "_")
	return strings.ReplaceAll(column, "_", "")
}

func buildComparator(clauses []sortClause) executionComparator {
	return func(a, b *runtime.ExecutionEntity) int {
		for _, clause := range clauses {
			if cmp := compareByClause(a, b, clause); cmp != 0 {
				return cmp
			}
		}
		// deterministic final tie-break
		return strings.Compare(a.Id, b.Id)
	}
}

func compareByClause(a, b *runtime.ExecutionEntity, clause sortClause) int {
	switch clause.column {
	case "id":
		return compareStrings(a.Id, b.Id, clause)
	case "processinstanceid", "procinstid":
		return compareStrings(a.ProcessInstanceId, b.ProcessInstanceId, clause)
	case "processdefinitionid", "procdefid":
		return compareStrings(a.ProcessDefinitionId, b.ProcessDefinitionId, clause)
	case "processdefinitionkey", "procdefkey":
		return compareStrings(a.ProcessDefinitionKey, b.ProcessDefinitionKey, clause)
	case "tenantid":
		return compareStrings(a.TenantId, b.TenantId, clause)
	case "starttime", "start":
		return compareTimes(a.StartTime, b.StartTime, clause)
	case "name":
		return compareStrings(a.Name, b.Name, clause)
	case "businesskey":
		return compareStrings(a.BusinessKey, b.BusinessKey, clause)
	}
	// unrecognized column, not a contributor to ordering
	return 0
}

func compareStrings(a, b string, clause sortClause) int {
	if cmp, decided := compareNulls(a == "", b == "", clause); decided {
		return cmp
	}
	return applyDirection(strings.Compare(a, b), clause)
}

func compareTimes(a, b time.Time, clause sortClause) int {
	if cmp, decided := compareNulls(a.IsZero(), b.IsZero(), clause); decided {
		return cmp
	}
	return applyDirection(a.Compare(b), clause)
}

// compareNulls places absent values according to the clause's null policy.
// Explicit "nulls first"/"nulls last" is absolute; the default policy sorts
// absent values first in ascending order and is inverted by descending.
func compareNulls(aNull, bNull bool, clause sortClause) (int, bool) {
	if !aNull && !bNull {
		return 0, false
	}
	if aNull && bNull {
		return 0, true
	}
	cmp := 1
	if aNull {
		cmp = -1
	}
	switch clause.nulls {
	case nullsFirst:
		return cmp, true
	case nullsLast:
		return -cmp, true
	}
	return applyDirection(cmp, clause), true
}

func applyDirection(cmp int, clause sortClause) int {
	if clause.descending {
		return -cmp
	}
	return cmp
}
