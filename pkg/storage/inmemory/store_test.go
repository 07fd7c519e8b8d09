package inmemory_test

import (
	"testing"

	"github.com/fluxbpm/fluxbpm/internal/config"
	"github.com/fluxbpm/fluxbpm/pkg/storage"
	"github.com/fluxbpm/fluxbpm/pkg/storage/inmemory"
	"github.com/fluxbpm/fluxbpm/pkg/storage/storagetest"
)

func TestInMemoryExecutionStore(t *testing.T) {
	store, err := inmemory.NewExecutionStore(nil, config.Store{
		ComparatorCacheSize: 16,
	}, inmemory.Collaborators{
		Definitions: inmemory.NewDefinitionStore(),
	})
	if err != nil {
		t.Fatal(err)
	}
	var s storage.ExecutionStorage = store

	tester := storagetest.StoreTester{}

	tests := tester.GetTests()
	for name, testFunc := range tests {
		t.Run(name, testFunc(s, t))
	}
}
