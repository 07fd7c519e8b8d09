package runtime

import "sync"

// VariableHolder keeps the local variables of one execution scope.
// Sibling branches of a parallel split run concurrently and may write distinct
// variables into the same scope at the same time, so access is guarded.
type VariableHolder struct {
	mu             sync.RWMutex
	parent         *VariableHolder
	localVariables map[string]interface{}
}

// NewVariableHolder creates a new VariableHolder with a given parent and localVariables map.
// If localVariables are not specified all parent localVariables are copied into current localVariables.
func NewVariableHolder(parent *VariableHolder, localVariables map[string]interface{}) *VariableHolder {
	if localVariables == nil {
		localVariables = make(map[string]interface{})
		if parent != nil {
			for k, v := range parent.LocalVariables() {
				localVariables[k] = v
			}
		}
	}

	return &VariableHolder{
		parent:         parent,
		localVariables: localVariables,
	}
}

// LocalVariables returns a copy of the local variables so that callers can
// iterate without holding the scope lock.
func (vh *VariableHolder) LocalVariables() map[string]interface{} {
	vh.mu.RLock()
	defer vh.mu.RUnlock()
	vars := make(map[string]interface{}, len(vh.localVariables))
	for k, v := range vh.localVariables {
		vars[k] = v
	}
	return vars
}

func (vh *VariableHolder) GetLocalVariable(key string) interface{} {
	vh.mu.RLock()
	defer vh.mu.RUnlock()
	if v, ok := vh.localVariables[key]; ok {
		return v
	}
	return nil
}

func (vh *VariableHolder) SetLocalVariable(key string, val interface{}) {
	vh.mu.Lock()
	defer vh.mu.Unlock()
	vh.localVariables[key] = val
}

func (vh *VariableHolder) DeleteLocalVariable(key string) {
	vh.mu.Lock()
	defer vh.mu.Unlock()
	delete(vh.localVariables, key)
}

func (vh *VariableHolder) SetLocalVariables(variables map[string]interface{}) {
	vh.mu.Lock()
	defer vh.mu.Unlock()
	for k, v := range variables {
		vh.localVariables[k] = v
	}
}

// PropagateVariable sets a value with given key to the parent VariableHolder
func (vh *VariableHolder) PropagateVariable(key string, value interface{}) {
	if vh.parent != nil {
		vh.parent.SetLocalVariable(key, value)
	}
}

// PropagateVariables sets values with given keys to the parent VariableHolder
func (vh *VariableHolder) PropagateVariables(variables map[string]interface{}) {
	if vh.parent != nil {
		vh.parent.SetLocalVariables(variables)
	}
}
