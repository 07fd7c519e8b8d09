// Package storage contains the types and interfaces of the runtime state
// layer, so that different backends (in-memory, SQL) can be implemented
// against one contract.
//
// Implementations in this package must:
//   - return ErrNotFound if the method is looking for one exact item and it is not found
//   - return an empty slice for methods that can return multiple results and no result is found
package storage
