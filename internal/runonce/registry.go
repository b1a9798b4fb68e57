// Package runonce implements the process-wide run-once identity registry:
// a mapping from a caller-supplied logical identity to the single task
// currently representing it. Two hosts (two Executor/Group instances) in
// the same process share this registry deliberately: run-once de-duplicates
// across the whole process, not per-executor.
package runonce

import "sync"

var registry sync.Map // string -> any (the canonical task)

// Register performs the admission check-and-set for identity id: if no
// task is currently registered for id, candidate becomes canonical and
// Register returns (candidate, true). If a task is already registered,
// Register returns (that task, false) so the caller can collapse into it.
func Register(id string, candidate any) (canonical any, inserted bool) {
	actual, loaded := registry.LoadOrStore(id, candidate)
	return actual, !loaded
}

// Remove clears the registry entry for id, but only if it still points at
// expected — this is what lets a finished task's cleanup race safely
// against a fresh submission of the same identity that already replaced
// the entry (failure semantics: a task that errors clears its slot, and
// any submission arriving after that is a fresh submission, not a
// collapse).
func Remove(id string, expected any) {
	registry.CompareAndDelete(id, expected)
}

// Lookup returns the task currently registered for id, if any.
func Lookup(id string) (canonical any, ok bool) {
	return registry.Load(id)
}
