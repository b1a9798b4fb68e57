// Package taskexec implements a priority-banded, cooperative task executor.
//
// Callers obtain a Task from an Executor or a Group, configure its priority,
// execution mode and run-once identity, and Submit it. A single-queue
// Executor drains its queue on one dedicated worker in descending priority
// order: tasks of equal priority start in submission order, and a task
// submitted with a higher priority is placed ahead of queued lower-priority
// tasks, so start order is not submission order when priorities differ. A
// Group routes submissions across three independently-worked bands (LOW,
// NORMAL, HIGH) with no cross-band ordering or stealing.
//
// The package intentionally does not persist queued work, coordinate across
// processes, or schedule by wall-clock time — see the design notes in
// DESIGN.md for the reasoning behind each omission.
package taskexec
