// Package jobs tracks background pipeline runs for the HTTP shell.
//
// A Registry owns every job for the life of the process. Each job moves
// through queued, running and one of completed, failed or cancelled; the
// terminal states are final, so a task finishing after its job was
// cancelled cannot overwrite the cancellation.
//
// Cancellation is cooperative. Cancel flips the job's Token, which the task
// polls between units, then kills whatever the task registered in the
// ProcessTable as a best-effort escalation.
package jobs
