package jobqueue

import "github.com/dmitrymomot/jobengine/pkg/statemachine"

type jobEvent string

const (
	jobPromote   jobEvent = "promote"
	jobStart     jobEvent = "start"
	jobComplete  jobEvent = "complete"
	jobRetry     jobEvent = "retry"
	jobRequeue   jobEvent = "requeue"
	jobFail      jobEvent = "fail"
	jobBury      jobEvent = "bury"
	jobCancel    jobEvent = "cancel"
	jobReprocess jobEvent = "reprocess"
)

// jobLifecycle is the job state machine. COMPLETED and CANCELLED are terminal;
// FAILED and DEAD only leave through an explicit reprocess.
var jobLifecycle = statemachine.MustNewTable(
	statemachine.Transition[JobStatus, jobEvent]{From: JobQueued, Event: jobPromote, To: JobPending},
	statemachine.Transition[JobStatus, jobEvent]{From: JobPending, Event: jobStart, To: JobProcessing},
	statemachine.Transition[JobStatus, jobEvent]{From: JobProcessing, Event: jobComplete, To: JobCompleted},
	statemachine.Transition[JobStatus, jobEvent]{From: JobProcessing, Event: jobRetry, To: JobRetrying},
	statemachine.Transition[JobStatus, jobEvent]{From: JobRetrying, Event: jobRequeue, To: JobPending},
	statemachine.Transition[JobStatus, jobEvent]{From: JobProcessing, Event: jobFail, To: JobFailed},
	statemachine.Transition[JobStatus, jobEvent]{From: JobFailed, Event: jobBury, To: JobDead},
	statemachine.Transition[JobStatus, jobEvent]{From: JobPending, Event: jobCancel, To: JobCancelled},
	statemachine.Transition[JobStatus, jobEvent]{From: JobQueued, Event: jobCancel, To: JobCancelled},
	statemachine.Transition[JobStatus, jobEvent]{From: JobRetrying, Event: jobCancel, To: JobCancelled},
	statemachine.Transition[JobStatus, jobEvent]{From: JobFailed, Event: jobReprocess, To: JobPending},
	statemachine.Transition[JobStatus, jobEvent]{From: JobDead, Event: jobReprocess, To: JobPending},
)

type workerEvent string

const (
	workerAssign  workerEvent = "assign"
	workerRelease workerEvent = "release"
	workerStop    workerEvent = "stop"
	workerHalt    workerEvent = "halt"
	workerExpire  workerEvent = "expire"
)

// workerLifecycle is the worker state machine. STOPPED is terminal; a stopped
// worker must register again.
var workerLifecycle = statemachine.MustNewTable(
	statemachine.Transition[WorkerStatus, workerEvent]{From: WorkerIdle, Event: workerAssign, To: WorkerBusy},
	statemachine.Transition[WorkerStatus, workerEvent]{From: WorkerBusy, Event: workerAssign, To: WorkerBusy},
	statemachine.Transition[WorkerStatus, workerEvent]{From: WorkerIdle, Event: workerRelease, To: WorkerIdle},
	statemachine.Transition[WorkerStatus, workerEvent]{From: WorkerBusy, Event: workerRelease, To: WorkerIdle},
	statemachine.Transition[WorkerStatus, workerEvent]{From: WorkerIdle, Event: workerStop, To: WorkerStopping},
	statemachine.Transition[WorkerStatus, workerEvent]{From: WorkerBusy, Event: workerStop, To: WorkerStopping},
	statemachine.Transition[WorkerStatus, workerEvent]{From: WorkerStopping, Event: workerHalt, To: WorkerStopped},
	statemachine.Transition[WorkerStatus, workerEvent]{From: WorkerIdle, Event: workerExpire, To: WorkerStopped},
	statemachine.Transition[WorkerStatus, workerEvent]{From: WorkerBusy, Event: workerExpire, To: WorkerStopped},
	statemachine.Transition[WorkerStatus, workerEvent]{From: WorkerStopping, Event: workerExpire, To: WorkerStopped},
)

// advance fires ev on job and reports whether the transition exists.
func advance(job *Job, ev jobEvent) bool {
	next, err := jobLifecycle.Next(job.Status, ev)
	if err != nil {
		return false
	}
	job.Status = next
	return true
}
