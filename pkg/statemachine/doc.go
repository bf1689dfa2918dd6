// Package statemachine describes finite-state lifecycles as immutable
// transition tables.
//
// A Table maps (state, event) pairs to the next state. It holds no current
// state of its own, so one table can validate transitions for any number of
// records that share a lifecycle (every job, every worker) while the records
// keep their status in their own fields under their own locks.
//
// # Usage
//
//	type Status string
//	type Event string
//
//	lifecycle := statemachine.MustNewTable(
//		statemachine.Transition[Status, Event]{From: "pending", Event: "claim", To: "processing"},
//		statemachine.Transition[Status, Event]{From: "processing", Event: "complete", To: "completed"},
//	)
//
//	next, err := lifecycle.Next(job.Status, "claim")
//	if err != nil {
//		// statemachine.IsNoTransitionAvailableError(err) == true
//	}
//
// States without outgoing transitions are terminal; see Table.Terminal.
package statemachine
