// Package consistency validates data snapshots against registered rules,
// optionally auto-repairing failures and re-validating the repaired value.
//
// Automatic repairs are budgeted per rule; once a rule's budget is exhausted
// its failures stand for the process lifetime. RepairData offers a manual,
// non-budgeted repair path. Data types can implement Snapshotter to get
// copy-on-repair and restore-on-failed-repair semantics for in-place
// repairs.
package consistency
