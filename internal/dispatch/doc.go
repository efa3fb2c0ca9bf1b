// Package dispatch layers lease policy on top of the queue store.
//
// Ordering is FIFO within a stage by enqueue time. A reclaimed item is
// re-dated to its lapsed lease deadline, so it queues behind work that
// arrived while the lease was held rather than jumping back to the front.
// That keeps a flapping worker from starving newer jobs, at the cost that
// a repeatedly reclaimed item can itself wait arbitrarily long behind a
// steady stream of fresh work. Per-stage caps bound live leases, which is
// the only backpressure on downstream capability calls.
package dispatch
