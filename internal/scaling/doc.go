// Package scaling computes desired worker-instance counts from queue depth.
//
// The policy is deterministic: depth above the scale-up threshold adds
// ScaleUpStep instances, depth at or below the scale-down threshold removes
// ScaleDownStep, and any non-zero depth with zero running instances forces at
// least one so the backlog never starves. A cooldown period gates every
// transition except the starvation guard.
//
// The policy only recommends counts; reconciling them against actually
// running processes belongs to the supervisor.
package scaling
