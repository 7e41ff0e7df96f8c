// Package cluster holds the plain data types that cross the boundary
// between the coordinator and its host (see internal/coordinator's
// external interface): actor liveness and contents, and reassembled
// artifact content. These types carry no behavior and no network
// framing — the coordinator and its storage actors talk over Go channels,
// not over the wire. The types carry json tags so a host can serialize
// them; no non-test code in this repository does.
package cluster
