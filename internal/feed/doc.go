// Package feed streams a hint event feed to panel clients over websockets
// and carries their commands back onto the instrumented tree.
//
// Outbound, every event becomes an Envelope {"type", "payload"} broadcast by
// a Hub to all subscribers. A subscriber whose buffer is full misses the
// event rather than stalling the tree. New subscribers first receive the
// hub's recent history so a late panel still sees scope creation.
//
// Inbound, a client sends Commands:
//
//	{"op": "observe",   "id": 2, "path": "cart.items"}
//	{"op": "unobserve", "id": 2, "path": "cart"}
//	{"op": "assign",    "id": 2, "path": "cart.total", "value": 12}
//	{"op": "inspect",   "id": 2}
//
// Commands are deferred onto the tree's tick loop; they never touch the tree
// from the connection goroutine.
package feed
