// Package resource provides handle tables that map small integers to Go values.
//
// Values that cannot cross a native boundary directly (Go closures, VM
// pointers) are stored in a Table and referred to by Handle instead. The
// engine side carries only the integer; the host resolves it at call time.
//
//	table := resource.NewTable[HostFunction]()
//
//	// Insert a value, get a handle
//	h, err := table.Insert(fn)
//
//	// Retrieve value by handle
//	fn, ok := table.Get(h)
//
//	// Remove an entry
//	fn, ok = table.Remove(h)
//
// # Handle Allocation
//
// Handles increase monotonically starting at 1 and are never reused, even
// after Remove. Handle 0 is always invalid.
//
// # Observers
//
// Register observers to track lifecycle events:
//
//	table.Subscribe(observer)
//
// Observers receive EventCreated on Insert and EventDropped on Remove, Clear
// and Close. Values implementing Dropper have Drop called when removed.
//
// Tables are not safe for concurrent use. Each table belongs to a single VM,
// which is itself single threaded.
package resource
