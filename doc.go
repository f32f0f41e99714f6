// Package computeengine ships tasks to a remote compute service located
// through a naming registry and runs them there.
//
// A server process publishes a compute service under a well-known name; a
// client resolves that name and invokes tasks on the returned handle. The
// registry is always an explicit dependency so tests can pass an in-memory one.
package computeengine
