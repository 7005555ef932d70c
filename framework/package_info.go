// Package framework contains the low-level implementation of test harness infrastructure
// that can be reused for different kinds of tests against an HTTP backend.
//
// The general model is:
//
// 1. The harness talks to an already-running backend under test. Before any tests start, it
// waits for that backend to become reachable.
//
// 2. There is a general notion of a test context which is similar to Go's *testing.T,
// allowing pieces of test logic to be associated with a test identifier and to accumulate
// results. A test can pass, fail, or be skipped; a skip is its own outcome and never counts
// as a pass or a failure.
//
// 3. Long-running conditions, such as waiting for a crashed service to come back, are checked
// with a fixed-interval poll loop that gives up at a deadline.
//
// The domain-specific code that knows what is being tested is responsible for the requests to
// send, the assertions to make, and a domain-specific test API on top of the test context.
package framework
