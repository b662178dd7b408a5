// Package toolbox provides the tool registry and built-in tools consumed by
// the run loop.
//
// A Registry maps tool names to executable tools and satisfies the
// coordinator's dispatch contract. Built-in tools operate through an
// ExecutionEnvironment, which abstracts where file and command operations
// run; LocalEnvironment runs them on the local machine.
//
// Control tools (finish, think, delegate, and friends) are registered with
// schemas only; their run-control semantics live in the coordinator's
// dispatch strategies, and their executors here just echo arguments or hand
// off to a DelegateRunner.
package toolbox
