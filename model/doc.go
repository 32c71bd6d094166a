// Package model defines the minimal language-model abstraction the agents
// are built on: a normalized single-turn Generate call with optional tool
// declarations, plus vendor adapters in subpackages (openai, anthropic) and
// a scriptable MockModel for tests.
//
// The engine deliberately does not prescribe a vendor: anything able to
// produce text and optionally request tool invocations satisfies Model.
package model
