// Package manager coordinates sessions across multiple MCP servers. It
// aggregates their tools into a single catalog namespaced by server label
// and routes qualified tool invocations to the owning session. Servers are
// isolated failure domains: one server's outage never affects another.
package manager
