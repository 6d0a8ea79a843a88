// Package tools implements the repository inspection capabilities made
// available to crew agents: recursive directory listing with an ignore
// list, and sandboxed file reads with a size cap and an in-memory cache.
package tools
