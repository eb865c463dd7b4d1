// Package ports holds the interfaces the workflow engine depends on:
// submission and workflow storage, the deadline scheduler, and event
// publishing. Infrastructure adapters implement them; tests substitute
// in-memory versions.
package ports
