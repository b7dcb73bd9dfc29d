// Package world houses concrete implementations of core.WorldStore.
// The interface itself (and the entity records) live in the core package to
// centralize domain contracts; keeping only implementations here prevents
// higher level packages (lifecycle, consolidation) from depending on
// concrete storage.
//
// InMemoryStore is the canonical volatile arena for tests and demos;
// SQLiteStore persists the same records durably. Additional backends can be
// added without changing any calling code; only the wiring layer decides
// which implementation to instantiate.
package world
