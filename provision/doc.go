// Package provision creates and deletes the durable generation-service
// resources an agent depends on: its knowledge store, its persistent chat
// template with retrieval configuration, and the transient per-conversation
// transcripts duplicated from the template.
//
// Every creation call is idempotent: the service answers "already exists"
// for repeated creates and the provisioner treats that as success, so a
// partially failed pipeline is safe to retry the next time the resource is
// needed. Creation runs in dependency order (store, then template, then
// retrieval configuration); the first failure stops the chain and is
// returned to the caller, which decides retry policy.
package provision
