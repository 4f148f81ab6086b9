/*
Package session implements the Session Registry.

The Registry is the only shared mutable structure of the bot. It serializes every
operation on one identity (message handling and inactivity expiry alike) behind a
reference-counted per-identity lock, optionally extended across replicas with a
DistributedLocker, while different identities proceed in parallel.

Inactivity expiry is a cancellable task armed at the end of every turn. A turn that
starts cancels the pending task inside the same critical section, and a task that
fired concurrently checks its generation before acting, so "message arrives" and
"timer fires" can never both win.
*/
package session
