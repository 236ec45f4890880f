/*
Package session hosts controllers: it owns the persisted state of each live
session and guarantees that the mount and every event of a session are
dispatched one at a time, in arrival order.

The Manager pairs an in-process reference-counted lock per session with an
optional distributed locker for multi-replica deployments. Handlers never
see this layer; they only see the state the Manager loads and saves around
each pipeline run.
*/
package session
