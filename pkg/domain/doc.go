/*
Package domain contains the core value types of the Espalier dispatch frame:
session State with its termination marker, the UnlessRedirected combinator,
untrusted Params, pipeline Outcomes and Envelopes, and the lifecycle hook
definitions used for observability.

Everything here is transport-agnostic and store-agnostic. State is immutable
by replacement: mutators return copies, so a pipeline step can never alias
the data of a previous step.
*/
package domain
