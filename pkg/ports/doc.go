/*
Package ports defines the driven ports (interfaces) for the Espalier
dispatch frame.

These interfaces decouple the pipeline core from external collaborators,
allowing the same controller to run behind different transports, session
stores, and view sources.

# Key Interfaces

  - LiveDispatcher: the controller surface adapters drive (mount, event dispatch, render).
  - StateStore: persisting and loading session State.
  - ViewResolver / View: mapping action names to renderable templates.
  - DistributedLocker: cross-replica serialization of session dispatch.
*/
package ports
