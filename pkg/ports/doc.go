/*
Package ports defines the driven ports (interfaces) consumed by the conversation
engine and the financial aggregator.

These interfaces decouple the core logic from the external collaborators, allowing
the same engine to run against in-memory fakes, Redis, an HTTP gateway or a live
ledger node.

# Key Interfaces

  - Sender: delivers outbound text to an identity (transport gateway).
  - SessionStore: persists conversation sessions.
  - DistributedLocker: serializes one identity across replicas.
  - RecordStore / RateStore: identity records and the exchange-rate setting.
  - Ledger / LedgerIndex: contract reads and writes, and optional indexing methods.
*/
package ports
