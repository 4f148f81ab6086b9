/*
Package domain contains the core models shared by the conversation engine and the
financial aggregation layer.

It is kept free of I/O and persistence concerns. Adapters translate between these
types and the external collaborators (transport gateway, record store, ledger).

# Key Entities

  - Step: the tagged state of a conversation (IDLE, ASK_REGISTRATION, ...).
  - Session: per-identity conversation snapshot (Step + TempData).
  - Record: the identity record owned by the external record store.
  - Draft: an in-progress community wallet, kept inside a Session.
  - Views: display-ready aggregates (balances, dashboard, contributions, proposals).
*/
package domain
