/*
Package coperacha is a chat bot for community wallets ("coperachas").

Members talk to the bot over a messaging gateway. Each identity has a
conversation Session that walks a small state machine: registration, the main
menu, wallet creation and browsing existing wallets. Sessions are serialized per
identity and expire after a period of inactivity.

# Layout

  - pkg/session: the Session Registry, per-identity locking and inactivity expiry.
  - pkg/dialogue: the dialogue state machine and its messages.
  - pkg/finance: read-side aggregation of balances, proposals and contributions.
  - pkg/wallet: wallet creation against the ledger factory.
  - pkg/bot: the message handling service tying the above together.
  - pkg/adapters: redis, in-memory, EVM ledger, HTTP and console adapters.

The coperacha command (cmd/coperacha) serves the webhook and dashboard API,
runs a local console chat and administers sessions and the exchange rate.
*/
package coperacha
