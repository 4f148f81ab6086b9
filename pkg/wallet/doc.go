// Package wallet creates community wallets on the ledger and mirrors their
// membership into the record store.
//
// The ledger write is submitted once. The record-store fan-out that follows is
// not transactional, so it is idempotent (set semantics) and retried for the
// members whose write failed. Members still failing after the last attempt are
// returned in Result.Unlinked for the caller to report.
package wallet
