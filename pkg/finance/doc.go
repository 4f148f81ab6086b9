/*
Package finance implements the Financial Aggregator.

Every query resolves identities and wallet membership from the record store, fans
out concurrent reads against the ledger with bounded parallelism and merges the
answers into display-ready views. Nothing is cached: each call reflects the ledger
as read during that call.

Ledger amounts travel as *big.Int in the smallest native unit until they are
converted for display. Local-currency figures always round to two decimals using
the exchange rate in force at the start of the request.

Sub-queries that may fail independently report a Result carrying one of three
statuses (ok, failed, unsupported) so callers can degrade a single section of a
response instead of the whole answer.
*/
package finance
