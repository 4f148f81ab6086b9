/*
Package observability provides the Prometheus collectors of the bot.

Metrics implements the observer interfaces of the finance and wallet packages and
the transition callback of the dialogue engine, so wiring it is a matter of
passing the same value to each component.
*/
package observability
