// Package bot connects the transport to the dialogue engine.
//
// Service.Handle processes one inbound message inside the identity's critical
// section: rate limit, session load, engine turn, reply delivery, persistence.
// Service.Run consumes an inbound stream with one mailbox goroutine per active
// identity, so identities proceed in parallel while each identity's messages
// are handled in arrival order.
package bot
