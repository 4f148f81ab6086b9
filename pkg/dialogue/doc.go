// Package dialogue implements the conversation state machine.
//
// The Engine maps every domain.Step to a handler in a transition table. A handler
// receives the current turn (session, input, identity record), appends replies
// and moves the session to its next step. Handlers perform no transport I/O:
// callers send the returned replies and persist the session.
//
// Two rules apply before the table is consulted:
//
//   - An exit phrase closes the session from any step.
//   - In StepIdle the identity record decides between the registration prompt
//     and the main menu.
package dialogue
