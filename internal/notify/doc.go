// Package notify delivers verification codes out of band.
//
// The identity service hands a VerificationEmail to a Notifier, which queues
// it and returns immediately. A fixed pool of workers drains the queue and
// passes each message to a Sender under its own timeout. Failures are
// logged and counted, never reported back to the caller, and not retried.
//
// Senders:
//
//   - SMTPSender renders the message and delivers it over SMTP.
//   - MailboxSender writes the rendered message into an object storage
//     bucket, for environments without a mail relay.
//   - BrokerSender publishes the message to a broker channel; the worker
//     command consumes it with Relay and delivers it with one of the above.
//   - ConsoleSender prints the rendered message, for local development.
package notify
