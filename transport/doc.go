// Package transport defines the interfaces the Messenger core consumes to
// move per-friend packets across an encrypted, congestion-controlled
// connection. The core never speaks UDP, TCP, or any crypto handshake
// itself — that is the job of a net-crypto transport implementation living
// outside this module. Transport exists so the core can be driven and
// tested without one.
//
// A Conn represents one friend device's connection. Reliable sends return
// a packet number the caller polls with IsAcked; unreliable sends are
// fire-and-forget. FreeSendSlots and IsCongested let the file-transfer
// engine back off before the connection's queue fills up.
package transport
