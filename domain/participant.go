// Package domain contains core concepts of the salon messaging client.
// This file defines the Identity whose queues are subscribed to.
package domain

import "fmt"

// Identity is the locally authenticated principal, a user or a salon.
// Token is carried for the transport handshake and never compared.
type Identity struct {
	ID    int64
	Role  SenderType
	Token string
}

func (i Identity) IsZero() bool {
	return i.ID == 0 && i.Role == ""
}

// Same reports whether both identities denote the same principal.
func (i Identity) Same(other Identity) bool {
	return i.ID == other.ID && i.Role == other.Role
}

// Counterpart returns the sender type of the other side of a conversation.
func (i Identity) Counterpart() SenderType {
	if i.Role == SenderSalon {
		return SenderUser
	}
	return SenderSalon
}

func (i Identity) String() string {
	return fmt.Sprintf("%s:%d", i.Role, i.ID)
}
