// Package domain contains core concepts of the chat system.
// This file defines participants and the unordered pair identifying a conversation.
// No runtime, network, or UI logic should be added here.
package domain

// Profile is the public face of a participant.
type Profile struct {
	ID          string
	DisplayName string
	Image       string
}

// Pair is an unordered set of two participants, normalized so that A <= B.
// Two pairs built from the same ids in any order are equal and usable as map keys.
type Pair struct {
	A string
	B string
}

func NewPair(x, y string) Pair {
	if y < x {
		x, y = y, x
	}
	return Pair{A: x, B: y}
}

func (p Pair) Key() string {
	return p.A + "|" + p.B
}

func (p Pair) Contains(id string) bool {
	return id != "" && (p.A == id || p.B == id)
}

// Other returns the participant that is not id, or "" when id is not part of the pair.
func (p Pair) Other(id string) string {
	switch id {
	case p.A:
		return p.B
	case p.B:
		return p.A
	default:
		return ""
	}
}
