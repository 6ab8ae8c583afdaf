package doppler

import (
	"fmt"
	"strings"
)

// Direction is the relative motion inferred from Doppler asymmetry
type Direction int

const (
	Stationary Direction = iota
	Approaching
	Receding
)

func (d Direction) String() string {
	switch d {
	case Stationary:
		return "stationary"
	case Approaching:
		return "approaching"
	case Receding:
		return "receding"
	default:
		return "unknown"
	}
}

// MarshalText encodes the direction by name
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes a direction name
func (d *Direction) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "stationary":
		*d = Stationary
	case "approaching":
		*d = Approaching
	case "receding":
		*d = Receding
	default:
		return fmt.Errorf("unknown direction %q", text)
	}
	return nil
}

// VoteHistory is a fixed-length circular record of per-cycle directions.
// It starts full of Stationary votes.
type VoteHistory struct {
	votes []Direction
	next  int
}

// NewVoteHistory creates a history of n votes (n >= 1)
func NewVoteHistory(n int) *VoteHistory {
	if n < 1 {
		n = 1
	}
	return &VoteHistory{votes: make([]Direction, n)}
}

// Push records a vote, overwriting the oldest
func (h *VoteHistory) Push(d Direction) {
	h.votes[h.next] = d
	h.next = (h.next + 1) % len(h.votes)
}

// Majority returns the direction holding more than half of the votes, or
// Stationary when no direction does.
func (h *VoteHistory) Majority() Direction {
	var counts [3]int
	for _, v := range h.votes {
		if v >= Stationary && v <= Receding {
			counts[v]++
		}
	}
	for _, d := range []Direction{Approaching, Receding} {
		if counts[d]*2 > len(h.votes) {
			return d
		}
	}
	return Stationary
}

// Votes returns the votes oldest first
func (h *VoteHistory) Votes() []Direction {
	out := make([]Direction, 0, len(h.votes))
	out = append(out, h.votes[h.next:]...)
	return append(out, h.votes[:h.next]...)
}

// Len returns the history length
func (h *VoteHistory) Len() int {
	return len(h.votes)
}

// Reset refills the history with Stationary
func (h *VoteHistory) Reset() {
	for i := range h.votes {
		h.votes[i] = Stationary
	}
	h.next = 0
}
