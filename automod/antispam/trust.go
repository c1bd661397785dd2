package antispam

import (
	"time"
)

// SpamThreshold is the confirmed-spam score. A user whose accumulated score
// reaches it is removed; partial signals add up across messages.
const SpamThreshold uint8 = 100

const (
	scoreMediumRisk  = SpamThreshold / 2
	scoreUnknownRisk = SpamThreshold / 6
)

// TrustState is the per-user accumulated confidence that a user is not a
// spammer. It is either Authentic (terminal, earned by surviving the flood
// game) or a suspect score with creation/update timestamps. The zero value is
// not meaningful; use NewSuspect or Authentic.
type TrustState struct {
	Authentic bool  `json:"authentic,omitempty"`
	Score     uint8 `json:"score"`
	CreatedAt int64 `json:"createdAt,omitempty"`
	UpdatedAt int64 `json:"updatedAt,omitempty"`
}

func nowUnix() int64 {
	return time.Now().Unix()
}

// NewSuspect returns a suspect state carrying score, stamped now.
func NewSuspect(score uint8) TrustState {
	now := nowUnix()
	return TrustState{Score: score, CreatedAt: now, UpdatedAt: now}
}

// NewSpam returns a state already past the confirmed-spam threshold, used to
// replace a suspect score wholesale once spam is confirmed.
func NewSpam() TrustState {
	s := NewSuspect(0)
	s.Score = saturatingAdd(SpamThreshold, 1)
	return s
}

// Authentic is the terminal trusted state.
func AuthenticState() TrustState {
	return TrustState{Authentic: true}
}

func saturatingAdd(a, b uint8) uint8 {
	if sum := uint16(a) + uint16(b); sum <= 255 {
		return uint8(sum)
	}
	return 255
}

// Merge combines two states. Authentic absorbs everything; two suspect states
// sum their scores (saturating) and keep the widest timestamp span. The
// operation is commutative and associative, so merge order across signals and
// across racing writers does not matter.
func (s TrustState) Merge(other TrustState) TrustState {
	if s.Authentic || other.Authentic {
		return TrustState{Authentic: true}
	}
	return TrustState{
		Score:     saturatingAdd(s.Score, other.Score),
		CreatedAt: minNonZero(s.CreatedAt, other.CreatedAt),
		UpdatedAt: max(s.UpdatedAt, other.UpdatedAt),
	}
}

func minNonZero(a, b int64) int64 {
	if a == 0 {
		return b
	}
	if b == 0 {
		return a
	}
	return min(a, b)
}

// IsSpam reports whether the score reached the confirmed-spam threshold.
func (s TrustState) IsSpam() bool {
	return !s.Authentic && s.Score >= SpamThreshold
}

func (s TrustState) IsAuthentic() bool {
	return s.Authentic
}

// Age is the time since the user was first tracked.
func (s TrustState) Age(now time.Time) time.Duration {
	if s.Authentic || s.CreatedAt == 0 {
		return 0
	}
	return now.Sub(time.Unix(s.CreatedAt, 0))
}
