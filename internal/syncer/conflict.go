package syncer

import (
	"sync"
	"time"

	"github.com/dummy-intern104/invex-ai/internal/domain"
	"github.com/dummy-intern104/invex-ai/internal/xid"
)

type Decision string

const (
	DecisionAccepted   Decision = "accepted"
	DecisionDeclined   Decision = "declined"
	DecisionTimedOut   Decision = "timed_out"
	DecisionSuperseded Decision = "superseded"
)

// Conflict is a remote snapshot waiting for the user to accept or decline it.
// The first resolution wins; later calls report false.
type Conflict struct {
	ID              string          `json:"id"`
	Identity        string          `json:"identity"`
	Changed         []string        `json:"changed"`
	Local           domain.Snapshot `json:"local"`
	Remote          domain.Snapshot `json:"remote"`
	ServerTimestamp time.Time       `json:"server_timestamp"`
	RaisedAt        time.Time       `json:"raised_at"`

	once     sync.Once
	done     chan struct{}
	decision Decision
}

func newConflict(identity string, local domain.Snapshot, remote domain.Snapshot, serverTS time.Time, at time.Time) *Conflict {
	return &Conflict{
		ID:              xid.New("conflict"),
		Identity:        identity,
		Changed:         local.Diff(remote),
		Local:           local,
		Remote:          remote,
		ServerTimestamp: serverTS,
		RaisedAt:        at,
		done:            make(chan struct{}),
	}
}

func (c *Conflict) Accept() bool {
	return c.resolve(DecisionAccepted)
}

func (c *Conflict) Decline() bool {
	return c.resolve(DecisionDeclined)
}

func (c *Conflict) Done() <-chan struct{} {
	return c.done
}

// Decision is only meaningful once Done is closed.
func (c *Conflict) Decision() Decision {
	select {
	case <-c.done:
		return c.decision
	default:
		return ""
	}
}

func (c *Conflict) resolve(d Decision) bool {
	won := false
	c.once.Do(func() {
		c.decision = d
		close(c.done)
		won = true
	})
	return won
}
