package server

import (
	"time"

	"market-viewer/src/interfaces"
	"market-viewer/src/models"

	"golang.org/x/time/rate"
)

// Broadcaster receives view snapshots.
type Broadcaster interface {
	Broadcast(payload interface{})
}

// -----------------------------------------------------------------------------
// Publisher coalesces market changes into rate limited snapshots. It must be
// driven from the goroutine that owns the market; the trailing timer is
// scheduled on the same scheduler so the last change is always published.
// -----------------------------------------------------------------------------

type Publisher struct {
	limiter  *rate.Limiter
	interval time.Duration
	sched    interfaces.IScheduler
	now      func() time.Time
	build    func() *models.MViewMessage
	sink     Broadcaster
	trailing interfaces.ITimer
	sent     int
}

// NewPublisher allows at most perSecond snapshots per second. A nil now uses
// the wall clock.
func NewPublisher(perSecond float64, sched interfaces.IScheduler, now func() time.Time, build func() *models.MViewMessage, sink Broadcaster) *Publisher {
	if perSecond <= 0 {
		perSecond = 4
	}
	if now == nil {
		now = time.Now
	}
	return &Publisher{
		limiter:  rate.NewLimiter(rate.Limit(perSecond), 1),
		interval: time.Duration(float64(time.Second) / perSecond),
		sched:    sched,
		now:      now,
		build:    build,
		sink:     sink,
	}
}

// Notify records a change. Either a snapshot goes out right away or a single
// trailing publish is armed.
func (p *Publisher) Notify() {
	if p.limiter.AllowN(p.now(), 1) {
		if p.trailing != nil {
			p.trailing.Stop()
			p.trailing = nil
		}
		p.publish()
		return
	}
	if p.trailing != nil {
		return
	}
	p.trailing = p.sched.After(p.interval, func() {
		p.trailing = nil
		p.Notify()
	})
}

// Sent reports how many snapshots went out.
func (p *Publisher) Sent() int {
	return p.sent
}

// Stop cancels a pending trailing publish.
func (p *Publisher) Stop() {
	if p.trailing != nil {
		p.trailing.Stop()
		p.trailing = nil
	}
}

func (p *Publisher) publish() {
	msg := p.build()
	if msg == nil {
		return
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = p.now().UnixMilli()
	}
	p.sent++
	p.sink.Broadcast(msg)
}
