package server

import (
	"testing"
	"time"

	"market-viewer/src/models"
	"market-viewer/src/testutil"

	"github.com/stretchr/testify/assert"
)

type sinkRecorder struct {
	msgs []*models.MViewMessage
}

func (s *sinkRecorder) Broadcast(payload interface{}) {
	s.msgs = append(s.msgs, payload.(*models.MViewMessage))
}

func newTestPublisher(sched *testutil.ManualScheduler, sink *sinkRecorder, builds *int) *Publisher {
	return NewPublisher(4, sched, sched.Now, func() *models.MViewMessage {
		*builds++
		return &models.MViewMessage{Status: "Verbunden"}
	}, sink)
}

func TestPublisherSendsFirstChangeImmediately(t *testing.T) {
	sched := testutil.NewManualScheduler()
	sink := &sinkRecorder{}
	builds := 0
	p := newTestPublisher(sched, sink, &builds)

	p.Notify()
	assert.Len(t, sink.msgs, 1)
	assert.Equal(t, sched.Now().UnixMilli(), sink.msgs[0].Timestamp)
	assert.Equal(t, 0, sched.Pending())
}

func TestPublisherCoalescesBurstIntoTrailingSnapshot(t *testing.T) {
	sched := testutil.NewManualScheduler()
	sink := &sinkRecorder{}
	builds := 0
	p := newTestPublisher(sched, sink, &builds)

	for i := 0; i < 10; i++ {
		p.Notify()
	}
	assert.Len(t, sink.msgs, 1)
	assert.Equal(t, 1, sched.Pending())

	sched.Advance(250 * time.Millisecond)
	assert.Len(t, sink.msgs, 2)
	assert.Equal(t, 2, builds)
	assert.Equal(t, 2, p.Sent())
	assert.Equal(t, 0, sched.Pending())
}

func TestPublisherStopCancelsTrailing(t *testing.T) {
	sched := testutil.NewManualScheduler()
	sink := &sinkRecorder{}
	builds := 0
	p := newTestPublisher(sched, sink, &builds)

	p.Notify()
	p.Notify()
	p.Stop()
	sched.Advance(time.Second)
	assert.Len(t, sink.msgs, 1)
}
