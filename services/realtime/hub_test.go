package realtime

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gabrielfriasw/srf-escolas-sub000/core"
)

func evt(table, sessionID string) core.ChangeEvent {
	return core.ChangeEvent{Table: table, Op: core.OpInsert, SessionID: sessionID, At: time.Now().UTC()}
}

// drain returns what is buffered in the subscription without blocking.
func drain(sub *Subscription) []core.ChangeEvent {
	var got []core.ChangeEvent
	for {
		select {
		case e, ok := <-sub.Events():
			if !ok {
				return got
			}
			got = append(got, e)
		default:
			return got
		}
	}
}

func TestHub_filters(t *testing.T) {
	hub := NewHub(nil)

	all := hub.Subscribe(Filter{})
	defer all.Close()
	seating := hub.Subscribe(Filter{Tables: []string{core.TableExamSeating}})
	defer seating.Close()
	s1 := hub.Subscribe(Filter{SessionID: "s1"})
	defer s1.Close()
	s1Attendance := hub.Subscribe(Filter{Tables: []string{core.TableExamAttendance}, SessionID: "s1"})
	defer s1Attendance.Close()

	hub.Publish(evt(core.TableExamSessions, "s1"))
	hub.Publish(evt(core.TableExamSeating, "s2"))
	hub.Publish(evt(core.TableExamAttendance, "s1"))
	hub.Publish(evt(core.TableExamAttendance, "s2"))

	tables := func(evts []core.ChangeEvent) []string {
		out := make([]string, 0, len(evts))
		for _, e := range evts {
			out = append(out, e.Table+"@"+e.SessionID)
		}
		return out
	}

	tests := []struct {
		name string
		sub  *Subscription
		want []string
	}{
		{name: "everything", sub: all, want: []string{
			"exam_sessions@s1", "exam_seating@s2", "exam_attendance@s1", "exam_attendance@s2",
		}},
		{name: "by table", sub: seating, want: []string{"exam_seating@s2"}},
		{name: "by session", sub: s1, want: []string{"exam_sessions@s1", "exam_attendance@s1"}},
		{name: "by table and session", sub: s1Attendance, want: []string{"exam_attendance@s1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tables(drain(tt.sub)))
		})
	}
}

func TestHub_slowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub(nil)
	slow := hub.Subscribe(Filter{})
	defer slow.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < defaultBufferSize*2; i++ {
			hub.Publish(evt(core.TableExamSessions, "s1"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish() blocked on a full subscriber")
	}
	assert.Len(t, drain(slow), defaultBufferSize)
}

func TestSubscription_Close(t *testing.T) {
	hub := NewHub(nil)
	sub := hub.Subscribe(Filter{})
	assert.Equal(t, 1, hub.Len())

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, hub.Len())

	_, ok := <-sub.Events()
	assert.False(t, ok, "Events() must be closed")

	// publishing after close is fine
	hub.Publish(evt(core.TableExamSessions, "s1"))
}

func TestHub_concurrentUse(t *testing.T) {
	hub := NewHub(nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub := hub.Subscribe(Filter{})
			drain(sub)
			sub.Close()
		}()
		go func() {
			defer wg.Done()
			hub.Publish(evt(core.TableExamSeating, "s1"))
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, hub.Len())
}
