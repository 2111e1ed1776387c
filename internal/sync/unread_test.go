package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/merchbot/console/internal/api"
)

func TestUnreadAggregatorRefreshesImmediately(t *testing.T) {
	transport := &fakeTransport{
		unreadFn: func(_ context.Context, resource api.UnreadResource) (int, error) {
			switch resource {
			case api.ResourceMessages:
				return 7, nil
			case api.ResourceRequests:
				return 2, nil
			}
			return 0, nil
		},
	}
	coord := newTestCoordinator(t, transport, nil)
	agg := NewUnreadAggregator(time.Hour, coord)

	if err := agg.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer agg.Stop()

	// The hour-long interval never fires inside the test; the values can only
	// come from the immediate first refresh.
	waitFor(t, time.Second, func() bool {
		unread := coord.Session().Unread()
		return unread.Messages == 7 && unread.Requests == 2
	})
}

func TestUnreadAggregatorPartialFailure(t *testing.T) {
	transport := &fakeTransport{
		unreadFn: func(_ context.Context, resource api.UnreadResource) (int, error) {
			if resource == api.ResourceMessages {
				return 0, &api.ServerError{Status: 500}
			}
			return 3, nil
		},
	}
	coord := newTestCoordinator(t, transport, nil)
	coord.session.setUnreadMessages(5)
	agg := NewUnreadAggregator(time.Hour, coord)

	if err := agg.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer agg.Stop()

	waitFor(t, time.Second, func() bool {
		return coord.Session().Unread().Requests == 3
	})

	// One counter failing leaves the other's last value intact.
	if got := coord.Session().Unread().Messages; got != 5 {
		t.Errorf("messages counter = %d, want untouched 5", got)
	}
}

func TestUnreadAggregatorSkipsWhenPollingDisabled(t *testing.T) {
	transport := &fakeTransport{}
	coord := newTestCoordinator(t, transport, nil)
	coord.session.setPolling(false)
	agg := NewUnreadAggregator(time.Hour, coord)

	if err := agg.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer agg.Stop()

	time.Sleep(50 * time.Millisecond)
	_, _, _, _, unreadCalls := transport.calls()
	if unreadCalls != 0 {
		t.Errorf("unread calls = %d with polling disabled", unreadCalls)
	}
}

func TestUnreadAggregatorStartStop(t *testing.T) {
	coord := newTestCoordinator(t, &fakeTransport{}, nil)
	agg := NewUnreadAggregator(time.Hour, coord)

	if err := agg.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !agg.IsRunning() {
		t.Error("IsRunning = false after Start")
	}
	if err := agg.Start(context.Background()); !errors.Is(err, ErrPollerAlreadyRunning) {
		t.Errorf("second Start: got %v", err)
	}
	if err := agg.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := agg.Stop(); !errors.Is(err, ErrPollerNotRunning) {
		t.Errorf("second Stop: got %v", err)
	}
}
