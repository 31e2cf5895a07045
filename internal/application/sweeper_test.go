package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nukk-pain/smpain-HR-sub013/internal/spreadsheet"
	"github.com/nukk-pain/smpain-HR-sub013/internal/testfixtures"
)

func TestSweeper_EvictsExpiredSessions(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(time.Time{})
	store := NewPreviewStore(PreviewStoreConfig{TTL: time.Minute, Now: clock.NowFunc()})
	if _, err := store.Stage(storeSession("tok-sweep", 1)); err != nil {
		t.Fatalf("Stage failed: %v", err)
	}
	clock.Advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		NewSweeper(store, time.Millisecond, nil).Run(ctx)
	}()

	deadline := time.After(5 * time.Second)
	for store.UsedBytes() != 0 {
		select {
		case <-deadline:
			t.Fatalf("sweeper never evicted the expired session")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("sweeper did not stop on cancellation")
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrNotFound, "not_found"},
		{ErrCapacityExceeded, "capacity_exceeded"},
		{ErrConflict, "conflict"},
		{ErrConfirmInProgress, "confirm_in_progress"},
		{ErrPersistenceFailure, "persistence_failure"},
		{spreadsheet.ErrTooLarge, "too_large"},
		{spreadsheet.ErrParse, "parse"},
		{&ValidationError{}, "validation"},
		{errors.New("boom"), "unexpected"},
	}
	for _, tc := range cases {
		if got := ErrorKind(tc.err); got != tc.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}

	// Wrapped sentinels keep their label.
	wrapped := fmt.Errorf("confirm: %w", ErrConfirmInProgress)
	if got := ErrorKind(wrapped); got != "confirm_in_progress" {
		t.Errorf("ErrorKind(wrapped) = %q, want confirm_in_progress", got)
	}
}
