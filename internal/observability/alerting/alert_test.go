package alerting

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	xerrors "Attest-Resolver/internal/errors"
	"Attest-Resolver/pkg/logger"
)

func TestFanoutDispatchesToEveryChannel(t *testing.T) {
	var got []Event
	capture := FuncNotifier(func(_ context.Context, event Event) error {
		got = append(got, event)
		return nil
	})
	dispatcher := NewFanout(&LogNotifier{Logger: logger.Discard()}, capture, nil)

	err := xerrors.New(xerrors.CodeNotAuthorized, "调用方不是管理员", xerrors.WithMetadata("caller", "0x02"))
	event := FromError(common.HexToAddress("0x01"), "set_reward_amount", []common.Address{common.HexToAddress("0x02")}, err)
	if notifyErr := dispatcher.Notify(context.Background(), event); notifyErr != nil {
		t.Fatalf("notify: %v", notifyErr)
	}
	if len(got) != 1 {
		t.Fatalf("expected one captured alert, got %d", len(got))
	}
	if got[0].Code != xerrors.CodeNotAuthorized || got[0].Severity != xerrors.SeverityWarning {
		t.Fatalf("unexpected alert: %+v", got[0])
	}
	if got[0].Metadata["caller"] != "0x02" {
		t.Fatalf("metadata not propagated: %+v", got[0].Metadata)
	}
}

func TestFanoutJoinsErrors(t *testing.T) {
	failing := FuncNotifier(func(context.Context, Event) error { return errors.New("webhook down") })
	err := NewFanout(failing).Notify(context.Background(), Event{})
	if err == nil {
		t.Fatalf("expected notifier error to surface")
	}
	var nilDispatcher *FanoutDispatcher
	if err := nilDispatcher.Notify(context.Background(), Event{}); err != nil {
		t.Fatalf("nil dispatcher should be a no-op: %v", err)
	}
}
