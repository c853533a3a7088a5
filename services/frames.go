package services

import (
	"context"
	"encoding/json"
	"fmt"
	"salon-sync/contract"
	"salon-sync/domain/event"
	"salon-sync/errors"
	"salon-sync/infrastructure/wire"
	"salon-sync/runtime"
)

// Frame handlers turn broker payloads into bus events. A payload that does
// not decode is returned as an error; the registry logs and drops it.

func messageHandler(emitter contract.Emitter) runtime.Handler {
	return func(ctx context.Context, f contract.Frame) error {
		var payload wire.Message
		if err := json.Unmarshal(f.Body, &payload); err != nil {
			return fmt.Errorf("%w: message: %v", errors.ErrInvalidPayload, err)
		}
		m, err := wire.ToMessage(payload)
		if err != nil {
			return fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
		}
		emitter.Emit(ctx, event.MessageReceived{Message: m})
		return nil
	}
}

func readReceiptHandler(emitter contract.Emitter) runtime.Handler {
	return func(ctx context.Context, f contract.Frame) error {
		var payload wire.ReadReceipt
		if err := json.Unmarshal(f.Body, &payload); err != nil {
			return fmt.Errorf("%w: read receipt: %v", errors.ErrInvalidPayload, err)
		}
		room, reader, at, err := wire.ToReadReceipt(payload)
		if err != nil {
			return fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
		}
		emitter.Emit(ctx, event.MessageRead{Room: room, Reader: reader, At: at})
		return nil
	}
}

func notificationHandler(emitter contract.Emitter) runtime.Handler {
	return func(ctx context.Context, f contract.Frame) error {
		var payload wire.Notification
		if err := json.Unmarshal(f.Body, &payload); err != nil {
			return fmt.Errorf("%w: notification: %v", errors.ErrInvalidPayload, err)
		}
		if payload.ID == 0 {
			return fmt.Errorf("%w: notification without id", errors.ErrInvalidPayload)
		}
		emitter.Emit(ctx, event.NotificationReceived{Notification: wire.ToNotification(payload)})
		return nil
	}
}
