package errors

import "fmt"

var (
	ErrWorkerPanic         = fmt.Errorf("worker panic")
	ErrListenerPanic       = fmt.Errorf("listener panic")
	ErrNotConnected        = fmt.Errorf("broker connection is not established")
	ErrNoIdentity          = fmt.Errorf("no identity is set")
	ErrHeartbeatMissed     = fmt.Errorf("no heart-beat received from broker")
	ErrBrokerError         = fmt.Errorf("broker sent an error frame")
	ErrUnexpectedFrame     = fmt.Errorf("unexpected frame")
	ErrUnknownSubscriber   = fmt.Errorf("frame for an unknown subscription")
	ErrInvalidPayload      = fmt.Errorf("invalid payload")
	ErrEmptyMessage        = fmt.Errorf("message has neither text nor photo")
	ErrInvalidMessage      = fmt.Errorf("invalid message")
	ErrNothingToTranslate  = fmt.Errorf("message has no text to translate")
	ErrNotAnImage          = fmt.Errorf("attachment is not an image")
	ErrBackend             = fmt.Errorf("backend request failed")
	ErrInvalidToken        = fmt.Errorf("invalid token")
	ErrUnknownNotification = fmt.Errorf("unknown notification")
)
