package bc

import (
	"errors"
	"fmt"
	"io"
)

var (
	ErrTimeout           = errors.New("bc: timeout")
	ErrDisconnected      = errors.New("bc: disconnected")
	ErrAlreadySubscribed = errors.New("bc: already subscribed")
	ErrUnexpectedReply   = errors.New("bc: unexpected reply")
	ErrAuthFailed        = errors.New("bc: credentials rejected")
	ErrBadHeader         = errors.New("bc: wrong header")
	ErrTruncated         = fmt.Errorf("bc: truncated message: %w", io.ErrUnexpectedEOF)
	ErrReaderPanic       = errors.New("bc: reader panic")
)

// ReplyError - camera answered with something we don't understand
type ReplyError struct {
	Reply *Message
	Why   string
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("bc: unexpected reply to msg %d (code 0x%04x): %s", e.Reply.MsgID, e.Reply.ResponseCode, e.Why)
}

func (e *ReplyError) Unwrap() error {
	return ErrUnexpectedReply
}

// IsTerminal - errors that must not be retried with the same credentials
func IsTerminal(err error) bool {
	return errors.Is(err, ErrAuthFailed)
}
