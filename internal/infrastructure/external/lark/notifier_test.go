package lark

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sendCall struct {
	receiveIDType string
	receiveID     string
	msgType       string
	content       string
}

type fakeSender struct {
	calls []sendCall
	errs  []error
}

func (f *fakeSender) SendMessage(_ context.Context, receiveIDType, receiveID, msgType, content string) (string, error) {
	f.calls = append(f.calls, sendCall{receiveIDType, receiveID, msgType, content})
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return "", err
		}
	}
	return "om_123", nil
}

func TestNotifier_Notify(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(sender, zap.NewNop())

	err := n.Notify(context.Background(), "eve@acme.test", "Your expense \"Taxi\" was approved.\nThanks")
	require.NoError(t, err)

	require.Len(t, sender.calls, 1)
	call := sender.calls[0]
	assert.Equal(t, ReceiveIDTypeEmail, call.receiveIDType)
	assert.Equal(t, "eve@acme.test", call.receiveID)
	assert.Equal(t, "text", call.msgType)

	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(call.content), &body))
	assert.Equal(t, "Your expense \"Taxi\" was approved.\nThanks", body["text"])
}

func TestNotifier_RetriesTransportErrors(t *testing.T) {
	sender := &fakeSender{errs: []error{errors.New("connection reset"), nil}}
	n := NewNotifier(sender, zap.NewNop(), WithRetry(3, time.Millisecond))

	require.NoError(t, n.Notify(context.Background(), "eve@acme.test", "hello"))
	assert.Len(t, sender.calls, 2)
}

func TestNotifier_DoesNotRetryAPIErrors(t *testing.T) {
	sender := &fakeSender{errs: []error{&APIError{Code: 230013, Msg: "user not found"}}}
	n := NewNotifier(sender, zap.NewNop(), WithRetry(3, time.Millisecond))

	err := n.Notify(context.Background(), "ghost@acme.test", "hello")
	require.Error(t, err)
	assert.Len(t, sender.calls, 1)

	var apiErr *APIError
	assert.True(t, errors.As(err, &apiErr))
}

func TestNotifier_GivesUp(t *testing.T) {
	sender := &fakeSender{errs: []error{errors.New("first"), errors.New("second"), errors.New("third")}}
	n := NewNotifier(sender, zap.NewNop(), WithRetry(3, time.Millisecond))

	err := n.Notify(context.Background(), "eve@acme.test", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "third")
	assert.NotContains(t, err.Error(), "first")
	assert.Len(t, sender.calls, 3)
}

func TestNotifier_Validation(t *testing.T) {
	n := NewNotifier(&fakeSender{}, zap.NewNop())

	assert.Error(t, n.Notify(context.Background(), "", "hello"))
	assert.Error(t, n.Notify(context.Background(), "eve@acme.test", ""))
}
