package chatview

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chatneto/internal/models"
)

func TestSendReconcilesPlaceholderWithConfirmedRow(t *testing.T) {
	f := newViewFixture()
	confirmed := models.Message{ID: 7, ChatID: 5, SenderID: 1, Text: "hi", CreatedAt: confirmedAt(t, 1)}
	f.messages.On("Append", mock.Anything, 5, 1, "hi").Return(confirmed, nil).Once()

	msg, err := f.view.Send(context.Background(), "  hi  ")
	require.NoError(t, err)
	assert.Equal(t, 7, msg.ID)

	msgs := f.view.Messages()
	require.Len(t, msgs, 1, "exactly one visible copy after reconciliation")
	assert.Equal(t, 7, msgs[0].ID)
	assert.Empty(t, msgs[0].TempID)
	assert.False(t, msgs[0].Sending)
	assert.False(t, msgs[0].Failed)
	f.messages.AssertExpectations(t)
}

func TestSendRejectsEmptyText(t *testing.T) {
	f := newViewFixture()

	_, err := f.view.Send(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, f.view.Messages())
}

func TestSendFailureKeepsPlaceholderVisible(t *testing.T) {
	f := newViewFixture()
	f.messages.On("Append", mock.Anything, 5, 1, "hi").Return(models.Message{}, assert.AnError).Once()

	_, err := f.view.Send(context.Background(), "hi")
	require.Error(t, err)

	msgs := f.view.Messages()
	require.Len(t, msgs, 1, "failed message is flagged, never removed")
	assert.True(t, msgs[0].Failed)
	assert.False(t, msgs[0].Sending)
	assert.NotEmpty(t, msgs[0].TempID)
	assert.Equal(t, "hi", msgs[0].Text)
}

func TestRetrySendRecoversFailedPlaceholder(t *testing.T) {
	f := newViewFixture()
	f.messages.On("Append", mock.Anything, 5, 1, "hi").Return(models.Message{}, assert.AnError).Once()

	_, err := f.view.Send(context.Background(), "hi")
	require.Error(t, err)
	tempID := f.view.Messages()[0].TempID

	confirmed := models.Message{ID: 9, ChatID: 5, SenderID: 1, Text: "hi", CreatedAt: confirmedAt(t, 2)}
	f.messages.On("Append", mock.Anything, 5, 1, "hi").Return(confirmed, nil).Once()

	msg, err := f.view.RetrySend(context.Background(), tempID)
	require.NoError(t, err)
	assert.Equal(t, 9, msg.ID)

	msgs := f.view.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, 9, msgs[0].ID)
	assert.False(t, msgs[0].Failed)
	f.messages.AssertExpectations(t)
}

func TestRetrySendRefusesClosedView(t *testing.T) {
	f := newViewFixture()
	f.messages.On("ListMessages", mock.Anything, 5).Return(([]models.Message)(nil), nil).Once()
	f.messages.On("Append", mock.Anything, 5, 1, "hi").Return(models.Message{}, assert.AnError).Once()

	require.NoError(t, f.view.Open(context.Background()))
	_, err := f.view.Send(context.Background(), "hi")
	require.Error(t, err)
	tempID := f.view.Messages()[0].TempID

	f.view.Close()

	_, err = f.view.RetrySend(context.Background(), tempID)
	assert.ErrorIs(t, err, ErrViewClosed)

	msgs := f.view.Messages()
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Failed, "placeholder state is untouched after teardown")
	assert.False(t, msgs[0].Sending)
	f.messages.AssertExpectations(t)
}

func TestRetrySendRejectsUnknownOrHealthyPlaceholder(t *testing.T) {
	f := newViewFixture()

	_, err := f.view.RetrySend(context.Background(), "no-such-temp")
	assert.Error(t, err)
}

func TestReconcileDropsRowAlreadyDeliveredByNotification(t *testing.T) {
	f := newViewFixture()
	v := f.view

	v.visible = append(v.visible, VisibleMessage{
		Message: models.Message{ChatID: 5, SenderID: 1, Text: "hi", CreatedAt: confirmedAt(t, 1)},
		TempID:  "tmp-1",
		Sending: true,
	})

	confirmed := models.Message{ID: 7, ChatID: 5, SenderID: 1, Text: "hi", CreatedAt: confirmedAt(t, 1)}
	v.applyRemote(confirmed)
	v.reconcile("tmp-1", confirmed)

	msgs := v.Messages()
	require.Len(t, msgs, 1, "notification and reconciliation collapse to one copy")
	assert.Equal(t, 7, msgs[0].ID)
	assert.Empty(t, msgs[0].TempID)
}
