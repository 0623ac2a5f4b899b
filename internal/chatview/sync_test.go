package chatview

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chatneto/internal/models"
)

func TestApplyRemoteDropsDuplicateServerID(t *testing.T) {
	f := newViewFixture()
	msg := models.Message{ID: 5, ChatID: 5, SenderID: 2, Text: "once", CreatedAt: confirmedAt(t, 1)}

	f.view.applyRemote(msg)
	f.view.applyRemote(msg)
	f.view.applyRemote(msg)

	assert.Len(t, f.view.Messages(), 1)
}

func TestApplyRemoteIgnoresOtherChats(t *testing.T) {
	f := newViewFixture()

	f.view.applyRemote(models.Message{ID: 5, ChatID: 42, SenderID: 2, CreatedAt: confirmedAt(t, 1)})

	assert.Empty(t, f.view.Messages())
}

func TestApplyRemoteOrdersByServerCreation(t *testing.T) {
	f := newViewFixture()

	f.view.applyRemote(models.Message{ID: 3, ChatID: 5, SenderID: 2, CreatedAt: confirmedAt(t, 3)})
	f.view.applyRemote(models.Message{ID: 1, ChatID: 5, SenderID: 2, CreatedAt: confirmedAt(t, 1)})
	f.view.applyRemote(models.Message{ID: 2, ChatID: 5, SenderID: 2, CreatedAt: confirmedAt(t, 2)})

	msgs := f.view.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{msgs[0].ID, msgs[1].ID, msgs[2].ID})
}

func TestPollReplacesConfirmedStateWhenServerHasMore(t *testing.T) {
	f := newViewFixture()
	v := f.view

	v.sortedInsert(VisibleMessage{Message: models.Message{ID: 1, ChatID: 5, CreatedAt: confirmedAt(t, 1)}})
	v.visible = append(v.visible, VisibleMessage{
		Message: models.Message{ChatID: 5, SenderID: 1, Text: "pending", CreatedAt: confirmedAt(t, 9)},
		TempID:  "tmp-1",
		Sending: true,
	})

	f.messages.On("ListMessages", mock.Anything, 5).Return([]models.Message{
		{ID: 1, ChatID: 5, CreatedAt: confirmedAt(t, 1)},
		{ID: 2, ChatID: 5, CreatedAt: confirmedAt(t, 2)},
		{ID: 3, ChatID: 5, CreatedAt: confirmedAt(t, 3)},
	}, nil).Once()

	v.poll(context.Background())

	msgs := v.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, []int{1, 2, 3}, []int{msgs[0].ID, msgs[1].ID, msgs[2].ID}, "server order wins on refresh")
	assert.Equal(t, "tmp-1", msgs[3].TempID, "optimistic entry survives the refresh")
	f.messages.AssertExpectations(t)
}

func TestPollKeepsStateWhenCountUnchanged(t *testing.T) {
	f := newViewFixture()
	v := f.view

	v.sortedInsert(VisibleMessage{Message: models.Message{ID: 1, ChatID: 5, Text: "local", CreatedAt: confirmedAt(t, 1)}})

	f.messages.On("ListMessages", mock.Anything, 5).Return([]models.Message{
		{ID: 1, ChatID: 5, Text: "server", CreatedAt: confirmedAt(t, 1)},
	}, nil).Once()

	v.poll(context.Background())

	msgs := v.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "local", msgs[0].Text, "equal counts are treated as no change")
}

func TestPollSwallowsFetchErrors(t *testing.T) {
	f := newViewFixture()
	v := f.view

	v.sortedInsert(VisibleMessage{Message: models.Message{ID: 1, ChatID: 5, CreatedAt: confirmedAt(t, 1)}})
	f.messages.On("ListMessages", mock.Anything, 5).Return(([]models.Message)(nil), assert.AnError).Once()

	v.poll(context.Background())

	assert.Len(t, v.Messages(), 1)
}
