package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrapeflow-ai/scrapeflow/internal/types"
)

func TestConversationDAO_RoundTrip(t *testing.T) {
	dao := NewConversationDAO(openTestDB(t))
	ctx := context.Background()

	userID := types.NewID()
	conv := &Conversation{UserID: userID, Title: "scrape hacker news"}
	require.NoError(t, dao.CreateConversation(ctx, conv))
	assert.False(t, conv.ID.IsZero())
	assert.False(t, conv.CreatedAt.IsZero())

	got, err := dao.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, userID, got.UserID)
	assert.Equal(t, "scrape hacker news", got.Title)

	require.NoError(t, dao.UpdateConversationTitle(ctx, conv.ID, "renamed"))
	got, err = dao.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)

	require.NoError(t, dao.DeleteConversation(ctx, conv.ID))
	_, err = dao.GetConversation(ctx, conv.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConversationDAO_ListConversations(t *testing.T) {
	dao := NewConversationDAO(openTestDB(t))
	ctx := context.Background()

	alice := types.NewID()
	bob := types.NewID()
	for i := 0; i < 2; i++ {
		require.NoError(t, dao.CreateConversation(ctx, &Conversation{UserID: alice}))
	}
	require.NoError(t, dao.CreateConversation(ctx, &Conversation{UserID: bob}))

	mine, err := dao.ListConversations(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

func TestConversationDAO_Messages(t *testing.T) {
	dao := NewConversationDAO(openTestDB(t))
	ctx := context.Background()

	conv := &Conversation{UserID: types.NewID()}
	require.NoError(t, dao.CreateConversation(ctx, conv))

	base := time.Now().Add(-time.Minute)
	turns := []struct {
		role    MessageRole
		content string
	}{
		{RoleUser, "scrape the top stories"},
		{RoleAssistant, "here is a workflow"},
		{RoleUser, "add a csv export"},
	}
	for i, turn := range turns {
		require.NoError(t, dao.AppendMessage(ctx, &ConversationMessage{
			ConversationID: conv.ID,
			Role:           turn.role,
			Content:        turn.content,
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}))
	}

	msgs, err := dao.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, "scrape the top stories", msgs[0].Content)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.Equal(t, "add a csv export", msgs[2].Content)
}

func TestConversationDAO_DeleteCascadesMessages(t *testing.T) {
	dao := NewConversationDAO(openTestDB(t))
	ctx := context.Background()

	conv := &Conversation{UserID: types.NewID()}
	require.NoError(t, dao.CreateConversation(ctx, conv))
	require.NoError(t, dao.AppendMessage(ctx, &ConversationMessage{
		ConversationID: conv.ID, Role: RoleUser, Content: "hi",
	}))

	require.NoError(t, dao.DeleteConversation(ctx, conv.ID))

	msgs, err := dao.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestConversationDAO_AppendMessage_UnknownConversation(t *testing.T) {
	dao := NewConversationDAO(openTestDB(t))
	err := dao.AppendMessage(context.Background(), &ConversationMessage{
		ConversationID: types.NewID(), Role: RoleUser, Content: "orphan",
	})
	assert.Error(t, err)
}
