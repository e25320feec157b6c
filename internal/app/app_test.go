package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/chatcart/internal/config"
	"github.com/0xcro3dile/chatcart/internal/domain/entities"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.Path = t.TempDir()
	return cfg
}

func TestApp_CartOutlivesSessions(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	first, err := New(ctx, cfg, nil, "")
	require.NoError(t, err)
	first.Cart.AddItem(ctx, entities.Product{ID: "1", Name: "Laptop Pro X", Price: 1200})
	first.Chat.ReceiveAssistantReply(ctx, "hello", nil)
	require.NoError(t, first.Close(ctx))

	second, err := New(ctx, cfg, nil, "")
	require.NoError(t, err)
	defer second.Close(ctx)

	assert.Equal(t, 1, second.Cart.ItemCount(), "cart is device scoped")
	assert.Len(t, second.Chat.Messages(), 1, "a fresh session starts with the greeting")
	assert.NotEqual(t, first.SessionID, second.SessionID)
}

func TestApp_ResumeSession(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	id := "7f1c1b8e-4a4e-4bd4-9a5e-1f3f7b0e2c11"

	first, err := New(ctx, cfg, nil, id)
	require.NoError(t, err)
	first.Chat.ReceiveAssistantReply(ctx, "hello", nil)
	require.NoError(t, first.Close(ctx))

	second, err := New(ctx, cfg, nil, id)
	require.NoError(t, err)
	defer second.Close(ctx)

	assert.Len(t, second.Chat.Messages(), 2)
	ids, err := second.Sessions(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, id)
}

func TestApp_FreshSessionDroppedOnClose(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a, err := New(ctx, cfg, nil, "")
	require.NoError(t, err)
	a.Chat.ReceiveAssistantReply(ctx, "hello", nil)
	require.NoError(t, a.Close(ctx))

	b, err := New(ctx, cfg, nil, "")
	require.NoError(t, err)
	defer b.Close(ctx)
	ids, err := b.Sessions(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ids, a.SessionID)
}

func TestApp_InvalidSessionID(t *testing.T) {
	_, err := New(context.Background(), testConfig(t), nil, "not-a-uuid")
	assert.Error(t, err)
}

func TestApp_InMemoryWhenNoPath(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultConfig()
	cfg.Storage.Path = ""

	a, err := New(ctx, cfg, nil, "")
	require.NoError(t, err)
	defer a.Close(ctx)

	assert.Nil(t, a.Identity.Principal())
	assert.NoError(t, a.Watch(ctx), "static identity has nothing to watch")
	ids, err := a.Sessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
