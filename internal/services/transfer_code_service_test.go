package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitabpay/backend/internal/store"
)

func TestTransferCodeService_GenerateDecode(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	mem.SeedAccount("alice", "+998900000001", 0)
	svc := NewTransferCodeService(mem, nil, 0)

	t.Run("round trip", func(t *testing.T) {
		raw, image, err := svc.Generate(ctx, "alice", "Alice")
		require.NoError(t, err)
		assert.NotEmpty(t, raw)

		// Image is a base64 PNG.
		png, err := base64.StdEncoding.DecodeString(image)
		require.NoError(t, err)
		assert.Equal(t, []byte("\x89PNG"), png[:4])

		payload, err := svc.Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, TransferPayloadKind, payload.Kind)
		assert.Equal(t, "alice", payload.UserID)
		assert.Equal(t, "+998900000001", payload.Phone)
		assert.Equal(t, "Alice", payload.DisplayName)

		recipient, err := svc.Resolve(ctx, payload)
		require.NoError(t, err)
		assert.Equal(t, "alice", recipient.ID)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, _, err := svc.Generate(ctx, "ghost", "")
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})
}

func TestTransferCodeService_ImageCache(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	mem.SeedAccount("alice", "+998900000001", 0)

	raw, err := json.Marshal(TransferPayload{
		Kind:   TransferPayloadKind,
		UserID: "alice",
		Phone:  "+998900000001",
	})
	require.NoError(t, err)
	key := "transfer_code:alice:" + base64.RawURLEncoding.EncodeToString(raw)

	t.Run("cache hit skips rendering", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		svc := NewTransferCodeService(mem, client, time.Minute)

		mock.ExpectGet(key).SetVal("cached-image")

		gotRaw, image, err := svc.Generate(ctx, "alice", "")
		require.NoError(t, err)
		assert.Equal(t, string(raw), gotRaw)
		assert.Equal(t, "cached-image", image)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cache miss renders and stores", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		svc := NewTransferCodeService(mem, client, time.Minute)

		mock.ExpectGet(key).RedisNil()
		mock.Regexp().ExpectSet(key, `.+`, time.Minute).SetVal("OK")

		_, image, err := svc.Generate(ctx, "alice", "")
		require.NoError(t, err)
		assert.NotEqual(t, "cached-image", image)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransferCodeService_Decode(t *testing.T) {
	mem := store.NewMemoryStore()
	svc := NewTransferCodeService(mem, nil, 0)

	t.Run("malformed payload", func(t *testing.T) {
		_, err := svc.Decode("not json at all")
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})

	t.Run("wrong kind", func(t *testing.T) {
		_, err := svc.Decode(`{"kind":"coupon","userId":"alice"}`)
		assert.ErrorIs(t, err, ErrWrongPayloadKind)
	})

	t.Run("payload without any recipient identity", func(t *testing.T) {
		_, err := svc.Decode(`{"kind":"wallet_transfer"}`)
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})
}

func TestTransferCodeService_Resolve(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	mem.SeedAccount("alice", "+998900000001", 0)
	svc := NewTransferCodeService(mem, nil, 0)

	t.Run("falls back to phone when user id is stale", func(t *testing.T) {
		payload := &TransferPayload{Kind: TransferPayloadKind, UserID: "old-id", Phone: "+998900000001"}
		recipient, err := svc.Resolve(ctx, payload)
		require.NoError(t, err)
		assert.Equal(t, "alice", recipient.ID)
	})

	t.Run("nothing matches", func(t *testing.T) {
		payload := &TransferPayload{Kind: TransferPayloadKind, UserID: "old-id", Phone: "+998999999999"}
		_, err := svc.Resolve(ctx, payload)
		assert.ErrorIs(t, err, ErrRecipientNotFound)
	})
}
