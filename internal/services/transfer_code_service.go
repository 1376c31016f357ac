package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"

	"github.com/kitabpay/backend/internal/models"
	"github.com/kitabpay/backend/internal/store"
)

// TransferPayloadKind tags a scannable code as a wallet transfer target.
// Decoders reject any other kind so that codes from unrelated features
// cannot be pointed at the money path.
const TransferPayloadKind = "wallet_transfer"

// TransferPayload is the JSON carried inside a transfer QR code. It
// identifies the recipient only; the sender picks the amount after scanning.
type TransferPayload struct {
	Kind        string `json:"kind"`
	UserID      string `json:"userId"`
	Phone       string `json:"phone"`
	DisplayName string `json:"displayName,omitempty"`
}

// TransferCodeService renders and parses the QR codes users show each other
// to receive money. Rendered images are cached in Redis because the payload
// for a given user rarely changes.
type TransferCodeService struct {
	accounts store.AccountStore
	redis    *redis.Client
	cacheTTL time.Duration
}

func NewTransferCodeService(accounts store.AccountStore, redisClient *redis.Client, cacheTTL time.Duration) *TransferCodeService {
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &TransferCodeService{
		accounts: accounts,
		redis:    redisClient,
		cacheTTL: cacheTTL,
	}
}

// Generate returns the raw payload string and a base64 PNG of its QR code
// for the given user. The raw string is what Decode accepts back.
func (s *TransferCodeService) Generate(ctx context.Context, userID, displayName string) (string, string, error) {
	acc, err := s.accounts.GetAccount(ctx, userID)
	if err == store.ErrNotFound {
		return "", "", ErrAccountNotFound
	}
	if err != nil {
		return "", "", err
	}

	if displayName == "" {
		displayName = acc.DisplayName
	}
	payload := TransferPayload{
		Kind:        TransferPayloadKind,
		UserID:      acc.ID,
		Phone:       acc.Phone,
		DisplayName: displayName,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", "", err
	}

	if image, err := s.cachedImage(ctx, userID, raw); err == nil && image != "" {
		return string(raw), image, nil
	}

	qr, err := qrcode.New(string(raw), qrcode.Medium)
	if err != nil {
		return "", "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", "", err
	}
	image := base64.StdEncoding.EncodeToString(buf.Bytes())

	s.cacheImage(ctx, userID, raw, image)

	return string(raw), image, nil
}

// Decode parses a scanned payload into the recipient it names. It never
// touches balances.
func (s *TransferCodeService) Decode(raw string) (*TransferPayload, error) {
	var payload TransferPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, ErrMalformedPayload
	}
	if payload.Kind != TransferPayloadKind {
		return nil, ErrWrongPayloadKind
	}
	if payload.UserID == "" && payload.Phone == "" {
		return nil, ErrMalformedPayload
	}
	return &payload, nil
}

// Resolve finds the account a decoded payload points at, preferring the
// user id and falling back to the phone number.
func (s *TransferCodeService) Resolve(ctx context.Context, payload *TransferPayload) (*models.Account, error) {
	if payload.UserID != "" {
		acc, err := s.accounts.GetAccount(ctx, payload.UserID)
		if err == nil {
			return acc, nil
		}
		if err != store.ErrNotFound {
			return nil, err
		}
	}
	if payload.Phone != "" {
		acc, err := s.accounts.GetAccountByPhone(ctx, payload.Phone)
		if err == nil {
			return acc, nil
		}
		if err != store.ErrNotFound {
			return nil, err
		}
	}
	return nil, ErrRecipientNotFound
}

// Cache keys include a hash of the payload so a phone change invalidates the
// stored image naturally.
func (s *TransferCodeService) cacheKey(userID string, raw []byte) string {
	return fmt.Sprintf("transfer_code:%s:%s", userID, base64.RawURLEncoding.EncodeToString(raw))
}

func (s *TransferCodeService) cachedImage(ctx context.Context, userID string, raw []byte) (string, error) {
	if s.redis == nil {
		return "", nil
	}
	image, err := s.redis.Get(ctx, s.cacheKey(userID, raw)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return image, nil
}

func (s *TransferCodeService) cacheImage(ctx context.Context, userID string, raw []byte, image string) {
	if s.redis == nil {
		return
	}
	// Cache misses are harmless, so a failed Set is ignored.
	s.redis.Set(ctx, s.cacheKey(userID, raw), image, s.cacheTTL)
}
