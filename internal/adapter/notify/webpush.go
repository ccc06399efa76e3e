package notify

import (
	"context"
	"encoding/json"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/atelierlabs/studio-portal/internal/cryptoutils"
)

// VAPIDConfig holds the web-push signing keys.
type VAPIDConfig struct {
	PublicKey  string
	PrivateKey string
	Contact    string
}

// SubscriptionEncKey is a base64-encoded AES-256 key used to encrypt
// subscription keys at rest. Empty stores them in plaintext.
type SubscriptionEncKey string

// WebPushSender delivers realtime notices to a user's registered browsers.
// Expired subscriptions are pruned on delivery.
type WebPushSender struct {
	db     *gorm.DB
	vapid  VAPIDConfig
	encKey string
	logger *zap.Logger
}

func NewWebPushSender(db *gorm.DB, vapid VAPIDConfig, encKey SubscriptionEncKey, logger *zap.Logger) *WebPushSender {
	return &WebPushSender{
		db:     db,
		vapid:  vapid,
		encKey: string(encKey),
		logger: logger.Named("webpush"),
	}
}

// SendToUser pushes payload to every subscription registered by userID.
func (s *WebPushSender) SendToUser(ctx context.Context, userID int64, payload any) {
	if s.vapid.PrivateKey == "" || s.vapid.PublicKey == "" {
		s.logger.Debug("vapid_keys_not_configured")
		return
	}

	var subs []PushSubscriptionModel
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&subs).Error; err != nil {
		s.logger.Error("push_subscriptions_load_failed", zap.Error(err), zap.Int64("user_id", userID))
		return
	}
	if len(subs) == 0 {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("push_payload_marshal_failed", zap.Error(err))
		return
	}

	for _, sub := range subs {
		s.sendToSubscription(ctx, sub, data)
	}
}

func (s *WebPushSender) sendToSubscription(ctx context.Context, sub PushSubscriptionModel, data []byte) {
	p256dh, auth, err := s.openKeys(sub)
	if err != nil {
		s.logger.Error("push_subscription_decrypt_failed", zap.Error(err), zap.Int64("id", sub.ID))
		return
	}

	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: p256dh,
			Auth:   auth,
		},
	}

	resp, err := webpush.SendNotification(data, wpSub, &webpush.Options{
		VAPIDPublicKey:  s.vapid.PublicKey,
		VAPIDPrivateKey: s.vapid.PrivateKey,
		Subscriber:      s.vapid.Contact,
		TTL:             86400,
	})
	if err != nil {
		s.logger.Warn("push_send_failed", zap.Error(err), zap.String("endpoint", sub.Endpoint))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		s.logger.Info("push_subscription_expired", zap.String("endpoint", sub.Endpoint))
		if err := s.db.WithContext(ctx).Delete(&PushSubscriptionModel{}, "id = ?", sub.ID).Error; err != nil {
			s.logger.Error("push_subscription_delete_failed", zap.Error(err), zap.Int64("id", sub.ID))
		}
		return
	}

	if resp.StatusCode >= 400 {
		s.logger.Warn("push_unexpected_status",
			zap.String("endpoint", sub.Endpoint),
			zap.Int("status", resp.StatusCode),
		)
	}
}

// SaveSubscription registers or refreshes a browser subscription. Upserts on
// the endpoint so re-registering rebinds the keys and owner in place.
func (s *WebPushSender) SaveSubscription(ctx context.Context, sub PushSubscriptionModel) error {
	p256dh, auth, err := s.sealKeys(sub)
	if err != nil {
		return err
	}
	model := PushSubscriptionModel{
		UserID:    sub.UserID,
		Endpoint:  sub.Endpoint,
		P256dhKey: p256dh,
		AuthKey:   auth,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.Assignments(map[string]any{
				"user_id":    sub.UserID,
				"p256dh_key": p256dh,
				"auth_key":   auth,
			}),
		}).
		Create(&model).Error
}

func (s *WebPushSender) sealKeys(sub PushSubscriptionModel) (string, string, error) {
	if s.encKey == "" {
		return sub.P256dhKey, sub.AuthKey, nil
	}
	p256dh, err := cryptoutils.Encrypt(sub.P256dhKey, s.encKey)
	if err != nil {
		return "", "", err
	}
	auth, err := cryptoutils.Encrypt(sub.AuthKey, s.encKey)
	if err != nil {
		return "", "", err
	}
	return p256dh, auth, nil
}

func (s *WebPushSender) openKeys(sub PushSubscriptionModel) (string, string, error) {
	if s.encKey == "" {
		return sub.P256dhKey, sub.AuthKey, nil
	}
	p256dh, err := cryptoutils.Decrypt(sub.P256dhKey, s.encKey)
	if err != nil {
		return "", "", err
	}
	auth, err := cryptoutils.Decrypt(sub.AuthKey, s.encKey)
	if err != nil {
		return "", "", err
	}
	return p256dh, auth, nil
}
