package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"solace.app/companion/internal/store"
)

const (
	// onboardingReply is sent to phone numbers with no account on record.
	// No user is created implicitly.
	onboardingReply = "Hi! I'm your AI companion, but I don't recognize this number yet. Create an account in the app and link your phone under WhatsApp settings, then message me again."

	welfareCheckTemplate = "Hi %s! 👋 Just checking in to see how you're doing. I haven't heard from you in a little while - is everything okay? Reply whenever you like, I'm here for you."
)

// Notifier delivers an outbound message through the messaging gateway.
type Notifier interface {
	Send(ctx context.Context, phoneNumber, message string) error
}

// WelfareSetup carries the fields of a welfare-settings upsert.
type WelfareSetup struct {
	PhoneNumber          string
	DailyMorningMessage  bool
	MorningTime          string
	WelfareCheckDays     int
	CustomMorningMessage *string
}

// WelfareService handles the WhatsApp channel: inbound message turns,
// welfare-settings setup and manually triggered welfare checks.
type WelfareService struct {
	dbStore   *store.SQLiteStore
	companion *CompanionService
	notifier  Notifier
	logger    *zap.Logger
}

func NewWelfareService(db *store.SQLiteStore, companion *CompanionService, notifier Notifier, logger *zap.Logger) *WelfareService {
	return &WelfareService{
		dbStore:   db,
		companion: companion,
		notifier:  notifier,
		logger:    logger,
	}
}

// whatsAppSessionID derives the single session shared by all WhatsApp turns
// of a user.
func whatsAppSessionID(userID string) string {
	return "whatsapp-" + userID
}

// ProcessIncoming handles one inbound WhatsApp message and returns the reply
// to hand back to the gateway. Unknown numbers get the fixed onboarding
// reply and no account.
func (s *WelfareService) ProcessIncoming(ctx context.Context, phoneNumber, message string) (string, error) {
	user, err := s.dbStore.GetUserByPhoneNumber(phoneNumber)
	if err != nil {
		return "", err
	}
	if user == nil {
		return onboardingReply, nil
	}

	if err := s.dbStore.TouchWelfareActivity(phoneNumber, time.Now().UTC()); err != nil {
		s.logger.Warn("Failed to refresh welfare activity", zap.String("phone", phoneNumber), zap.Error(err))
	}

	sessionID := whatsAppSessionID(user.ID)
	systemPrompt := BuildWhatsAppPrompt(user.PersonalityProfile)

	reply, _, err := s.companion.turn(ctx, user, message, sessionID, systemPrompt)
	if err != nil {
		return "", err
	}
	return reply, nil
}

// Setup upserts the user's welfare settings keyed by phone number and
// records the phone number on the user.
func (s *WelfareService) Setup(user *store.User, setup WelfareSetup) (*store.WelfareSettings, error) {
	ws := &store.WelfareSettings{
		UserID:               user.ID,
		PhoneNumber:          setup.PhoneNumber,
		Enabled:              true,
		DailyMorningMessage:  setup.DailyMorningMessage,
		MorningTime:          setup.MorningTime,
		WelfareCheckDays:     setup.WelfareCheckDays,
		CustomMorningMessage: setup.CustomMorningMessage,
		LastActivity:         time.Now().UTC(),
	}
	if err := s.dbStore.UpsertWelfareSettings(ws); err != nil {
		return nil, err
	}
	if err := s.dbStore.SetUserPhoneNumber(user.ID, setup.PhoneNumber); err != nil {
		return nil, err
	}
	return s.dbStore.GetWelfareSettingsByPhone(setup.PhoneNumber)
}

// SendWelfareCheck delivers the templated check-in greeting through the
// gateway. The last-welfare-check timestamp is recorded only when delivery
// reports success; a delivery failure surfaces as delivered=false, not an
// error.
func (s *WelfareService) SendWelfareCheck(ctx context.Context, user *store.User) (bool, error) {
	ws, err := s.dbStore.GetWelfareSettingsByUserID(user.ID)
	if err != nil {
		return false, err
	}
	if ws == nil {
		return false, store.ErrNotFound
	}

	message := fmt.Sprintf(welfareCheckTemplate, user.Username)
	if err := s.notifier.Send(ctx, ws.PhoneNumber, message); err != nil {
		s.logger.Error("Welfare check delivery failed",
			zap.String("user_id", user.ID), zap.Error(err))
		return false, nil
	}

	if err := s.dbStore.RecordWelfareCheck(user.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("Failed to record welfare check timestamp", zap.String("user_id", user.ID), zap.Error(err))
	}
	return true, nil
}
