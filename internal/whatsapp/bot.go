package whatsapp

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
	"gorm.io/gorm"

	"labelcheck/internal/ledger"
	"labelcheck/internal/models"
	"labelcheck/internal/scanner"
)

var onboardingQuestions = []string{
	"1/5 — Do you follow any diet? (e.g. vegan, keto, halal — or \"none\")",
	"2/5 — Any food allergies? (e.g. peanuts, shellfish — or \"none\")",
	"3/5 — Any ingredient sensitivities? (e.g. caffeine, lactose — or \"none\")",
	"4/5 — Any skin sensitivities? (for cosmetics — or \"none\")",
	"5/5 — Any health conditions I should consider? (e.g. diabetes — or \"none\")",
}

// Bot turns incoming chat messages into pipeline runs and replies.
type Bot struct {
	client   *Client
	db       *gorm.DB
	pipeline *scanner.Pipeline
	ledger   *ledger.Ledger

	mu         sync.Mutex
	onboarding map[string][]string // JID -> collected answers
}

// NewBot wires the bot. Call before client.Connect so the event handler is
// registered on the underlying connection.
func NewBot(client *Client, db *gorm.DB, pipeline *scanner.Pipeline, ldg *ledger.Ledger) *Bot {
	b := &Bot{
		client:     client,
		db:         db,
		pipeline:   pipeline,
		ledger:     ldg,
		onboarding: map[string][]string{},
	}
	client.SetEventHandler(b.handleEvent)
	return b
}

func (b *Bot) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		go b.handleMessage(v)
	}
}

func (b *Bot) handleMessage(msg *events.Message) {
	if msg.Info.IsFromMe || msg.Info.IsGroup {
		return
	}

	user, err := b.resolveUser(msg.Info.Sender, msg.Info.PushName)
	if err != nil {
		log.Printf("bot: resolve user %s: %v", msg.Info.Sender, err)
		return
	}

	if img := msg.Message.GetImageMessage(); img != nil {
		b.handleImage(msg.Info.Chat, user, img)
		return
	}

	text := strings.TrimSpace(extractText(msg))
	if text == "" {
		return
	}
	b.handleText(msg.Info.Chat, user, text)
}

func (b *Bot) handleImage(chat types.JID, user *models.User, img *waE2E.ImageMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	data, err := b.client.WA().Download(ctx, img)
	if err != nil {
		log.Printf("bot: image download failed for user %d: %v", user.ID, err)
		b.send(chat, "⚠️ I couldn't download that photo. Please try sending it again.")
		return
	}

	b.send(chat, "🔍 Analyzing your product…")

	result, err := b.pipeline.Scan(ctx, user.ID, data, img.GetMimetype(), user.HealthProfile)
	if err != nil {
		log.Printf("bot: scan failed for user %d: %v", user.ID, err)
	}
	b.send(chat, scanner.RenderResult(result))
}

func (b *Bot) handleText(chat types.JID, user *models.User, text string) {
	switch strings.ToLower(text) {
	case "help", "/help", "/start", "start", "hi", "hello":
		b.send(chat, helpText(user))
		if !user.ProfileReady && !b.inOnboarding(user.JID) {
			b.startOnboarding(chat, user)
		}
		return
	case "profile":
		b.send(chat, renderProfile(user))
		return
	case "history":
		b.sendHistory(chat, user)
		return
	case "reset":
		b.startOnboarding(chat, user)
		return
	}

	if b.inOnboarding(user.JID) {
		b.continueOnboarding(chat, user, text)
		return
	}

	if !user.ProfileReady {
		b.startOnboarding(chat, user)
		return
	}

	b.send(chat, "Send me a photo of a packaged product and I'll break down its ingredients. Commands: profile, history, reset, help.")
}

func (b *Bot) inOnboarding(jid string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.onboarding[jid]
	return ok
}

func (b *Bot) startOnboarding(chat types.JID, user *models.User) {
	b.mu.Lock()
	b.onboarding[user.JID] = []string{}
	b.mu.Unlock()
	b.send(chat, "Let's set up your health profile — five quick questions.\n\n"+onboardingQuestions[0])
}

func (b *Bot) continueOnboarding(chat types.JID, user *models.User, answer string) {
	b.mu.Lock()
	answers := append(b.onboarding[user.JID], answer)
	b.onboarding[user.JID] = answers
	b.mu.Unlock()

	if len(answers) < len(onboardingQuestions) {
		b.send(chat, onboardingQuestions[len(answers)])
		return
	}

	b.mu.Lock()
	delete(b.onboarding, user.JID)
	b.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	profile, usage, err := b.pipeline.ExtractProfile(ctx, answers)
	if err != nil {
		log.Printf("bot: profile extraction failed for user %d: %v", user.ID, err)
		b.send(chat, "⚠️ I couldn't process your answers. Send \"reset\" to try again.")
		return
	}
	log.Printf("bot: profile extracted for user %d (cost %s)", user.ID, usage.RoundedCost())

	user.HealthProfile = profile
	user.ProfileReady = true
	if err := b.db.Save(user).Error; err != nil {
		log.Printf("bot: save profile for user %d: %v", user.ID, err)
		b.send(chat, "⚠️ Something went wrong saving your profile. Send \"reset\" to try again.")
		return
	}

	b.send(chat, "✅ Profile saved!\n\n"+renderProfile(user)+"\n\nNow send me a photo of any packaged product.")
}

func (b *Bot) sendHistory(chat types.JID, user *models.User) {
	records, err := b.ledger.History(user.ID, 5)
	if err != nil {
		log.Printf("bot: history for user %d: %v", user.ID, err)
		b.send(chat, "⚠️ Couldn't load your history right now.")
		return
	}
	if len(records) == 0 {
		b.send(chat, "No scans yet. Send a product photo to get started!")
		return
	}

	var sb strings.Builder
	sb.WriteString("*Your recent scans*\n")
	for _, rec := range records {
		name := "unknown product"
		if rec.Product != nil {
			name = rec.Product.Name
		}
		line := fmt.Sprintf("• %s — %s", rec.CreatedAt.Format("Jan 2"), name)
		if rec.CompatibilityLevel != nil {
			line += " (" + compatShort(*rec.CompatibilityLevel) + ")"
		}
		sb.WriteString(line + "\n")
	}
	fmt.Fprintf(&sb, "\nTotal scans: %d", user.ScanCount)
	b.send(chat, sb.String())
}

func (b *Bot) resolveUser(sender types.JID, pushName string) (*models.User, error) {
	jid := sender.ToNonAD().String()

	var user models.User
	err := b.db.Where("jid = ?", jid).First(&user).Error
	if err == gorm.ErrRecordNotFound {
		user = models.User{JID: jid, DisplayName: pushName}
		if err := b.db.Create(&user).Error; err != nil {
			return nil, err
		}
		return &user, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (b *Bot) send(to types.JID, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, err := b.client.WA().SendMessage(ctx, to, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		log.Printf("bot: send to %s failed: %v", to, err)
	}
}

func extractText(msg *events.Message) string {
	if t := msg.Message.GetConversation(); t != "" {
		return t
	}
	if ext := msg.Message.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	return ""
}

func helpText(user *models.User) string {
	greeting := "Hey"
	if user.DisplayName != "" {
		greeting = "Hey " + user.DisplayName
	}
	return greeting + `! 👋 I analyze packaged products from photos.

📸 Send a photo of any packaged product and I'll:
• identify it
• classify its ingredients (good / okay / bad)
• score how well it fits *your* health profile

Commands:
• profile — show your health profile
• history — your recent scans
• reset — redo the profile questions
• help — this message`
}

func renderProfile(user *models.User) string {
	p := user.HealthProfile
	if p.Empty() {
		return "Your health profile is empty. Send \"reset\" to fill it in."
	}
	var sb strings.Builder
	sb.WriteString("*Your health profile*\n")
	writeProfileLine(&sb, "Diet", p.Diet)
	writeProfileLine(&sb, "Food allergies", p.FoodAllergies)
	writeProfileLine(&sb, "Ingredient sensitivities", p.IngredientSensitivities)
	writeProfileLine(&sb, "Skin sensitivities", p.SkinSensitivities)
	writeProfileLine(&sb, "Health conditions", p.HealthConditions)
	return strings.TrimRight(sb.String(), "\n")
}

func writeProfileLine(sb *strings.Builder, label string, tags models.StringList) {
	if len(tags) == 0 {
		return
	}
	fmt.Fprintf(sb, "• %s: %s\n", label, strings.Join(tags, ", "))
}

func compatShort(level string) string {
	return strings.ToLower(strings.ReplaceAll(level, "_", " "))
}
