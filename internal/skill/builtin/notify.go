package builtin

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/fantasma-ai/fantasma/internal/skill"
)

// discordAPI is the slice of the Discord session the skill uses. Satisfied
// by *discordgo.Session; tests substitute a fake.
type discordAPI interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
}

var notifySendWords = []string{"manda", "envia", "avisa", "notifica"}

// Notify sends and reads notifications through a Discord channel. The bot
// session is opened by the daemon at startup and stays connected.
type Notify struct {
	session   *discordgo.Session
	api       discordAPI
	channelID string
}

var (
	_ skill.Skill  = (*Notify)(nil)
	_ skill.Daemon = (*Notify)(nil)
)

// NewNotify creates the skill with a bot session for token.
func NewNotify(token, channelID string) (*Notify, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("notify: create session: %w", err)
	}
	return &Notify{session: s, api: s, channelID: channelID}, nil
}

// Name implements [skill.Skill].
func (*Notify) Name() string { return "notify" }

// TriggerType implements [skill.Skill].
func (*Notify) TriggerType() skill.TriggerType { return skill.TriggerContains }

// Triggers implements [skill.Skill].
func (*Notify) Triggers() []string {
	return []string{
		"notificação", "notificações", "mensagem", "mensagens",
		"recado", "recados", "avisa",
	}
}

// Handle implements [skill.Skill]. Send phrasings push the rest of the
// sentence to the channel; everything else reads the latest messages back.
func (n *Notify) Handle(_ context.Context, lower, original string) (string, error) {
	if hasWord(lower, notifySendWords) {
		return n.send(original)
	}
	return n.read()
}

// Run implements [skill.Daemon]: keeps the gateway session open until
// shutdown.
func (n *Notify) Run(ctx context.Context) error {
	if n.session == nil {
		<-ctx.Done()
		return nil
	}
	if err := n.session.Open(); err != nil {
		return fmt.Errorf("notify: open session: %w", err)
	}
	slog.Info("notify: discord session open")
	<-ctx.Done()
	return n.session.Close()
}

func (n *Notify) send(original string) (string, error) {
	body := messageBody(original)
	if body == "" {
		return "O que queres que eu envie?", nil
	}
	if _, err := n.api.ChannelMessageSend(n.channelID, body); err != nil {
		slog.Warn("notify: send failed", "err", err)
		return "Não consegui enviar a mensagem.", nil
	}
	return "Mensagem enviada.", nil
}

func (n *Notify) read() (string, error) {
	msgs, err := n.api.ChannelMessages(n.channelID, 3, "", "", "")
	if err != nil {
		slog.Warn("notify: read failed", "err", err)
		return "Não consegui ler as mensagens.", nil
	}
	if len(msgs) == 0 {
		return "Não tens mensagens novas.", nil
	}
	latest := msgs[0]
	if len(msgs) == 1 {
		return fmt.Sprintf("Tens uma mensagem, de %s: %s", latest.Author.Username, latest.Content), nil
	}
	return fmt.Sprintf("Tens %d mensagens. A mais recente, de %s: %s",
		len(msgs), latest.Author.Username, latest.Content), nil
}

// messageBody extracts what to send: the part after "que" ("avisa que o
// jantar está pronto"), or failing that the part after the send word. Markers
// are located on the original text itself, so the body keeps the user's
// casing and offsets never land inside a rune.
func messageBody(original string) string {
	if _, after, ok := cutFold(original, " que "); ok {
		return strings.TrimSpace(after)
	}
	for _, w := range notifySendWords {
		if _, after, ok := cutFold(original, w); ok {
			return strings.TrimSpace(strings.Trim(after, " .,!?"))
		}
	}
	return ""
}

// cutFold is strings.Cut with case-insensitive matching of the ASCII sep.
// A window of len(sep) bytes can only fold-match sep if every rune in it is
// single-byte ASCII, so the cut points are always rune boundaries.
func cutFold(s, sep string) (before, after string, ok bool) {
	for i := 0; i+len(sep) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(sep)], sep) {
			return s[:i], s[i+len(sep):], true
		}
	}
	return s, "", false
}
