package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/stockbook/internal/config"
	"github.com/mamadbah2/stockbook/internal/domain/models"
	"github.com/mamadbah2/stockbook/internal/service/commands"
	"github.com/mamadbah2/stockbook/pkg/clients/speech"
	client "github.com/mamadbah2/stockbook/pkg/clients/whatsapp"
)

const sendTimeout = 10 * time.Second

// MessagingService describes the operations the HTTP layer can perform.
type MessagingService interface {
	VerifyWebhookToken(mode, verifyToken, challenge string) (string, error)
	HandleWebhook(ctx context.Context, payload models.WebhookPayload) error
	SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error
}

// Transcriber turns a recorded voice note into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// MetaWhatsAppService is the production implementation backed by WhatsApp Cloud API.
type MetaWhatsAppService struct {
	cfg         config.WhatsAppConfig
	client      client.Client
	dispatcher  commands.Dispatcher
	transcriber Transcriber
	logger      *zap.Logger
}

// NewMetaWhatsAppService wires a new service instance. transcriber may be nil, in
// which case voice notes are answered with a hint to type instead.
func NewMetaWhatsAppService(cfg config.WhatsAppConfig, client client.Client, dispatcher commands.Dispatcher, transcriber Transcriber, logger *zap.Logger) *MetaWhatsAppService {
	svc := &MetaWhatsAppService{
		cfg:         cfg,
		client:      client,
		dispatcher:  dispatcher,
		transcriber: transcriber,
		logger:      logger,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	return svc
}

// VerifyWebhookToken validates the callback verification token.
func (s *MetaWhatsAppService) VerifyWebhookToken(mode, verifyToken, challenge string) (string, error) {
	if mode == "" || verifyToken == "" {
		return "", errors.New("missing mode or verify token")
	}

	if !strings.EqualFold(mode, "subscribe") {
		return "", fmt.Errorf("unsupported hub.mode %s", mode)
	}

	if verifyToken != s.cfg.VerifyToken {
		return "", errors.New("invalid verify token")
	}

	return challenge, nil
}

// HandleWebhook processes inbound webhook payloads. Every message is answered even
// when an earlier one failed; the first failure is returned.
func (s *MetaWhatsAppService) HandleWebhook(ctx context.Context, payload models.WebhookPayload) error {
	var firstErr error

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if err := s.handleInboundMessage(ctx, msg); err != nil {
					s.logger.Error("failed to handle inbound message", zap.Error(err), zap.String("message_id", msg.ID))
					if firstErr == nil {
						firstErr = err
					}
				}
			}
		}
	}

	return firstErr
}

func (s *MetaWhatsAppService) handleInboundMessage(ctx context.Context, msg models.InboundMessage) error {
	text, err := s.messageText(ctx, msg)
	if err != nil {
		return s.reply(ctx, msg.From, err.Error())
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("empty %s message from %s", msg.Type, msg.From)
	}

	cmd := models.ParseCommand(text)
	s.logger.Info("parsed inbound command",
		zap.String("from", msg.From),
		zap.String("command", string(cmd.Type)),
		zap.Strings("args", cmd.Args))

	reply, err := s.dispatcher.HandleCommand(ctx, cmd, msg.From)
	if err != nil {
		s.logger.Warn("command rejected", zap.String("from", msg.From), zap.Error(err))
		reply = commands.Usage(err)
	}
	return s.reply(ctx, msg.From, reply)
}

// userError is shown to the sender as is.
type userError string

func (e userError) Error() string { return string(e) }

// messageText returns the text of a message, transcribing voice notes. A userError
// means the sender should be told what went wrong.
func (s *MetaWhatsAppService) messageText(ctx context.Context, msg models.InboundMessage) (string, error) {
	switch {
	case msg.Text != nil:
		return msg.Text.Body, nil
	case msg.Audio != nil:
		return s.transcribeVoiceNote(ctx, msg.Audio)
	default:
		return "", userError("Sorry, I can only read text messages and voice notes.")
	}
}

func (s *MetaWhatsAppService) transcribeVoiceNote(ctx context.Context, audio *models.MediaContent) (string, error) {
	if s.transcriber == nil {
		return "", userError("Voice notes are not enabled, please type your message.")
	}

	media, err := s.client.DownloadMedia(ctx, audio.ID)
	if err != nil {
		s.logger.Error("voice note download failed", zap.String("media_id", audio.ID), zap.Error(err))
		return "", userError("Sorry, I could not download that voice note.")
	}

	path, err := writeTemp(media.Data, extensionFor(media.MimeType, audio.MimeType))
	if err != nil {
		return "", fmt.Errorf("store voice note: %w", err)
	}
	defer os.Remove(path)

	text, err := s.transcriber.Transcribe(ctx, path)
	switch {
	case errors.Is(err, speech.ErrNoSpeech):
		return "", userError("Could not understand audio")
	case err != nil:
		s.logger.Warn("speech recognition failed", zap.String("media_id", audio.ID), zap.Error(err))
		return "", userError(fmt.Sprintf("Speech recognition error: %v", err))
	}

	s.logger.Info("voice note transcribed", zap.String("media_id", audio.ID), zap.Int("chars", len(text)))
	return text, nil
}

// SendOutbound lets internal operators push quick notifications via HTTP.
func (s *MetaWhatsAppService) SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	_, err := s.client.SendTextMessage(ctxWithTimeout, client.SendTextMessageRequest{
		To:         req.To,
		Body:       req.Message,
		PreviewURL: req.PreviewURL,
	})
	return err
}

func (s *MetaWhatsAppService) reply(ctx context.Context, to, body string) error {
	return s.SendOutbound(ctx, models.OutboundMessageRequest{To: to, Message: body})
}

func writeTemp(data []byte, ext string) (string, error) {
	f, err := os.CreateTemp("", "voice-*"+ext)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// extensionFor maps the media MIME type to the extension the speech client keys
// its encoding on. WhatsApp voice notes are Opus in an Ogg container.
func extensionFor(mimeTypes ...string) string {
	for _, mt := range mimeTypes {
		mt = strings.ToLower(strings.TrimSpace(strings.SplitN(mt, ";", 2)[0]))
		switch mt {
		case "audio/ogg", "audio/opus":
			return ".ogg"
		case "audio/webm":
			return ".webm"
		case "audio/flac":
			return ".flac"
		case "audio/mpeg", "audio/mp3":
			return ".mp3"
		case "audio/wav", "audio/x-wav":
			return ".wav"
		}
	}
	return ".ogg"
}
