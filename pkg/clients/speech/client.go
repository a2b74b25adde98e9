// Package speech transcribes recorded audio with the Google Speech-to-Text REST API.
package speech

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://speech.googleapis.com"

// ErrNoSpeech is returned when the service recognized nothing in the audio.
var ErrNoSpeech = errors.New("no speech recognized")

// Config holds the Speech-to-Text settings.
type Config struct {
	APIKey   string
	Language string
	BaseURL  string
}

// Client is a resty-backed Speech-to-Text client.
type Client struct {
	httpClient *resty.Client
	apiKey     string
	language   string
	logger     *zap.Logger
}

// NewClient builds a Speech-to-Text client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Language == "" {
		cfg.Language = "en-GB"
	}

	restyClient := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(60 * time.Second)

	return &Client{httpClient: restyClient, apiKey: cfg.APIKey, language: cfg.Language, logger: logger}
}

type recognitionConfig struct {
	Encoding                   string `json:"encoding,omitempty"`
	SampleRateHertz            int    `json:"sampleRateHertz,omitempty"`
	LanguageCode               string `json:"languageCode"`
	EnableAutomaticPunctuation bool   `json:"enableAutomaticPunctuation"`
}

type recognizeRequest struct {
	Config recognitionConfig `json:"config"`
	Audio  struct {
		Content string `json:"content"`
	} `json:"audio"`
}

type recognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"results"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Transcribe reads the audio file and returns the best transcript of every result,
// joined by spaces.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (string, error) {
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return "", fmt.Errorf("read audio %s: %w", audioPath, err)
	}

	req := recognizeRequest{Config: encodingFor(audioPath)}
	req.Config.LanguageCode = c.language
	req.Config.EnableAutomaticPunctuation = true
	req.Audio.Content = base64.StdEncoding.EncodeToString(audio)

	result := new(recognizeResponse)
	apiErr := new(apiError)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("key", c.apiKey).
		SetBody(req).
		SetResult(result).
		SetError(apiErr).
		Post("/v1/speech:recognize")
	if err != nil {
		return "", fmt.Errorf("recognize speech: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("speech api error: code=%d, message=%s", resp.StatusCode(), apiErr.Error.Message)
	}

	var parts []string
	for _, r := range result.Results {
		if len(r.Alternatives) > 0 {
			if t := strings.TrimSpace(r.Alternatives[0].Transcript); t != "" {
				parts = append(parts, t)
			}
		}
	}
	if len(parts) == 0 {
		return "", ErrNoSpeech
	}

	transcript := strings.Join(parts, " ")
	c.logger.Debug("audio transcribed", zap.String("file", filepath.Base(audioPath)), zap.Int("chars", len(transcript)))
	return transcript, nil
}

// encodingFor picks the recognition encoding from the file extension. WAV and FLAC
// carry their own header, so only the Opus containers need a sample rate.
func encodingFor(path string) recognitionConfig {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ogg", ".opus", ".oga":
		return recognitionConfig{Encoding: "OGG_OPUS", SampleRateHertz: 16000}
	case ".webm":
		return recognitionConfig{Encoding: "WEBM_OPUS", SampleRateHertz: 48000}
	case ".flac":
		return recognitionConfig{Encoding: "FLAC"}
	case ".mp3":
		return recognitionConfig{Encoding: "MP3", SampleRateHertz: 16000}
	default:
		return recognitionConfig{}
	}
}
