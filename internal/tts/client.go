// Package tts fronts the external speech-synthesis engine. The engine is a
// black box reached over HTTP; synthesized audio is cached so repeated
// lesson narration does not re-render.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"

	"github.com/rmf-academy/course-server/internal/platform/cache"
)

// Synthesis limits exposed to clients alongside the voice list.
const (
	DefaultVoice = "af_heart"
	MinSpeed     = 0.7
	MaxSpeed     = 1.4
	EngineName   = "kokoro-82m"
)

// DefaultVoices is the curated subset of the engine's voice pack.
var DefaultVoices = []string{
	"af_heart",
	"af_bella",
	"af_sarah",
	"af_nicole",
	"am_adam",
	"am_michael",
	"bf_emma",
	"bm_george",
}

// ErrUnavailable is returned when no engine endpoint is configured.
var ErrUnavailable = errors.New("speech engine not configured")

// VoicesInfo is the shape of the voices listing.
type VoicesInfo struct {
	Voices       []string `json:"voices"`
	DefaultVoice string   `json:"defaultVoice"`
	MinSpeed     float64  `json:"minSpeed"`
	MaxSpeed     float64  `json:"maxSpeed"`
	Engine       string   `json:"engine"`
}

// Voices lists the available voices and speed bounds.
func Voices() VoicesInfo {
	return VoicesInfo{
		Voices:       DefaultVoices,
		DefaultVoice: DefaultVoice,
		MinSpeed:     MinSpeed,
		MaxSpeed:     MaxSpeed,
		Engine:       EngineName,
	}
}

// Client synthesizes speech through the external engine, consulting the
// cache first. A nil cache disables caching, a nil client reports
// ErrUnavailable from Synthesize.
type Client struct {
	baseURL    string
	httpClient *http.Client
	audioCache *cache.Cache
	cacheTTL   time.Duration
}

// NewClient creates a synthesis client for the engine at baseURL.
func NewClient(baseURL string, audioCache *cache.Cache, cacheTTL time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		audioCache: audioCache,
		cacheTTL:   cacheTTL,
	}
}

type synthesisRequest struct {
	Text  string  `json:"text"`
	Voice string  `json:"voice"`
	Speed float64 `json:"speed"`
}

// Synthesize renders text to WAV audio.
func (c *Client) Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error) {
	if c == nil || c.baseURL == "" {
		return nil, ErrUnavailable
	}
	if voice == "" {
		voice = DefaultVoice
	}

	key := cacheKey(text, voice, speed)
	if audio, ok := c.cached(ctx, key); ok {
		return audio, nil
	}

	body, err := json.Marshal(synthesisRequest{Text: text, Voice: voice, Speed: speed})
	if err != nil {
		return nil, fmt.Errorf("encoding synthesis request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/synthesize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling speech engine: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("speech engine returned %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading synthesized audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("speech engine returned no audio")
	}

	c.store(ctx, key, audio)
	return audio, nil
}

func (c *Client) cached(ctx context.Context, key string) ([]byte, bool) {
	if c.audioCache == nil {
		return nil, false
	}
	audio, err := c.audioCache.Client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("audio cache read failed", "error", err)
		}
		return nil, false
	}
	return audio, true
}

func (c *Client) store(ctx context.Context, key string, audio []byte) {
	if c.audioCache == nil {
		return
	}
	if err := c.audioCache.Client.Set(ctx, key, audio, c.cacheTTL).Err(); err != nil {
		slog.Warn("audio cache write failed", "error", err)
	}
}

func cacheKey(text, voice string, speed float64) string {
	sum := blake2b.Sum256(fmt.Appendf(nil, "%s|%.2f|%s", voice, speed, text))
	return fmt.Sprintf("tts:%x", sum)
}
