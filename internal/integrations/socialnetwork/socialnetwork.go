// Package socialnetwork implements the social_network Integration
// (SPEC_FULL.md §0): a Farcaster-like decentralized social network
// reached over a plain HTTPS hub API. Casts map onto worldstate.Message,
// follows/likes onto worldstate.ActionRecord, profiles onto
// worldstate.User. In addition to polling the hub API, it accepts
// pushed webhook events through the same ingestion path, per
// SPEC_FULL.md §13 item 5 (atimics/matrixbot's farcaster/webhook_handler.py).
package socialnetwork

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nextlevelbuilder/socialagent/internal/integrations"
	"github.com/nextlevelbuilder/socialagent/internal/worldstate"
)

// Config configures the social_network Integration.
type Config struct {
	HubAPIURL     string
	APIKey        string
	FID           int64
	WebhookSecret string
	PollInterval  time.Duration
}

// Integration implements integrations.Integration and integrations.SocialActor
// for the social_network platform.
type Integration struct {
	cfg     Config
	publish integrations.ObservationPublisher
	client  *http.Client

	connected bool
	lastErr   string
	lastCast  string // not set by pollOnce; each poll fetches castsByFollowing without a cursor

	stop chan struct{}
}

func New(cfg Config, publish integrations.ObservationPublisher) *Integration {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	return &Integration{
		cfg:     cfg,
		publish: publish,
		client:  &http.Client{Timeout: integrations.CallTimeout},
		stop:    make(chan struct{}),
	}
}

func (i *Integration) Name() string                 { return "social_network" }
func (i *Integration) Platform() worldstate.Platform { return worldstate.PlatformSocialNetwork }

func (i *Integration) Connect(ctx context.Context) error {
	res := i.TestConnection(ctx)
	i.connected = res.Success
	i.lastErr = res.Error
	if !res.Success {
		return fmt.Errorf("social_network: connect failed: %s", res.Error)
	}
	go i.pollLoop()
	return nil
}

func (i *Integration) Disconnect(ctx context.Context) error {
	close(i.stop)
	i.connected = false
	return nil
}

func (i *Integration) TestConnection(ctx context.Context) integrations.TestResult {
	reqCtx, cancel := context.WithTimeout(ctx, integrations.CallTimeout)
	defer cancel()
	req, err := i.newRequest(reqCtx, http.MethodGet, fmt.Sprintf("/v1/userDataByFid?fid=%d", i.cfg.FID), nil)
	if err != nil {
		return integrations.TestResult{Success: false, Error: err.Error()}
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return integrations.TestResult{Success: false, Error: err.Error()}
	}
	defer resp.Body.Close()
	i.recordRateLimit(resp)
	if resp.StatusCode >= 400 {
		return integrations.TestResult{Success: false, Error: fmt.Sprintf("hub returned %d", resp.StatusCode)}
	}
	return integrations.TestResult{Success: true}
}

func (i *Integration) Status() integrations.Status {
	return integrations.Status{Connected: i.connected, LastError: i.lastErr}
}

func (i *Integration) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(i.cfg.HubAPIURL, "/")+path, body)
	if err != nil {
		return nil, err
	}
	if i.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+i.cfg.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// recordRateLimit parses the hub's rate-limit response headers into an
// ExternalAPISnapshot and hands it to the publisher only when the
// publisher implements integrations.RateLimitObserver; the snapshot is
// never enforced locally.
func (i *Integration) recordRateLimit(resp *http.Response) {
	limit, _ := strconv.Atoi(resp.Header.Get("X-RateLimit-Limit"))
	remaining, _ := strconv.Atoi(resp.Header.Get("X-RateLimit-Remaining"))
	if limit == 0 && remaining == 0 {
		return
	}
	retryAfterMS := int64(0)
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil {
			retryAfterMS = int64(secs) * 1000
		}
	}
	slog.Debug("social_network rate limit observed", "limit", limit, "remaining", remaining)
	// No publisher in this repository implements RateLimitObserver
	// (bus.PublisherAdapter does not), so the snapshot does not reach the
	// world state store or the payload and is dropped here.
	if obs, ok := i.publish.(integrations.RateLimitObserver); ok {
		obs.ObserveRateLimit("social_network", worldstate.ExternalAPISnapshot{
			Limit: limit, Remaining: remaining, RetryAfterMS: retryAfterMS, LastUpdated: time.Now(),
		})
	}
}

type castsResponse struct {
	Casts []cast `json:"casts"`
}

type cast struct {
	Hash      string `json:"hash"`
	ParentHash string `json:"parent_hash,omitempty"`
	Author    struct {
		FID         int64  `json:"fid"`
		Username    string `json:"username"`
		DisplayName string `json:"display_name"`
	} `json:"author"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"` // RFC3339
	ChannelID string `json:"channel_id,omitempty"`
}

func (i *Integration) pollLoop() {
	ticker := time.NewTicker(i.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-i.stop:
			return
		case <-ticker.C:
			i.pollOnce(context.Background())
		}
	}
}

func (i *Integration) pollOnce(ctx context.Context) {
	reqCtx, cancel := context.WithTimeout(ctx, integrations.CallTimeout)
	defer cancel()
	req, err := i.newRequest(reqCtx, http.MethodGet, "/v1/castsByFollowing?fid="+strconv.FormatInt(i.cfg.FID, 10), nil)
	if err != nil {
		slog.Warn("social_network poll request build failed", "error", err)
		return
	}
	resp, err := i.client.Do(req)
	if err != nil {
		i.lastErr = err.Error()
		slog.Warn("social_network poll failed", "error", err)
		return
	}
	defer resp.Body.Close()
	i.recordRateLimit(resp)
	if resp.StatusCode >= 400 {
		i.lastErr = fmt.Sprintf("hub returned %d", resp.StatusCode)
		return
	}
	var out castsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		slog.Warn("social_network poll decode failed", "error", err)
		return
	}
	for _, c := range out.Casts {
		i.ingestCast(ctx, c)
	}
}

func (i *Integration) ingestCast(ctx context.Context, c cast) {
	ts, err := time.Parse(time.RFC3339, c.Timestamp)
	if err != nil {
		ts = time.Now()
	}
	msg := &worldstate.Message{
		ID:        c.Hash,
		Platform:  worldstate.PlatformSocialNetwork,
		ChannelID: c.ChannelID,
		AuthorID:  strconv.FormatInt(c.Author.FID, 10),
		Content:   c.Text,
		Timestamp: ts,
		ReplyToID: c.ParentHash,
	}
	if err := i.publish.Publish(ctx, "message", msg, nil, nil); err != nil {
		slog.Warn("social_network publish failed", "error", err)
	}
}

// WebhookHandler returns an http.Handler accepting pushed cast events
// from the hub, validated against cfg.WebhookSecret via HMAC-SHA256,
// and forwarded through the same ingestion path as polled casts — per
// SPEC_FULL.md §13 item 5.
func (i *Integration) WebhookHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if i.cfg.WebhookSecret != "" && !validSignature(body, r.Header.Get("X-Webhook-Signature"), i.cfg.WebhookSecret) {
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
		var payload struct {
			Type string `json:"type"`
			Cast cast   `json:"cast"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			http.Error(w, "bad payload", http.StatusBadRequest)
			return
		}
		if payload.Type == "cast.created" {
			i.ingestCast(r.Context(), payload.Cast)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func validSignature(body []byte, sig, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(sig))
}

func (i *Integration) SendMessage(ctx context.Context, channelID, content, mediaURL string) (string, error) {
	return i.publishCast(ctx, channelID, content, mediaURL, "")
}

func (i *Integration) ReplyToMessage(ctx context.Context, channelID, replyToID, content, mediaURL string) (string, error) {
	return i.publishCast(ctx, channelID, content, mediaURL, replyToID)
}

func (i *Integration) publishCast(ctx context.Context, channelID, content, mediaURL, replyToHash string) (string, error) {
	body := map[string]interface{}{
		"text":       content,
		"channel_id": channelID,
	}
	if mediaURL != "" {
		body["embeds"] = []string{mediaURL}
	}
	if replyToHash != "" {
		body["parent_hash"] = replyToHash
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal cast: %w", err)
	}
	reqCtx, cancel := context.WithTimeout(ctx, integrations.CallTimeout)
	defer cancel()
	req, err := i.newRequest(reqCtx, http.MethodPost, "/v1/casts", strings.NewReader(string(data)))
	if err != nil {
		return "", err
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("social_network: post cast failed: %w", err)
	}
	defer resp.Body.Close()
	i.recordRateLimit(resp)
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("social_network: hub returned %d", resp.StatusCode)
	}
	var out struct {
		Hash string `json:"hash"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return out.Hash, nil
}

// LikePost and FollowUser implement integrations.SocialActor.
func (i *Integration) LikePost(ctx context.Context, postID string) error {
	return i.reaction(ctx, "like", postID)
}

func (i *Integration) reaction(ctx context.Context, kind, target string) error {
	body, _ := json.Marshal(map[string]string{"type": kind, "target_hash": target})
	reqCtx, cancel := context.WithTimeout(ctx, integrations.CallTimeout)
	defer cancel()
	req, err := i.newRequest(reqCtx, http.MethodPost, "/v1/reactions", strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return fmt.Errorf("social_network: %s failed: %w", kind, err)
	}
	defer resp.Body.Close()
	i.recordRateLimit(resp)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("social_network: hub returned %d for %s", resp.StatusCode, kind)
	}
	return nil
}

func (i *Integration) FollowUser(ctx context.Context, userID string) error {
	body, _ := json.Marshal(map[string]string{"target_fid": userID})
	reqCtx, cancel := context.WithTimeout(ctx, integrations.CallTimeout)
	defer cancel()
	req, err := i.newRequest(reqCtx, http.MethodPost, "/v1/follows", strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return fmt.Errorf("social_network: follow failed: %w", err)
	}
	defer resp.Body.Close()
	i.recordRateLimit(resp)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("social_network: hub returned %d for follow", resp.StatusCode)
	}
	return nil
}

// LookupUser implements integrations.ProfileLookup.
func (i *Integration) LookupUser(ctx context.Context, userID string) (*worldstate.User, error) {
	reqCtx, cancel := context.WithTimeout(ctx, integrations.CallTimeout)
	defer cancel()
	req, err := i.newRequest(reqCtx, http.MethodGet, "/v1/userDataByFid?fid="+userID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("social_network: lookup failed: %w", err)
	}
	defer resp.Body.Close()
	i.recordRateLimit(resp)
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("social_network: hub returned %d", resp.StatusCode)
	}
	var out struct {
		Username    string `json:"username"`
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &worldstate.User{ID: userID, Platform: worldstate.PlatformSocialNetwork, Handle: out.Username, DisplayName: out.DisplayName}, nil
}
