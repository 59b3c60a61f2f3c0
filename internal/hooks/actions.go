package hooks

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/hashicorp/golang-lru/v2/expirable"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RegisterBuiltInActions registers the default action handlers.
func RegisterBuiltInActions(m *HookManager) {
	m.RegisterAction(ActionLogWarning, handleLogWarning)
	wh := NewWebhookHandler()
	m.RegisterAction(ActionNotifyWebhook, wh.Handle)
	m.RegisterAction(ActionRunCommand, handleRunCommand)
}

func handleLogWarning(hook *Hook, ctx *EventContext) error {
	msg, _ := hook.Params["message"].(string)
	if msg == "" {
		msg = "Hook triggered"
	}
	log.WithFields(log.Fields{
		"request_id": ctx.RequestID,
		"handler":    ctx.Handler,
		"method":     ctx.Method,
		"confidence": ctx.Confidence,
	}).Warnf("[Hook: %s] %s (Event: %s)", hook.Name, msg, ctx.Event)
	return nil
}

// webhookPerMinute is the delivery budget per webhook URL.
const webhookPerMinute = 10

// WebhookHandler posts events to HTTP endpoints with a per-URL rate limit.
type WebhookHandler struct {
	limiters *expirable.LRU[string, *rate.Limiter]
	client   *http.Client

	// Backoff lists the waits between delivery attempts.
	Backoff []time.Duration
}

// NewWebhookHandler creates a webhook action handler.
func NewWebhookHandler() *WebhookHandler {
	return &WebhookHandler{
		limiters: expirable.NewLRU[string, *rate.Limiter](1000, nil, 5*time.Minute),
		client:   &http.Client{Timeout: 5 * time.Second},
		Backoff:  []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
	}
}

// Handle delivers ctx to the hook's url parameter.
func (h *WebhookHandler) Handle(hook *Hook, ctx *EventContext) error {
	url, _ := hook.Params["url"].(string)
	if url == "" {
		return fmt.Errorf("missing webhook url")
	}

	if !strings.HasPrefix(url, "https://") && !strings.HasPrefix(url, "http://localhost") && !strings.HasPrefix(url, "http://127.0.0.1") {
		return fmt.Errorf("insecure webhook url (must be https or localhost): %s", url)
	}

	if !h.allow(url) {
		return fmt.Errorf("rate limit exceeded for webhook: %s", url)
	}

	secret, _ := hook.Params["secret"].(string)

	payload := map[string]interface{}{
		"event":      ctx.Event,
		"timestamp":  ctx.Timestamp,
		"hook_id":    hook.ID,
		"confidence": ctx.Confidence,
	}
	if ctx.RequestID != "" {
		payload["request_id"] = ctx.RequestID
	}
	if ctx.Handler != "" {
		payload["handler"] = ctx.Handler
	}
	if ctx.Method != "" {
		payload["method"] = ctx.Method
	}
	if ctx.Language != "" {
		payload["language"] = ctx.Language
	}
	if len(ctx.Data) > 0 {
		payload["data"] = ctx.Data
	}
	if ctx.ErrorMessage != "" {
		payload["error"] = ctx.ErrorMessage
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	var lastErr error
	for i := 0; i <= len(h.Backoff); i++ {
		if i > 0 {
			time.Sleep(h.Backoff[i-1])
		}

		if lastErr = h.post(url, secret, body); lastErr == nil {
			return nil
		}
		log.Warnf("Webhook attempt %d failed: %v", i+1, lastErr)
	}

	return fmt.Errorf("webhook failed after retries: %w", lastErr)
}

func (h *WebhookHandler) post(url, secret string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "bhasharouter-hooks/1.0")

	if secret != "" {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		req.Header.Set("X-Hook-Signature", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func (h *WebhookHandler) allow(url string) bool {
	limiter, ok := h.limiters.Get(url)
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(float64(webhookPerMinute)/60), webhookPerMinute)
		h.limiters.Add(url, limiter)
	}
	return limiter.Allow()
}

var allowedCommands = []string{"echo", "logger", "notify-send"}

func handleRunCommand(hook *Hook, ctx *EventContext) error {
	cmdStr, _ := hook.Params["command"].(string)
	cmdParts := strings.Fields(cmdStr)
	if len(cmdParts) == 0 {
		return fmt.Errorf("missing command")
	}

	isAllowed := false
	for _, allowed := range allowedCommands {
		if cmdParts[0] == allowed {
			isAllowed = true
			break
		}
	}
	if !isAllowed {
		return fmt.Errorf("command '%s' is not in the whitelist", cmdParts[0])
	}

	cmd := exec.Command(cmdParts[0], cmdParts[1:]...)
	cmd.Env = append(cmd.Environ(),
		"BHASHA_EVENT="+string(ctx.Event),
		"BHASHA_HANDLER="+ctx.Handler,
		"BHASHA_REQUEST_ID="+ctx.RequestID,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("command failed: %v, output: %s", err, string(out))
	}

	return nil
}
