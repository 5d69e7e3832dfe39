package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/game-arena/internal/domain"
)

// HeaderProvider allows injecting per-request headers (API keys etc).
type HeaderProvider func() map[string]string

// Gateway calls an external model gateway over HTTP to choose moves. One
// POST per turn, no automatic retry: a failed or timed-out call leaves the
// turn pending and is reported to the caller.
type Gateway struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider

	defaultTimeout time.Duration
}

type GatewayOption func(*Gateway)

func WithTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) { g.defaultTimeout = d }
}

func WithMaxConnsPerHost(n int) GatewayOption {
	return func(g *Gateway) { g.http.MaxConnsPerHost = n }
}

func WithHeaderProvider(h HeaderProvider) GatewayOption {
	return func(g *Gateway) { g.headers = h }
}

func NewGateway(baseURL string, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 30 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type chooseMoveResponse struct {
	Move      json.RawMessage `json:"move,omitempty"`
	Action    json.RawMessage `json:"action,omitempty"`
	Reasoning string          `json:"reasoning,omitempty"`
}

func (g *Gateway) ChooseMove(ctx context.Context, req Request) (json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrProvider, err)
	}

	httpReq := fasthttp.AcquireRequest()
	httpResp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(httpReq)
		fasthttp.ReleaseResponse(httpResp)
	}()

	httpReq.Header.SetMethod(fasthttp.MethodPost)
	httpReq.SetRequestURI(g.baseURL + "/v1/choose-move")
	httpReq.Header.SetContentType("application/json")
	if g.headers != nil {
		for k, v := range g.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				httpReq.Header.Set(k, v)
			}
		}
	}
	httpReq.SetBody(body)

	if err := g.http.DoDeadline(httpReq, httpResp, g.deadline(ctx)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	status := httpResp.StatusCode()
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: gateway status=%d body=%s", ErrProvider, status, truncate(string(httpResp.Body()), 512))
	}

	move, err := parseMove(httpResp.Body(), req.GameType)
	if err != nil {
		return nil, err
	}
	return move, nil
}

// parseMove is lenient: a {"move": ...} or {"action": ...} envelope is
// preferred; a bare JSON object or string is taken as the payload itself.
func parseMove(body []byte, gt domain.GameType) (json.RawMessage, error) {
	var envelope chooseMoveResponse
	if err := json.Unmarshal(body, &envelope); err == nil {
		if len(envelope.Move) > 0 {
			return normalizePayload(envelope.Move, gt), nil
		}
		if len(envelope.Action) > 0 {
			return normalizePayload(envelope.Action, gt), nil
		}
	}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty gateway response", ErrProvider)
	}
	if json.Valid([]byte(trimmed)) {
		return normalizePayload(json.RawMessage(trimmed), gt), nil
	}
	if tok := scavengeMove(trimmed, gt); tok != "" {
		enc, err := json.Marshal(tok)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProvider, err)
		}
		return normalizePayload(enc, gt), nil
	}
	return nil, fmt.Errorf("%w: unusable gateway response: %s", ErrProvider, truncate(trimmed, 256))
}

// scavengeMove pulls a move-looking token out of a plaintext response. Models
// sometimes answer in prose despite the JSON contract.
func scavengeMove(text string, gt domain.GameType) string {
	for _, field := range strings.Fields(text) {
		tok := strings.ToLower(strings.Trim(field, ".,!?:;\"'()"))
		if gt == domain.GamePoker {
			switch tok {
			case "fold", "check", "call", "raise":
				return tok
			}
			continue
		}
		if looksLikeUCI(tok) {
			return tok
		}
	}
	return ""
}

func looksLikeUCI(s string) bool {
	if len(s) != 4 && len(s) != 5 {
		return false
	}
	return s[0] >= 'a' && s[0] <= 'h' && s[1] >= '1' && s[1] <= '8' &&
		s[2] >= 'a' && s[2] <= 'h' && s[3] >= '1' && s[3] <= '8'
}

// normalizePayload wraps bare move strings ("e2e4", "fold") into the payload
// shape the rules adapters expect.
func normalizePayload(raw json.RawMessage, gt domain.GameType) json.RawMessage {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return raw
	}
	s = strings.TrimSpace(s)
	if gt == domain.GamePoker {
		enc, _ := json.Marshal(map[string]string{"action": s})
		return enc
	}
	return raw
}

func (g *Gateway) deadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(g.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
