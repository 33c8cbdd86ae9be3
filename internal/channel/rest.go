// internal/channel/rest.go
package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/solana-fanout/internal/txbuilder"
	"go.uber.org/zap"
)

const maxResponseBody = 64 * 1024

// RESTChannel отправляет транзакцию HTTP POST-запросом в релей.
type RESTChannel struct {
	base
	httpClient *http.Client
}

func NewRESTChannel(desc Descriptor, httpClient *http.Client, logger *zap.Logger) *RESTChannel {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &RESTChannel{
		base:       newBase(desc, logger),
		httpClient: httpClient,
	}
}

type restTransaction struct {
	Content string `json:"content"`
}

// requestBody собирает {"transaction":{"content":...}, <флаги провайдера>}
func (c *RESTChannel) requestBody(encoded string) ([]byte, error) {
	body := make(map[string]interface{}, len(c.desc.Flags)+1)
	for k, v := range c.desc.Flags {
		body[k] = v
	}
	body["transaction"] = restTransaction{Content: encoded}
	return json.Marshal(body)
}

func (c *RESTChannel) SendOne(ctx context.Context, tx *solana.Transaction) Outcome {
	start := time.Now()
	out := c.newOutcome(tx)
	if err := c.wait(ctx); err != nil {
		return c.fail(out, start, transportError(c.desc.Name, err))
	}

	encoded, err := txbuilder.Encode(tx)
	if err != nil {
		return c.fail(out, start, newSubmissionError(ErrorRejected, c.desc.Name, err))
	}
	payload, err := c.requestBody(encoded)
	if err != nil {
		return c.fail(out, start, newSubmissionError(ErrorRejected, c.desc.Name, err))
	}

	sendCtx, cancel := context.WithTimeout(ctx, c.desc.Timeout)
	defer cancel()

	status, body, err := c.post(sendCtx, payload)
	if err != nil {
		return c.fail(out, start, transportError(c.desc.Name, err))
	}
	if status < 200 || status >= 300 {
		return c.fail(out, start, newSubmissionError(ErrorTransport, c.desc.Name,
			fmt.Errorf("http %d: %s", status, truncate(body))))
	}

	if err := parseRelayResponse(body); err != nil {
		return c.fail(out, start, newSubmissionError(ErrorRejected, c.desc.Name, err))
	}
	return c.accept(out, start)
}

func (c *RESTChannel) SendMany(ctx context.Context, txs []*solana.Transaction) []Outcome {
	outcomes := make([]Outcome, 0, len(txs))
	for _, tx := range txs {
		outcomes = append(outcomes, c.SendOne(ctx, tx))
	}
	return outcomes
}

func (c *RESTChannel) post(ctx context.Context, payload []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.desc.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

func (c *RESTChannel) setAuth(req *http.Request) {
	if c.desc.AuthToken == "" {
		return
	}
	header := c.desc.AuthHeader
	if header == "" {
		header = "Authorization"
	}
	req.Header.Set(header, c.desc.AuthToken)
}

// parseRelayResponse: ключ result – принято, ключ error – отказ.
func parseRelayResponse(body []byte) error {
	var resp map[string]json.RawMessage
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("invalid relay response: %w", err)
	}
	if raw, ok := resp["error"]; ok && !isJSONNull(raw) {
		return fmt.Errorf("relay error: %s", truncate(raw))
	}
	if _, ok := resp["result"]; ok {
		return nil
	}
	return fmt.Errorf("relay response has neither result nor error")
}

func isJSONNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null"
}

func truncate(b []byte) string {
	const limit = 256
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}

var _ Channel = (*RESTChannel)(nil)
