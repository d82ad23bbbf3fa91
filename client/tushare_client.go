package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	// TushareAPIURL is the Tushare Pro HTTP endpoint
	TushareAPIURL = "http://api.tushare.pro"

	tradeCalAPI = "trade_cal"
)

// TushareClient handles communication with the Tushare Pro API. All calls
// require an access token; a client constructed without one reports every
// query as empty rather than failing.
type TushareClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewTushareClient creates a new Tushare API client
func NewTushareClient(token string, logger *zap.Logger) *TushareClient {
	return &TushareClient{
		baseURL: TushareAPIURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// HasToken reports whether the client can reach the API at all
func (c *TushareClient) HasToken() bool {
	return c.token != ""
}

// TradingDates retrieves the sorted distinct open-market calendar dates in
// [startDate, endDate] for an exchange (empty means the default exchange).
// Without a token it returns an empty result and no error.
func (c *TushareClient) TradingDates(ctx context.Context, exchange, startDate, endDate string) ([]string, error) {
	if c.token == "" {
		return nil, nil
	}

	payload := map[string]interface{}{
		"api_name": tradeCalAPI,
		"token":    c.token,
		"params": map[string]string{
			"exchange":   exchange,
			"start_date": startDate,
			"end_date":   endDate,
			"is_open":    "1",
		},
		"fields": "cal_date,is_open",
	}

	body, err := c.post(ctx, payload)
	if err != nil {
		return nil, err
	}

	if code := gjson.GetBytes(body, "code").Int(); code != 0 {
		msg := gjson.GetBytes(body, "msg").String()
		c.logger.Error("Tushare API error response",
			zap.Int64("code", code),
			zap.String("msg", msg))
		return nil, fmt.Errorf("tushare API error %d: %s", code, msg)
	}

	// The payload is positional: data.fields names the columns and each
	// entry of data.items is one row.
	calIdx := -1
	for i, f := range gjson.GetBytes(body, "data.fields").Array() {
		if f.String() == "cal_date" {
			calIdx = i
			break
		}
	}
	if calIdx < 0 {
		return nil, fmt.Errorf("tushare response missing cal_date field")
	}

	seen := make(map[string]struct{})
	for _, item := range gjson.GetBytes(body, "data.items").Array() {
		row := item.Array()
		if calIdx >= len(row) {
			continue
		}
		if d := row[calIdx].String(); d != "" {
			seen[d] = struct{}{}
		}
	}

	dates := make([]string, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates, nil
}

func (c *TushareClient) post(ctx context.Context, payload map[string]interface{}) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to call Tushare API", zap.Error(err))
		return nil, fmt.Errorf("failed to call tushare: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read tushare response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Tushare API returned non-OK status",
			zap.Int("statusCode", resp.StatusCode))
		return nil, fmt.Errorf("tushare returned status code %d", resp.StatusCode)
	}

	return body, nil
}
