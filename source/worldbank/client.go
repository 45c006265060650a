// Package worldbank fetches indicator series from the World Bank v2 API.
package worldbank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"worldbank-panel/config"
	"worldbank-panel/metrics"
	"worldbank-panel/models"
	"worldbank-panel/storage"
	"worldbank-panel/utils"
)

// Client issues one request per indicator. It does not paginate: per_page is
// set high enough that a single page holds the whole requested range.
type Client struct {
	baseURL   string
	startYear int
	endYear   int
	perPage   int
	http      *http.Client
	logger    *utils.Logger
	metrics   *metrics.Pipeline
}

// New creates a ready-to-use Client.
func New(cfg *config.Config, logger *utils.Logger) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		startYear: cfg.StartYear,
		endYear:   cfg.EndYear,
		perPage:   cfg.PerPage,
		http:      &http.Client{Timeout: cfg.RequestTimeout},
		logger:    logger,
	}
}

// WithMetrics makes the client record fetch sizes into m.
func (c *Client) WithMetrics(m *metrics.Pipeline) *Client {
	c.metrics = m
	return c
}

// IndicatorURL builds the request URL for one indicator code.
func (c *Client) IndicatorURL(code string) string {
	return fmt.Sprintf("%s/%s?format=json&per_page=%d&date=%d:%d",
		c.baseURL, code, c.perPage, c.startYear, c.endYear)
}

// FetchIndicator downloads one indicator and returns its flattened records.
func (c *Client) FetchIndicator(ctx context.Context, code string) (*models.RawTable, error) {
	url := c.IndicatorURL(code)
	c.logger.Debug("[fetcher] GET %s", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &HTTPError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}

	return ParseResponse(body)
}

// ParseResponse validates the [metadata, records] envelope and flattens the
// records. A single-element array carrying a message is the provider's way
// of reporting an error.
func ParseResponse(body []byte) (*models.RawTable, error) {
	var envelope []json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &MalformedResponseError{Reason: "body is not a JSON array", Err: err}
	}

	if len(envelope) == 1 {
		msg, isMessage, err := providerMessage(envelope[0])
		if err != nil {
			return nil, err
		}
		if isMessage {
			return nil, &APIError{Message: msg}
		}
	}

	if len(envelope) < 2 {
		return nil, &MalformedResponseError{
			Reason: fmt.Sprintf("expected [metadata, records], got %d element(s)", len(envelope)),
		}
	}

	return flattenRecords(envelope[1])
}

// providerMessage extracts message[0].value from an error envelope element.
func providerMessage(elem json.RawMessage) (string, bool, error) {
	elem = bytes.TrimSpace(elem)
	if len(elem) == 0 || elem[0] != '{' {
		return "", false, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(elem, &obj); err != nil {
		return "", false, nil
	}
	raw, ok := obj["message"]
	if !ok {
		return "", false, nil
	}

	var messages []struct {
		ID    string `json:"id"`
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &messages); err != nil || len(messages) == 0 {
		return "", true, &MalformedResponseError{Reason: "error envelope without a readable message", Err: err}
	}
	return messages[0].Value, true, nil
}

// ExtractAndStore fetches every indicator in order and saves each raw table
// under the indicator's name. The first failure aborts the run.
func (c *Client) ExtractAndStore(ctx context.Context, indicators []models.Indicator, store storage.RawStore) error {
	for _, ind := range indicators {
		c.logger.Info("[fetcher] Fetching %s (%s)...", ind.Name, ind.Code)

		table, err := c.FetchIndicator(ctx, ind.Code)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", ind.Name, err)
		}
		c.metrics.ObserveFetch(ind.Name, len(table.Rows))
		c.logger.Info("[fetcher] %s: %d records, %d columns", ind.Name, len(table.Rows), len(table.Columns))

		if err := store.SaveRaw(table, ind.Name); err != nil {
			return fmt.Errorf("save raw %s: %w", ind.Name, err)
		}
	}
	return nil
}
