package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

type apiClient struct {
	baseURL string
	owner   string
	http    *http.Client
}

func (c *apiClient) request(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.owner != "" {
		req.Header.Set("X-Owner-Address", c.owner)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(data))
		var parsed map[string]any
		if json.Unmarshal(data, &parsed) == nil {
			if errStr, ok := parsed["error"].(string); ok && errStr != "" {
				msg = errStr
			}
			if code, ok := parsed["code"].(string); ok && code != "" {
				msg = fmt.Sprintf("%s (%s)", msg, code)
			}
		}
		return nil, fmt.Errorf("%s %s: %s (status %d)", method, path, msg, resp.StatusCode)
	}
	return data, nil
}

func printJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		fmt.Println(string(data))
		return nil
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(string(data))
		return nil
	}
	fmt.Println(string(pretty))
	return nil
}
