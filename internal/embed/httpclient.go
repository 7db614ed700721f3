package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// httpStatusError is a non-2xx provider response, carrying the status
// code so retry logic can tell transient failures from permanent ones.
type httpStatusError struct {
	status int
	msg    string
}

func (e *httpStatusError) Error() string { return e.msg }

// postJSON issues a JSON POST request and decodes the response body into
// out. A non-2xx response is translated into an *httpStatusError carrying
// the status code and a body excerpt.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt := strings.TrimSpace(string(respBody))
		if len(excerpt) > 500 {
			excerpt = excerpt[:500]
		}
		return &httpStatusError{
			status: resp.StatusCode,
			msg:    fmt.Sprintf("embedding provider returned status %d: %s", resp.StatusCode, excerpt),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// splitNonEmpty partitions texts into the non-blank entries (to send to
// the provider) and the indices of blank entries (to backfill with empty
// placeholder vectors), preserving positional alignment with the input.
func splitNonEmpty(texts []string) (nonEmpty []string, nonEmptyIdx []int, blankIdx []int) {
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			blankIdx = append(blankIdx, i)
			continue
		}
		nonEmpty = append(nonEmpty, t)
		nonEmptyIdx = append(nonEmptyIdx, i)
	}
	return nonEmpty, nonEmptyIdx, blankIdx
}

// chunkStrings splits texts into batches of at most size entries.
func chunkStrings(texts []string, size int) [][]string {
	if len(texts) == 0 {
		return nil
	}
	if size <= 0 {
		size = DefaultBatchSize
	}
	var chunks [][]string
	for size < len(texts) {
		texts, chunks = texts[size:], append(chunks, texts[:size:size])
	}
	return append(chunks, texts)
}
