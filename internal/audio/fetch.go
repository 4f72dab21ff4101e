package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/sync/semaphore"
)

var ErrTooLarge = errors.New("audio: download exceeds size limit")

// DownloadError reports a non-200 response from the audio source.
type DownloadError struct {
	URL        string
	StatusCode int
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("audio download from %s failed with status %d", e.URL, e.StatusCode)
}

// Fetcher downloads remote WAV files. Concurrent downloads are bounded
// independently of the model pool.
type Fetcher struct {
	client   *http.Client
	sem      *semaphore.Weighted
	maxBytes int64
}

func NewFetcher(client *http.Client, concurrency, maxBytes int64) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Fetcher{
		client:   client,
		sem:      semaphore.NewWeighted(concurrency),
		maxBytes: maxBytes,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (Audio, error) {
	if err := f.sem.Acquire(ctx, 1); err != nil {
		return Audio{}, fmt.Errorf("wait for download slot: %w", err)
	}
	defer f.sem.Release(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Audio{}, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return Audio{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Audio{}, &DownloadError{URL: url, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return Audio{}, err
	}
	if int64(len(data)) > f.maxBytes {
		return Audio{}, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.maxBytes)
	}
	return DecodeWAV(bytes.NewReader(data))
}
