package frames

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"archo/internal/logging"
)

const (
	defaultRemoteTimeout = 30 * time.Second
	defaultMaxRetries    = 3
	defaultRetryBase     = 250 * time.Millisecond
	defaultMaxRetryDelay = 5 * time.Second
	defaultMaxBodySize   = 64 << 20
)

// RemoteConfig declares a remote fact store endpoint, loaded from
// .archo/remotes.toml.
type RemoteConfig struct {
	URL       string `toml:"url"`
	Token     string `toml:"token,omitempty"`
	TimeoutMs int    `toml:"timeout_ms,omitempty"`
}

// remotesFile is the root structure of remotes.toml.
type remotesFile struct {
	Remote RemoteConfig `toml:"remote"`
}

// LoadRemoteConfig reads the remote store declaration. A missing file is an
// error: remote mode is explicit opt-in.
func LoadRemoteConfig(path string) (*RemoteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read remotes config: %w", err)
	}
	var rf remotesFile
	if err := toml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse remotes config: %w", err)
	}
	if rf.Remote.URL == "" {
		return nil, fmt.Errorf("remotes config %s: missing remote.url", path)
	}
	return &rf.Remote, nil
}

// RemoteStore is an HTTP client for a remote fact store. Store communication
// failures are hard errors: the caller cannot trust idempotence bookkeeping
// after a write of unknown outcome.
type RemoteStore struct {
	cfg    *RemoteConfig
	client *http.Client
	logger *logging.Logger
}

// NewRemoteStore creates a client for the configured remote store.
func NewRemoteStore(cfg *RemoteConfig, logger *logging.Logger) *RemoteStore {
	timeout := defaultRemoteTimeout
	if cfg.TimeoutMs > 0 {
		timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
	}
	return &RemoteStore{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// RemoteStoreError is a non-2xx response from the remote store.
type RemoteStoreError struct {
	StatusCode int
	Message    string
}

func (e *RemoteStoreError) Error() string {
	return fmt.Sprintf("remote store error %d: %s", e.StatusCode, e.Message)
}

// doRequest performs an HTTP request, retrying network errors and 5xx
// responses with exponential backoff. 4xx responses are returned as-is.
func (s *RemoteStore) doRequest(ctx context.Context, method, path string, body []byte, query url.Values) ([]byte, error) {
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid remote store URL: %w", err)
	}
	u.Path = path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= defaultMaxRetries; attempt++ {
		if attempt > 0 {
			delay := defaultRetryBase * time.Duration(1<<uint(attempt-1))
			if delay > defaultMaxRetryDelay {
				delay = defaultMaxRetryDelay
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			if s.logger != nil {
				s.logger.Debug("Retrying remote store request", map[string]interface{}{
					"attempt": attempt + 1,
					"url":     u.String(),
				})
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if s.cfg.Token != "" {
			req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		data, readErr := io.ReadAll(io.LimitReader(resp.Body, defaultMaxBodySize))
		_ = resp.Body.Close()

		if resp.StatusCode >= 500 {
			lastErr = &RemoteStoreError{StatusCode: resp.StatusCode, Message: string(data)}
			continue
		}
		if readErr != nil {
			return nil, fmt.Errorf("failed to read response: %w", readErr)
		}
		if resp.StatusCode >= 400 {
			return nil, &RemoteStoreError{StatusCode: resp.StatusCode, Message: string(data)}
		}
		return data, nil
	}
	return nil, fmt.Errorf("remote store request failed after %d retries: %w", defaultMaxRetries, lastErr)
}

// Put implements Store by PUTting the frame record. The server responds with
// at least {inserted, frameId}; a re-submitted frame id must come back with
// inserted=false.
func (s *RemoteStore) Put(ctx context.Context, f Frame) (PutResult, error) {
	body, err := json.Marshal(f)
	if err != nil {
		return PutResult{}, fmt.Errorf("marshal frame: %w", err)
	}

	data, err := s.doRequest(ctx, http.MethodPut, "/frames", body, nil)
	if err != nil {
		return PutResult{}, err
	}

	var res PutResult
	if err := json.Unmarshal(data, &res); err != nil {
		return PutResult{}, fmt.Errorf("failed to parse put response: %w", err)
	}
	if res.FrameID != f.FrameID {
		return PutResult{}, fmt.Errorf("remote store acknowledged frame %s, sent %s", res.FrameID, f.FrameID)
	}
	return res, nil
}

// Get implements Store by querying frames for a kind and scope.
func (s *RemoteStore) Get(ctx context.Context, kind string, scope Scope, limit int) ([]Frame, error) {
	query := url.Values{}
	query.Set("kind", kind)
	query.Set("repo", scope.Repo)
	query.Set("commit", scope.Commit)
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	data, err := s.doRequest(ctx, http.MethodGet, "/frames", nil, query)
	if err != nil {
		return nil, err
	}

	var res struct {
		Frames []Frame `json:"frames"`
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("failed to parse get response: %w", err)
	}
	return res.Frames, nil
}
