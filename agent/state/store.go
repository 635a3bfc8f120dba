package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrStateNotFound = errors.New("pipeline state not found")
	ErrNilState      = errors.New("pipeline state is nil")
	ErrInvalidRun    = errors.New("run id is empty")
	ErrInvalidUserID = errors.New("user id is empty")
)

const (
	defaultStoreKeyPrefix = "opsdesk:"
	defaultStoreTTL       = 7 * 24 * time.Hour
	defaultIndexLimit     = 50
	maxResponseSizeBytes  = 2 << 20
)

// Store persists finished pipeline runs.
type Store interface {
	Load(ctx context.Context, runID string) (*PipelineState, error)
	Save(ctx context.Context, st *PipelineState) error
	Delete(ctx context.Context, runID string) error
}

// StoreOption customizes UpstashRedisStore.
type StoreOption func(*UpstashRedisStore)

func WithKeyPrefix(prefix string) StoreOption {
	return func(s *UpstashRedisStore) {
		trimmed := strings.TrimSpace(prefix)
		if trimmed != "" {
			s.keyPrefix = trimmed
		}
	}
}

func WithTTL(ttl time.Duration) StoreOption {
	return func(s *UpstashRedisStore) {
		s.ttl = ttl
	}
}

// WithIndexLimit caps how many run ids are kept per user.
func WithIndexLimit(n int) StoreOption {
	return func(s *UpstashRedisStore) {
		if n > 0 {
			s.indexLimit = n
		}
	}
}

func WithHTTPClient(client *http.Client) StoreOption {
	return func(s *UpstashRedisStore) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// UpstashRedisStore keeps run snapshots in Upstash Redis via its REST API, plus a
// newest-first list of run ids per user.
//
// Keys: <prefix>run:<run_id> holds the JSON state, <prefix>user:<user_id>:runs the index.
type UpstashRedisStore struct {
	baseURL    string
	token      string
	httpClient *http.Client
	keyPrefix  string
	ttl        time.Duration
	indexLimit int
}

var _ Store = (*UpstashRedisStore)(nil)

type redisRESTResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

type UpstashRedisConfig struct {
	URL     string        `envconfig:"URL" split_words:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
	TTL     time.Duration `envconfig:"TTL" split_words:"true" default:"168h"`
}

// Enabled reports whether a REST endpoint is configured.
func (c UpstashRedisConfig) Enabled() bool {
	return strings.TrimSpace(c.URL) != ""
}

func NewUpstashRedisStore(cfg UpstashRedisConfig, opts ...StoreOption) (*UpstashRedisStore, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = defaultStoreTTL
	}

	store := &UpstashRedisStore{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		keyPrefix:  defaultStoreKeyPrefix,
		ttl:        ttl,
		indexLimit: defaultIndexLimit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}

	if store.ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}
	return store, nil
}

func (s *UpstashRedisStore) Load(ctx context.Context, runID string) (*PipelineState, error) {
	key, err := s.runKey(runID)
	if err != nil {
		return nil, err
	}

	resp, err := s.exec(ctx, []any{"GET", key})
	if err != nil {
		return nil, err
	}

	if len(bytes.TrimSpace(resp.Result)) == 0 {
		return nil, ErrStateNotFound
	}
	var encoded *string
	if err := json.Unmarshal(resp.Result, &encoded); err != nil {
		return nil, fmt.Errorf("decode run payload: %w", err)
	}
	if encoded == nil {
		return nil, ErrStateNotFound
	}

	var st PipelineState
	if err := json.Unmarshal([]byte(*encoded), &st); err != nil {
		return nil, fmt.Errorf("unmarshal pipeline state: %w", err)
	}
	st.ensureMaps()
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline state loaded from store: %w", err)
	}
	return &st, nil
}

// Save writes the snapshot and pushes its run id onto the user's index in one pipeline.
func (s *UpstashRedisStore) Save(ctx context.Context, st *PipelineState) error {
	if st == nil {
		return ErrNilState
	}
	if err := st.Validate(); err != nil {
		return err
	}
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}

	key, err := s.runKey(st.RunID)
	if err != nil {
		return err
	}
	indexKey, err := s.userIndexKey(st.UserID)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal pipeline state: %w", err)
	}

	set := []any{"SET", key, string(payload)}
	if s.ttl > 0 {
		set = append(set, "EX", ttlSeconds(s.ttl))
	}
	commands := [][]any{
		set,
		{"LPUSH", indexKey, st.RunID},
		{"LTRIM", indexKey, 0, s.limit() - 1},
	}
	if s.ttl > 0 {
		commands = append(commands, []any{"EXPIRE", indexKey, ttlSeconds(s.ttl)})
	}
	_, err = s.pipeline(ctx, commands)
	return err
}

// Delete removes the snapshot. The user index may keep the id until it is trimmed.
func (s *UpstashRedisStore) Delete(ctx context.Context, runID string) error {
	key, err := s.runKey(runID)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, []any{"DEL", key})
	return err
}

// RecentRunIDs returns up to limit run ids for userID, newest first.
func (s *UpstashRedisStore) RecentRunIDs(ctx context.Context, userID string, limit int) ([]string, error) {
	indexKey, err := s.userIndexKey(userID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.limit() {
		limit = s.limit()
	}

	resp, err := s.exec(ctx, []any{"LRANGE", indexKey, 0, limit - 1})
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(resp.Result, &ids); err != nil {
		return nil, fmt.Errorf("decode run index: %w", err)
	}
	return ids, nil
}

func (s *UpstashRedisStore) limit() int {
	if s.indexLimit <= 0 {
		return defaultIndexLimit
	}
	return s.indexLimit
}

func (s *UpstashRedisStore) prefix() string {
	if p := strings.TrimSpace(s.keyPrefix); p != "" {
		return p
	}
	return defaultStoreKeyPrefix
}

func (s *UpstashRedisStore) runKey(runID string) (string, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return "", ErrInvalidRun
	}
	return s.prefix() + "run:" + runID, nil
}

func (s *UpstashRedisStore) userIndexKey(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrInvalidUserID
	}
	return s.prefix() + "user:" + userID + ":runs", nil
}

func (s *UpstashRedisStore) exec(ctx context.Context, command []any) (*redisRESTResponse, error) {
	if len(command) == 0 {
		return nil, errors.New("empty redis command")
	}
	var parsed redisRESTResponse
	if err := s.post(ctx, s.baseURL, command, &parsed); err != nil {
		return nil, err
	}
	if parsed.Error != "" {
		return nil, errors.New(parsed.Error)
	}
	return &parsed, nil
}

// pipeline sends commands to the /pipeline endpoint. Upstash runs them in order but
// not atomically, so the first failing command is reported.
func (s *UpstashRedisStore) pipeline(ctx context.Context, commands [][]any) ([]redisRESTResponse, error) {
	if len(commands) == 0 {
		return nil, errors.New("empty redis pipeline")
	}
	var parsed []redisRESTResponse
	if err := s.post(ctx, s.baseURL+"/pipeline", commands, &parsed); err != nil {
		return nil, err
	}
	if len(parsed) != len(commands) {
		return nil, fmt.Errorf("redis pipeline returned %d results for %d commands", len(parsed), len(commands))
	}
	for i, r := range parsed {
		if r.Error != "" {
			return nil, fmt.Errorf("redis pipeline command %d (%v): %s", i, commands[i][0], r.Error)
		}
	}
	return parsed, nil
}

func (s *UpstashRedisStore) post(ctx context.Context, endpoint string, payload any, out any) error {
	if s == nil {
		return errors.New("nil store")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal redis command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build redis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute redis request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return fmt.Errorf("read redis response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("redis http status=%d body=%s", resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode redis response: %w", err)
	}
	return nil
}

func ttlSeconds(ttl time.Duration) int64 {
	seconds := ttl / time.Second
	if seconds <= 0 {
		return 1
	}
	if ttl%time.Second != 0 {
		seconds++
	}
	return int64(seconds)
}
