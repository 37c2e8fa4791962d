package checkpoint

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// Store keeps the two run checkpoints — the scan watermark and the set of
// processed video ids — as JSON blobs in a repository via the contents API.
// The blob sha is the version token: every write is conditioned on the sha
// read just before it.
type Store struct {
	Token   string
	Repo    string
	BaseURL string
	HTTP    *http.Client

	// DefaultLookback is how far back a fresh or unreachable store reports
	// the watermark to be.
	DefaultLookback time.Duration

	log *logrus.Entry
}

const (
	watermarkKey = "last_check.json"
	processedKey = "processed_ids.json"
)

var (
	ErrNotFound = errors.New("checkpoint blob not found")
	ErrConflict = errors.New("checkpoint version conflict")
)

func New(token, repo string, log *logrus.Entry) *Store {
	return &Store{
		Token:           token,
		Repo:            repo,
		BaseURL:         "https://api.github.com",
		HTTP:            &http.Client{Timeout: 12 * time.Second},
		DefaultLookback: 24 * time.Hour,
		log:             log.WithField("module", "checkpoint"),
	}
}

type watermarkBlob struct {
	LastCheck string `json:"last_check"`
}

type processedBlob struct {
	IDs []string `json:"ids"`
}

// Watermark returns the saved scan boundary. It never fails: absence or an
// unreachable store degrades to now minus DefaultLookback.
func (s *Store) Watermark(ctx context.Context) time.Time {
	fallback := time.Now().Add(-s.DefaultLookback)

	blob, _, err := s.get(ctx, watermarkKey)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.WithError(err).Warn("watermark read failed, using default lookback")
		}
		return fallback
	}

	var wm watermarkBlob
	if err := json.Unmarshal(blob, &wm); err != nil {
		s.log.WithError(err).Warn("watermark blob corrupt, using default lookback")
		return fallback
	}
	t, err := time.Parse(time.RFC3339, wm.LastCheck)
	if err != nil {
		s.log.WithError(err).Warn("watermark timestamp invalid, using default lookback")
		return fallback
	}
	return t
}

// SaveWatermark is best-effort; the caller logs failures and moves on.
func (s *Store) SaveWatermark(ctx context.Context, t time.Time) error {
	blob, err := json.Marshal(watermarkBlob{LastCheck: t.UTC().Format(time.RFC3339)})
	if err != nil {
		return err
	}
	return s.putWithRefetch(ctx, watermarkKey, blob, "Update last check time")
}

// ProcessedIDs returns the durable set of video ids already written to the
// sink. Fails open to an empty set: reprocessing is absorbed downstream by
// the sink dedup, unavailability should not stop the run.
func (s *Store) ProcessedIDs(ctx context.Context) map[string]bool {
	ids := map[string]bool{}

	blob, _, err := s.get(ctx, processedKey)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.WithError(err).Warn("processed set read failed, starting empty")
		}
		return ids
	}

	var p processedBlob
	if err := json.Unmarshal(blob, &p); err != nil {
		s.log.WithError(err).Warn("processed set blob corrupt, starting empty")
		return ids
	}
	for _, id := range p.IDs {
		ids[id] = true
	}
	return ids
}

// SaveProcessedIDs replaces the full set.
func (s *Store) SaveProcessedIDs(ctx context.Context, ids map[string]bool) error {
	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	blob, err := json.Marshal(processedBlob{IDs: sorted})
	if err != nil {
		return err
	}
	return s.putWithRefetch(ctx, processedKey, blob, "Update processed video ids")
}

// putWithRefetch reads the current sha, submits the conditioned write and,
// on a version conflict, refetches and tries again under a bounded backoff.
func (s *Store) putWithRefetch(ctx context.Context, key string, blob []byte, message string) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second

	op := func() error {
		_, sha, err := s.get(ctx, key)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return backoff.Permanent(err)
		}
		err = s.put(ctx, key, blob, sha, message)
		if errors.Is(err, ErrConflict) {
			s.log.WithField("key", key).Warn("version conflict, refetching")
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}

type contentsResponse struct {
	Content string `json:"content"`
	Sha     string `json:"sha"`
}

func (s *Store) get(ctx context.Context, key string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.contentsURL(key), nil)
	if err != nil {
		return nil, "", err
	}
	s.auth(req)

	res, err := s.HTTP.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading contents response: %w", err)
	}

	switch {
	case res.StatusCode == http.StatusNotFound:
		return nil, "", ErrNotFound
	case res.StatusCode != http.StatusOK:
		return nil, "", fmt.Errorf("contents get %q: status %d: %s", key, res.StatusCode, body)
	}

	var cr contentsResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, "", fmt.Errorf("decoding contents response: %w", err)
	}

	decoded, err := base64.StdEncoding.DecodeString(cleanBase64(cr.Content))
	if err != nil {
		return nil, "", fmt.Errorf("decoding blob content: %w", err)
	}
	return decoded, cr.Sha, nil
}

func (s *Store) put(ctx context.Context, key string, blob []byte, sha, message string) error {
	payload := map[string]string{
		"message": message,
		"content": base64.StdEncoding.EncodeToString(blob),
	}
	if sha != "" {
		payload["sha"] = sha
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.contentsURL(key), bytes.NewReader(body))
	if err != nil {
		return err
	}
	s.auth(req)
	req.Header.Set("Content-Type", "application/json")

	res, err := s.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	resBody, _ := io.ReadAll(res.Body)
	switch res.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return nil
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return fmt.Errorf("contents put %q: %s: %w", key, resBody, ErrConflict)
	default:
		return fmt.Errorf("contents put %q: status %d: %s", key, res.StatusCode, resBody)
	}
}

func (s *Store) contentsURL(key string) string {
	return fmt.Sprintf("%s/repos/%s/contents/%s", s.BaseURL, s.Repo, key)
}

func (s *Store) auth(req *http.Request) {
	req.Header.Set("Authorization", "token "+s.Token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
}

// The contents API wraps base64 at 60 columns.
func cleanBase64(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' || s[i] == '\r' {
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}
