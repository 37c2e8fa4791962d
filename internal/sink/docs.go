package sink

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2/google"
)

const docsScope = "https://www.googleapis.com/auth/documents"

// GoogleDoc appends entries to a hosted document. The document has external
// structure, so appends are positioned: read the document, find the end of
// the final structural element, and insert just before the terminal newline
// the API maintains there.
type GoogleDoc struct {
	DocID    string
	BaseURL  string
	HTTP     *http.Client
	MaxWords int
}

func NewGoogleDoc(ctx context.Context, docID, credentialsB64 string, maxWords int) (*GoogleDoc, error) {
	creds, err := base64.StdEncoding.DecodeString(credentialsB64)
	if err != nil {
		return nil, fmt.Errorf("decoding credentials: %w", err)
	}

	jwtCfg, err := google.JWTConfigFromJSON(creds, docsScope)
	if err != nil {
		return nil, fmt.Errorf("parsing service account credentials: %w", err)
	}

	client := jwtCfg.Client(ctx)
	client.Timeout = 30 * time.Second

	return &GoogleDoc{
		DocID:    docID,
		BaseURL:  "https://docs.googleapis.com/v1",
		HTTP:     client,
		MaxWords: maxWords,
	}, nil
}

type docResponse struct {
	Body struct {
		Content []struct {
			EndIndex int `json:"endIndex"`
		} `json:"content"`
	} `json:"body"`
}

func (g *GoogleDoc) Append(ctx context.Context, e Entry) error {
	end, err := g.endIndex(ctx)
	if err != nil {
		return fmt.Errorf("reading document: %w", err)
	}

	request := map[string]any{
		"requests": []any{
			map[string]any{
				"insertText": map[string]any{
					"location": map[string]any{"index": end - 1},
					"text":     Format(e, g.MaxWords),
				},
			},
		},
	}
	body, err := json.Marshal(request)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/documents/%s:batchUpdate", g.BaseURL, g.DocID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := g.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("batch update: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		resBody, _ := io.ReadAll(res.Body)
		return fmt.Errorf("batch update status %d: %s", res.StatusCode, resBody)
	}
	return nil
}

// endIndex returns the end index of the document's last structural element.
func (g *GoogleDoc) endIndex(ctx context.Context) (int, error) {
	url := fmt.Sprintf("%s/documents/%s", g.BaseURL, g.DocID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	res, err := g.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return 0, err
	}
	if res.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("document get status %d: %s", res.StatusCode, body)
	}

	var doc docResponse
	if err := json.Unmarshal(body, &doc); err != nil {
		return 0, fmt.Errorf("decoding document: %w", err)
	}
	if len(doc.Body.Content) == 0 {
		return 0, fmt.Errorf("document has no content elements")
	}

	return doc.Body.Content[len(doc.Body.Content)-1].EndIndex, nil
}
