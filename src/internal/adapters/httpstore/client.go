package httpstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/timepledge/timepledge/src/internal/domain"
)

// HTTPClientStore lets the device daemon reach the authoritative store
// through the Control Plane instead of holding database credentials.
// It implements the device-side RemoteStore surface only; transactional
// updates stay server-side.
type HTTPClientStore struct {
	baseURL string
	client  *http.Client
}

func NewClientStore(baseURL string) *HTTPClientStore {
	return &HTTPClientStore{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *HTTPClientStore) Get(ctx context.Context, userID string) (*domain.UserDocument, error) {
	endpoint := s.baseURL + "/internal/store/get?user=" + url.QueryEscape(userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("store get: unexpected status %d", resp.StatusCode)
	}

	var doc domain.UserDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *HTTPClientStore) MergeWrite(ctx context.Context, userID string, fields domain.PartialFields) error {
	payload := mergeRequest{UserID: userID, Fields: fields}
	return s.post(ctx, "/internal/store/merge", payload)
}

func (s *HTTPClientStore) Overwrite(ctx context.Context, userID string, doc *domain.UserDocument) error {
	payload := createRequest{UserID: userID, Document: doc}
	return s.post(ctx, "/internal/store/create", payload)
}

func (s *HTTPClientStore) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("store %s: unexpected status %d", path, resp.StatusCode)
	}
	return nil
}

type mergeRequest struct {
	UserID string               `json:"userId"`
	Fields domain.PartialFields `json:"fields"`
}

type createRequest struct {
	UserID   string               `json:"userId"`
	Document *domain.UserDocument `json:"document"`
}
