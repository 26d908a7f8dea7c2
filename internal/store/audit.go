// internal/store/audit.go
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"lending-workers/internal/models"
)

// ElasticAuditor indexes accepted transitions into Elasticsearch for
// admin-side search. Postgres stays the source of truth; the index is a
// best-effort projection.
type ElasticAuditor struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticAuditor(client *elasticsearch.Client, index string) *ElasticAuditor {
	if index == "" {
		index = "application-transitions"
	}
	return &ElasticAuditor{client: client, index: index}
}

type transitionDocument struct {
	TransitionID string                 `json:"transitionId"`
	SessionID    string                 `json:"sessionId"`
	FromStep     string                 `json:"fromStep"`
	ToStep       string                 `json:"toStep"`
	Channel      string                 `json:"channel"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
}

// IndexTransition writes one transition document keyed by transition id.
func (a *ElasticAuditor) IndexTransition(ctx context.Context, t *models.Transition) error {
	doc := transitionDocument{
		TransitionID: t.ID,
		SessionID:    t.SessionID,
		FromStep:     string(t.FromStep),
		ToStep:       string(t.ToStep),
		Channel:      string(t.Channel),
		Payload:      t.Payload,
		Timestamp:    t.CreatedAt,
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal transition document: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := a.client.Index(
		a.index,
		bytes.NewReader(body),
		a.client.Index.WithContext(ctx),
		a.client.Index.WithDocumentID(t.ID),
	)
	if err != nil {
		return fmt.Errorf("index transition: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index transition: %s", res.Status())
	}
	return nil
}
