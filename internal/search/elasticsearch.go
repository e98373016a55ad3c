package search

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"time"

	"example.com/backstage/services/analytics/config"
	"example.com/backstage/services/analytics/internal/models"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DefaultSearchSize caps the number of hits returned by SearchEvents
const DefaultSearchSize = 100

// ErrSearchDisabled is returned when the mirror is not configured
var ErrSearchDisabled = errors.New("event search is disabled")

// ElasticClient mirrors ingested events into Elasticsearch
type ElasticClient struct {
	client *elasticsearch.Client
	config config.ElasticConfig
}

// eventDocument is the indexed shape of an event
type eventDocument struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	UserID    string `json:"user_id"`
	JobID     string `json:"job_id"`
	Metadata  string `json:"metadata"`
	Timestamp string `json:"timestamp"`
}

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

func (d eventDocument) toEvent() (models.Event, error) {
	id, err := uuid.Parse(d.EventID)
	if err != nil {
		return models.Event{}, errors.Wrap(err, "invalid event_id")
	}
	ts, err := time.Parse(time.RFC3339Nano, d.Timestamp)
	if err != nil {
		return models.Event{}, errors.Wrap(err, "invalid timestamp")
	}
	return models.Event{
		EventID:   id,
		EventType: d.EventType,
		UserID:    d.UserID,
		JobID:     d.JobID,
		Metadata:  d.Metadata,
		Timestamp: ts.UTC(),
	}, nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source eventDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// NewElasticClient creates a new Elasticsearch client. A disabled config yields a client whose Enabled is false.
func NewElasticClient(cfg config.ElasticConfig) (*ElasticClient, error) {
	if !cfg.Enabled {
		log.Info().Msg("Elasticsearch mirror disabled")
		return &ElasticClient{config: cfg}, nil
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}

	return &ElasticClient{client: client, config: cfg}, nil
}

// Enabled reports whether documents are mirrored
func (c *ElasticClient) Enabled() bool {
	return c != nil && c.client != nil
}

func (c *ElasticClient) index() string {
	return config.FormatIndex(c.config, c.config.Index)
}

// IndexEvent indexes an event under its event id
func (c *ElasticClient) IndexEvent(ctx context.Context, event *models.Event) error {
	if !c.Enabled() {
		return ErrSearchDisabled
	}

	doc := eventDocument{
		EventID:   event.EventID.String(),
		EventType: event.EventType,
		UserID:    event.UserID,
		JobID:     event.JobID,
		Metadata:  event.Metadata,
		Timestamp: event.Timestamp.UTC().Format(timestampLayout),
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to marshal event document")
	}

	req := esapi.IndexRequest{
		Index:      c.index(),
		DocumentID: doc.EventID,
		Body:       bytes.NewReader(body),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch index request")
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("index", res)
	}

	log.Debug().Str("event_id", doc.EventID).Msg("event indexed")
	return nil
}

// SearchEvents returns the most recent mirrored events of a user, optionally narrowed to one event type
func (c *ElasticClient) SearchEvents(ctx context.Context, userID, eventType string, size int) ([]models.Event, error) {
	if !c.Enabled() {
		return nil, ErrSearchDisabled
	}
	if size <= 0 {
		size = DefaultSearchSize
	}

	filters := []map[string]interface{}{
		{"term": map[string]interface{}{"user_id.keyword": userID}},
	}
	if eventType != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"event_type.keyword": eventType},
		})
	}
	query := map[string]interface{}{
		"size":  size,
		"query": map[string]interface{}{"bool": map[string]interface{}{"filter": filters}},
		"sort":  []map[string]interface{}{{"timestamp": map[string]string{"order": "desc"}}},
	}

	body, err := json.Marshal(query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal search query")
	}

	// The index only exists once the first event is mirrored
	ignoreUnavailable := true
	req := esapi.SearchRequest{
		Index:             []string{c.index()},
		Body:              bytes.NewReader(body),
		IgnoreUnavailable: &ignoreUnavailable,
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute Elasticsearch search request")
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, responseError("search", res)
	}

	var result searchResponse
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "failed to parse Elasticsearch search response")
	}

	events := make([]models.Event, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		event, err := hit.Source.toEvent()
		if err != nil {
			log.Warn().Err(err).Str("event_id", hit.Source.EventID).Msg("skipping malformed search hit")
			continue
		}
		events = append(events, event)
	}

	return events, nil
}

func responseError(op string, res *esapi.Response) error {
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return errors.Wrapf(err, "failed to read Elasticsearch %s error response", op)
	}
	return errors.Errorf("Elasticsearch %s error [%d]: %s", op, res.StatusCode, string(raw))
}
