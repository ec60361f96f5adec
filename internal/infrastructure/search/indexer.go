// Package search mirrors accounts into Elasticsearch and queries them back.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-ddd-accounts/internal/application"
	"github.com/oksasatya/go-ddd-accounts/internal/domain/entity"
)

const requestTimeout = 3 * time.Second

// AccountDoc is the indexed shape of an account. Password hashes are never
// indexed.
type AccountDoc struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	FullName    string    `json:"full_name"`
	IsStaff     bool      `json:"is_staff"`
	IsSuperuser bool      `json:"is_superuser"`
	IsActive    bool      `json:"is_active"`
	DateJoined  time.Time `json:"date_joined"`
	CreatedOn   time.Time `json:"created_on"`
	UpdatedOn   time.Time `json:"updated_on"`
}

func NewAccountDoc(a *entity.Account) AccountDoc {
	return AccountDoc{
		ID:          a.ID,
		Email:       a.Email,
		FirstName:   a.FirstName,
		LastName:    a.LastName,
		FullName:    a.FullName(),
		IsStaff:     a.IsStaff,
		IsSuperuser: a.IsSuperuser,
		IsActive:    a.IsActive,
		DateJoined:  a.DateJoined,
		CreatedOn:   a.CreatedOn,
		UpdatedOn:   a.UpdatedOn,
	}
}

type Hit struct {
	Score   float64    `json:"_score"`
	Account AccountDoc `json:"_source"`
}

type Indexer struct {
	ES     *elasticsearch.Client
	Index  string
	Logger *logrus.Logger
}

func NewIndexer(es *elasticsearch.Client, index string, logger *logrus.Logger) *Indexer {
	return &Indexer{ES: es, Index: index, Logger: logger}
}

func (i *Indexer) enabled() bool { return i != nil && i.ES != nil && i.Index != "" }

const accountsMapping = `{
  "mappings": {
    "properties": {
      "id":          {"type": "keyword"},
      "email":       {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "first_name":  {"type": "text"},
      "last_name":   {"type": "text"},
      "full_name":   {"type": "text"},
      "is_staff":    {"type": "boolean"},
      "is_superuser":{"type": "boolean"},
      "is_active":   {"type": "boolean"},
      "date_joined": {"type": "date"},
      "created_on":  {"type": "date"},
      "updated_on":  {"type": "date"}
    }
  }
}`

// EnsureIndex creates the accounts index with its mapping when it does not
// exist yet.
func (i *Indexer) EnsureIndex(ctx context.Context) error {
	if !i.enabled() {
		return nil
	}
	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	res, err := esapi.IndicesExistsRequest{Index: []string{i.Index}}.Do(c, i.ES)
	if err != nil {
		return err
	}
	_ = res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("es index exists %s: %s", i.Index, res.Status())
	}

	res, err = esapi.IndicesCreateRequest{Index: i.Index, Body: strings.NewReader(accountsMapping)}.Do(c, i.ES)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return fmt.Errorf("es create index %s: %s", i.Index, res.Status())
	}
	if i.Logger != nil {
		i.Logger.WithField("index", i.Index).Info("es index created")
	}
	return nil
}

// OnAccountEvent keeps the index in step with committed writes. Deleted
// accounts are removed from the index.
func (i *Indexer) OnAccountEvent(ctx context.Context, ev application.AccountEvent, a *entity.Account) error {
	if !i.enabled() {
		return nil
	}
	if ev == application.EventDeleted || a.IsDeleted() {
		return i.Remove(ctx, a.ID)
	}
	return i.IndexAccount(ctx, a)
}

func (i *Indexer) IndexAccount(ctx context.Context, a *entity.Account) error {
	if !i.enabled() {
		return nil
	}
	b, err := json.Marshal(NewAccountDoc(a))
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{Index: i.Index, DocumentID: a.ID, Body: bytes.NewReader(b), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	res, err := req.Do(c, i.ES)
	if err != nil {
		if i.Logger != nil {
			i.Logger.WithError(err).WithField("account_id", a.ID).Warn("es index failed")
		}
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return fmt.Errorf("es index %s: %s", a.ID, res.Status())
	}
	return nil
}

func (i *Indexer) Remove(ctx context.Context, id string) error {
	if !i.enabled() {
		return nil
	}
	req := esapi.DeleteRequest{Index: i.Index, DocumentID: id}
	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	res, err := req.Do(c, i.ES)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("es delete %s: %s", id, res.Status())
	}
	return nil
}

// SearchAccounts runs a multi_match over email and names. size is clamped to
// 1..50 with a default of 10.
func (i *Indexer) SearchAccounts(ctx context.Context, q string, size int) ([]Hit, error) {
	if !i.enabled() {
		return []Hit{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"email^2", "full_name", "first_name", "last_name"},
			},
		},
		"size": size,
	}
	b, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := i.ES.Search(i.ES.Search.WithContext(c), i.ES.Search.WithIndex(i.Index), i.ES.Search.WithBody(bytes.NewReader(b)))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = res.Body.Close()
	}()
	if res.IsError() {
		return nil, fmt.Errorf("es search: %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []Hit `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	out := make([]Hit, 0, len(parsed.Hits.Hits))
	out = append(out, parsed.Hits.Hits...)
	return out, nil
}

var _ application.AccountListener = (*Indexer)(nil)
