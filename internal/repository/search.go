package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "leak-audit/internal/common/errors"
	"leak-audit/internal/leak"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const leakIndexMapping = `{
  "mappings": {
    "properties": {
      "runId":             {"type": "keyword"},
      "subject":           {"type": "keyword"},
      "provider":          {"type": "keyword"},
      "severity":          {"type": "keyword"},
      "type":              {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
      "name":              {"type": "text"},
      "cause":             {"type": "text"},
      "recommendedAction": {"type": "text"},
      "stage":             {"type": "keyword"},
      "leadSource":        {"type": "keyword"},
      "priorityScore":     {"type": "double"},
      "analyzedAt":        {"type": "date"}
    }
  }
}`

type leakDocument struct {
	leak.Leak
	RunID      string    `json:"runId"`
	Subject    string    `json:"subject"`
	Provider   string    `json:"provider"`
	AnalyzedAt time.Time `json:"analyzedAt"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source leakDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type bulkResponse struct {
	Errors bool `json:"errors"`
}

// LeakIndex writes leaks to Elasticsearch and runs full-text queries
// over them.
type LeakIndex struct {
	client *elasticsearch.Client
	index  string
}

func NewLeakIndex(client *elasticsearch.Client, index string) *LeakIndex {
	return &LeakIndex{client: client, index: index}
}

// EnsureIndex creates the index with its mapping unless it already exists.
func (x *LeakIndex) EnsureIndex(ctx context.Context) error {
	res, err := esapi.IndicesExistsRequest{Index: []string{x.index}}.Do(ctx, x.client)
	if err != nil {
		return apperrors.NewSearchQueryFailedError(err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	res, err = esapi.IndicesCreateRequest{Index: x.index, Body: strings.NewReader(leakIndexMapping)}.Do(ctx, x.client)
	if err != nil {
		return apperrors.NewSearchQueryFailedError(err)
	}
	defer res.Body.Close()
	if res.IsError() && !strings.Contains(res.String(), "resource_already_exists_exception") {
		return apperrors.NewSearchQueryFailedError(fmt.Errorf("create index: %s", res.Status()))
	}
	return nil
}

// IndexReport bulk-indexes every leak of report. Document ids are
// runId:leakId so re-indexing a run is idempotent.
func (x *LeakIndex) IndexReport(ctx context.Context, report leak.Report) error {
	if len(report.Leaks) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, l := range report.Leaks {
		meta := map[string]map[string]string{
			"index": {"_index": x.index, "_id": report.RunID + ":" + l.ID},
		}
		if err := enc.Encode(meta); err != nil {
			return err
		}
		if err := enc.Encode(leakDocument{
			Leak:       l,
			RunID:      report.RunID,
			Subject:    report.Subject,
			Provider:   report.Provider,
			AnalyzedAt: report.AnalyzedAt,
		}); err != nil {
			return err
		}
	}

	res, err := esapi.BulkRequest{Body: &buf}.Do(ctx, x.client)
	if err != nil {
		return apperrors.NewSearchQueryFailedError(err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return apperrors.NewSearchQueryFailedError(fmt.Errorf("bulk: %s", res.Status()))
	}

	var out bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return apperrors.NewSearchQueryFailedError(err)
	}
	if out.Errors {
		return apperrors.NewSearchQueryFailedError(fmt.Errorf("bulk: some documents were rejected"))
	}
	return nil
}

// Search finds the subject's indexed leaks matching q, best match first.
func (x *LeakIndex) Search(ctx context.Context, subject, q string, size int) ([]leak.Leak, error) {
	body, err := json.Marshal(buildLeakQuery(subject, q, size))
	if err != nil {
		return nil, err
	}

	res, err := x.client.Search(
		x.client.Search.WithContext(ctx),
		x.client.Search.WithIndex(x.index),
		x.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, apperrors.NewSearchQueryFailedError(err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, apperrors.NewSearchQueryFailedError(fmt.Errorf("search: %s", res.Status()))
	}

	var out searchResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, apperrors.NewSearchQueryFailedError(err)
	}

	leaks := make([]leak.Leak, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		leaks = append(leaks, h.Source.Leak)
	}
	return leaks, nil
}

func buildLeakQuery(subject, q string, size int) map[string]interface{} {
	if size <= 0 || size > 100 {
		size = 20
	}

	must := []interface{}{}
	if strings.TrimSpace(q) != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  q,
				"fields": []string{"name^3", "type^2", "cause", "recommendedAction", "stage"},
				"type":   "best_fields",
			},
		})
	} else {
		must = append(must, map[string]interface{}{"match_all": map[string]interface{}{}})
	}

	return map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must":   must,
				"filter": []interface{}{map[string]interface{}{"term": map[string]interface{}{"subject": subject}}},
			},
		},
		"sort": []interface{}{"_score", map[string]interface{}{"priorityScore": "desc"}},
	}
}
