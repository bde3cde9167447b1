package search

import (
	"fmt"

	"watch-market-portal/internal/models"

	"github.com/meilisearch/meilisearch-go"
)

type SearchClient struct {
	client *meilisearch.Client
	index  string
}

func NewSearchClient(host, apiKey string) *SearchClient {
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   host,
		APIKey: apiKey,
	})

	return &SearchClient{
		client: client,
		index:  "watch_models",
	}
}

// InitIndex initializes the Meilisearch index
func (s *SearchClient) InitIndex() error {
	// Create index if it doesn't exist
	_, err := s.client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        s.index,
		PrimaryKey: "id",
	})
	// Ignore error if index already exists
	if err != nil && err.Error() != "index already exists" {
		return err
	}

	// Configure searchable attributes
	_, err = s.client.Index(s.index).UpdateSearchableAttributes(&[]string{
		"model_name",
		"ref_code",
		"collection",
		"dial",
		"case_material",
	})
	if err != nil {
		return err
	}

	// Configure filterable attributes
	_, err = s.client.Index(s.index).UpdateFilterableAttributes(&[]string{
		"id",
		"brand",
		"collection",
		"msrp",
		"size_mm",
	})
	if err != nil {
		return err
	}

	// Configure sortable attributes
	_, err = s.client.Index(s.index).UpdateSortableAttributes(&[]string{
		"msrp",
		"model_name",
		"size_mm",
	})
	return err
}

// IndexModel indexes a single watch model
func (s *SearchClient) IndexModel(model *models.WatchModel) error {
	_, err := s.client.Index(s.index).AddDocuments([]models.WatchModel{*model})
	return err
}

// IndexModels indexes multiple watch models
func (s *SearchClient) IndexModels(watchModels []models.WatchModel) error {
	if len(watchModels) == 0 {
		return nil
	}
	_, err := s.client.Index(s.index).AddDocuments(watchModels)
	return err
}

// SearchRequest represents search parameters for the model index
type SearchRequest struct {
	Query      string
	Limit      int64
	Offset     int64
	Brand      string
	Collection string
	Sort       []string
}

// SearchResult represents search results
type SearchResult struct {
	Hits           []models.WatchModel
	TotalHits      int64
	ProcessingTime int64
}

// Search searches for models by free text
func (s *SearchClient) Search(query string, limit int64) ([]models.WatchModel, error) {
	result, err := s.AdvancedSearch(SearchRequest{Query: query, Limit: limit})
	if err != nil {
		return nil, err
	}
	return result.Hits, nil
}

// AdvancedSearch performs search with filters and sorting
func (s *SearchClient) AdvancedSearch(req SearchRequest) (*SearchResult, error) {
	if req.Limit == 0 {
		req.Limit = 20
	}

	searchReq := &meilisearch.SearchRequest{
		Limit:  req.Limit,
		Offset: req.Offset,
	}

	filter := ""
	if req.Brand != "" {
		filter = fmt.Sprintf("brand = '%s'", req.Brand)
	}
	if req.Collection != "" {
		if filter != "" {
			filter += " AND "
		}
		filter += fmt.Sprintf("collection = '%s'", req.Collection)
	}
	if filter != "" {
		searchReq.Filter = filter
	}

	if len(req.Sort) > 0 {
		searchReq.Sort = req.Sort
	}

	searchRes, err := s.client.Index(s.index).Search(req.Query, searchReq)
	if err != nil {
		return nil, err
	}

	hits := make([]models.WatchModel, 0, len(searchRes.Hits))
	for _, hit := range searchRes.Hits {
		hits = append(hits, parseModelFromHit(hit))
	}

	return &SearchResult{
		Hits:           hits,
		TotalHits:      searchRes.EstimatedTotalHits,
		ProcessingTime: searchRes.ProcessingTimeMs,
	}, nil
}

// parseModelFromHit converts a search hit to a WatchModel
func parseModelFromHit(hit interface{}) models.WatchModel {
	hitMap, ok := hit.(map[string]interface{})
	if !ok {
		return models.WatchModel{}
	}

	model := models.WatchModel{
		Brand:        getString(hitMap, "brand"),
		Collection:   getString(hitMap, "collection"),
		ModelName:    getString(hitMap, "model_name"),
		RefCode:      getString(hitMap, "ref_code"),
		CaseMaterial: getString(hitMap, "case_material"),
		Bracelet:     getString(hitMap, "bracelet"),
		Dial:         getString(hitMap, "dial"),
		ImageURL:     getString(hitMap, "image_url"),
	}

	if id, ok := hitMap["id"].(float64); ok {
		model.ID = int64(id)
	}
	if msrp, ok := hitMap["msrp"].(float64); ok {
		model.MSRP = &msrp
	}
	if size, ok := hitMap["size_mm"].(float64); ok {
		model.SizeMM = &size
	}

	return model
}

// getString safely extracts a string from map
func getString(m map[string]interface{}, key string) string {
	if val, ok := m[key].(string); ok {
		return val
	}
	return ""
}
