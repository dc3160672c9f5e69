package elasticsearch

// DefaultIndexName is the default Elasticsearch index used for product documents.
const DefaultIndexName = "storefront_products"

// buildIndexMapping returns the JSON mapping for the products index. Text
// fields carry a wildcard sub-field for case-insensitive substring matching;
// set filters run against lower-case normalized keywords.
func buildIndexMapping() string {
	return `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0,
    "analysis": {
      "normalizer": {
        "lowercase_normalizer": {
          "type": "custom",
          "filter": ["lowercase"]
        }
      },
      "analyzer": {
        "folding_analyzer": {
          "type": "custom",
          "tokenizer": "standard",
          "filter": ["lowercase", "asciifolding"]
        }
      }
    }
  },
  "mappings": {
    "properties": {
      "id":             { "type": "keyword" },
      "name":           { "type": "text", "analyzer": "folding_analyzer", "fields": { "sort": { "type": "keyword", "normalizer": "lowercase_normalizer", "ignore_above": 256 }, "raw": { "type": "keyword", "ignore_above": 256 }, "wildcard": { "type": "wildcard" } } },
      "slug":           { "type": "keyword" },
      "description":    { "type": "text", "analyzer": "folding_analyzer", "fields": { "wildcard": { "type": "wildcard" } } },
      "price":          { "type": "long" },
      "original_price": { "type": "long" },
      "rating":         { "type": "float" },
      "review_count":   { "type": "integer" },
      "category":       { "type": "keyword", "normalizer": "lowercase_normalizer", "fields": { "wildcard": { "type": "wildcard" }, "raw": { "type": "keyword" } } },
      "brand":          { "type": "keyword", "normalizer": "lowercase_normalizer", "fields": { "wildcard": { "type": "wildcard" }, "raw": { "type": "keyword" } } },
      "location":       { "type": "keyword", "normalizer": "lowercase_normalizer" },
      "in_stock":       { "type": "boolean" },
      "free_shipping":  { "type": "boolean" },
      "sold_count":     { "type": "integer" },
      "tags":           { "type": "keyword", "normalizer": "lowercase_normalizer" },
      "image_url":      { "type": "keyword", "index": false },
      "created_at":     { "type": "date" }
    }
  }
}`
}
