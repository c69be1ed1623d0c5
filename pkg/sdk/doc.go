// Package elasticpress is a Go client for compiling content queries into
// Elasticsearch documents and serving meta facets over them.
//
// The client wraps the same services as the HTTP API: the query compiler,
// the meta facet engine with its Redis-backed value cache, and content
// indexing with change events.
//
//	client, _ := elasticpress.New(ctx,
//	    elasticpress.WithRedis("localhost:6379", ""),
//	    elasticpress.WithElasticsearch("http://localhost:9200"),
//	    elasticpress.WithFacetFields("color", "size"),
//	)
//	defer client.Close()
//
//	res, _ := client.Search(ctx, []byte(`{"s":"shoes","ep_facet":true}`),
//	    elasticpress.Selection{"color": {"red"}},
//	)
//	for field, buckets := range res.Facets {
//	    fmt.Println(field, buckets)
//	}
//
// For tests and local tools WithBleve("") serves queries from an in-memory
// index instead of Elasticsearch.
package elasticpress
