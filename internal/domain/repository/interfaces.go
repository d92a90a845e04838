package repository

import "context"

// ResultPublisher delivers finished analysis jobs to downstream consumers.
type ResultPublisher interface {
	PublishResult(ctx context.Context, key string, result any) error
	Close() error
}

type Metrics interface {
	RecordFetch(provider, outcome string)
	RecordCacheLookup(hit bool)
	RecordAnalysis(kind string, seconds float64, errKind string)
	RecordPaths(n int)
	RecordLastPrice(symbol string, price float64)
}
