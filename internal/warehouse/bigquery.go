package warehouse

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// BigQueryConfig selects the project and dataset that hold the invoice table.
type BigQueryConfig struct {
	ProjectID       string
	CredentialsFile string
	Dataset         string
	Location        string
	QueryTimeout    time.Duration
}

// BigQuery wraps the BigQuery SDK client. The client is shared; each call runs
// its own job.
type BigQuery struct {
	client  *bigquery.Client
	dataset string
	loc     string
	timeout time.Duration
}

// NewBigQuery creates a BigQuery client
func NewBigQuery(ctx context.Context, cfg BigQueryConfig) (*BigQuery, error) {
	if cfg.ProjectID == "" || cfg.Dataset == "" {
		return nil, fmt.Errorf("bigquery project and dataset are required")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery.NewClient: %w", err)
	}
	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &BigQuery{client: client, dataset: cfg.Dataset, loc: cfg.Location, timeout: timeout}, nil
}

func (b *BigQuery) Dialect() string { return "BigQuery" }

// Close releases the BigQuery client
func (b *BigQuery) Close() error {
	return b.client.Close()
}

// Ping verifies BigQuery connectivity
func (b *BigQuery) Ping(ctx context.Context) error {
	_, err := b.Query(ctx, "SELECT 1")
	return err
}

// DescribeTable reads the table schema from its metadata.
func (b *BigQuery) DescribeTable(ctx context.Context, table string) ([]Column, error) {
	if err := ValidateIdentifier(table); err != nil {
		return nil, err
	}
	meta, err := b.client.Dataset(b.dataset).Table(table).Metadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("get table %q.%q: %w", b.dataset, table, err)
	}
	cols := make([]Column, 0, len(meta.Schema))
	for _, f := range meta.Schema {
		cols = append(cols, Column{Name: f.Name, Type: string(f.Type)})
	}
	return cols, nil
}

// Query runs statement as a job in the configured dataset and reads every row.
func (b *BigQuery) Query(ctx context.Context, statement string) (*Result, error) {
	q := b.client.Query(statement)
	q.DefaultDatasetID = b.dataset
	if b.loc != "" {
		q.Location = b.loc
	}

	qCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	start := time.Now()
	job, err := q.Run(qCtx)
	if err != nil {
		return nil, classifyBigQuery(fmt.Errorf("query run: %w", err))
	}
	status, err := job.Wait(qCtx)
	if err != nil {
		return nil, classifyBigQuery(fmt.Errorf("job wait: %w", err))
	}
	if err := status.Err(); err != nil {
		return nil, &QueryError{Err: fmt.Errorf("query failed: %w", err)}
	}

	it, err := job.Read(qCtx)
	if err != nil {
		return nil, fmt.Errorf("job read: %w", err)
	}

	res := &Result{Rows: make([][]any, 0)}
	for {
		var row []bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if res.Columns == nil && it.Schema != nil {
			for _, f := range it.Schema {
				res.Columns = append(res.Columns, f.Name)
			}
		}
		values := make([]any, len(row))
		for i, v := range row {
			values[i] = v
		}
		res.Rows = append(res.Rows, normalizeValues(values))
	}

	log.Debug().
		Str("job_id", job.ID()).
		Int("rows", len(res.Rows)).
		Dur("duration", time.Since(start)).
		Msg("bigquery query")
	return res, nil
}

// classifyBigQuery turns 400-class API errors (invalid query) into QueryError.
func classifyBigQuery(err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) && gErr.Code == http.StatusBadRequest {
		return &QueryError{Err: err}
	}
	return err
}
