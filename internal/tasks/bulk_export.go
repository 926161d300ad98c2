package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/desertthunder/collectarr/internal/formatter"
	"github.com/desertthunder/collectarr/internal/models"
	"github.com/desertthunder/collectarr/internal/shared"
	"golang.org/x/time/rate"
)

// BulkExportOpts contains configuration for bulk collection exports.
type BulkExportOpts struct {
	Format     string  // Export format: json, csv, markdown, txt
	OutputDir  string  // Base output directory (default: collection_export_{epoch})
	NumWorkers int     // Concurrent workers (default: 5)
	RateLimit  float64 // Requests per second against the server (default: 5)

	// ImageURL, when set, resolves a cover image URL for a collection.
	ImageURL func(ctx context.Context, collectionID string) (string, error)
}

// BulkExport exports every server collection concurrently with rate limiting and progress tracking.
//
// This method implements a worker pool pattern to efficiently export multiple collections.
// It respects server rate limits, handles partial failures gracefully, and generates a manifest file summarizing the export results.
func (e *Exporter) BulkExport(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	opts BulkExportOpts,
) (*BulkExportResult, error) {
	if e.server == nil {
		return nil, fmt.Errorf("%w: media server not initialized", shared.ErrServiceUnavailable)
	}

	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("collection_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	e.sendProgress(prog, fetchingCollectionsUpdate(0, 0))
	collections, err := e.server.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}

	index, err := e.server.FetchLibraryIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build library index: %w", err)
	}
	byID := make(map[string]models.LibraryItem)
	for _, items := range index.ByTitle {
		for _, item := range items {
			byID[item.ID] = item
		}
	}

	result := &BulkExportResult{
		TotalCollections: len(collections),
		OutputDirectory:  opts.OutputDir,
		Results:          make([]CollectionExportResult, 0, len(collections)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan CollectionExportJob, len(collections))
	results := make(chan CollectionExportResult, len(collections))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, jobs, results, opts)
	}

	go func() {
		for i, collection := range collections {
			select {
			case <-ctx.Done():
				close(jobs)
				return
			default:
			}

			if err := limiter.Wait(ctx); err != nil {
				close(jobs)
				return
			}

			state, err := e.server.FetchCollectionState(ctx, collection.Name)
			if err != nil {
				results <- CollectionExportResult{
					CollectionID:   collection.ID,
					CollectionName: collection.Name,
					Success:        false,
					Error:          fmt.Errorf("failed to fetch collection: %w", err),
				}
				continue
			}

			var items []models.LibraryItem
			for _, id := range state.MemberIDs {
				if item, ok := byID[id]; ok {
					items = append(items, item)
				}
			}

			jobs <- CollectionExportJob{Collection: collection, Items: items}
			e.sendProgress(prog, exportingCollectionUpdate(i+1, len(collections), collection.Name))
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Success {
			result.SuccessfulExports++
			e.sendProgress(prog, exportCompletedUpdate(
				completed,
				len(collections),
				res.CollectionName,
				len(res.Files),
			))
		} else {
			result.FailedExports++
			e.sendProgress(prog, exportFailedUpdate(
				completed,
				len(collections),
				res.CollectionName,
				res.Error,
			))
		}
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := e.writeManifest(result, opts.Format, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return result, nil
}

// exportWorker is a worker goroutine that exports collections from the jobs channel.
func (e *Exporter) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan CollectionExportJob,
	results chan<- CollectionExportResult,
	opts BulkExportOpts,
) {
	defer wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res := e.exportSingleCollection(ctx, job, opts)
		results <- res
	}
}

// exportSingleCollection exports a single collection to the appropriate format.
func (e *Exporter) exportSingleCollection(
	ctx context.Context,
	j CollectionExportJob,
	opts BulkExportOpts,
) CollectionExportResult {
	result := CollectionExportResult{
		CollectionID:   j.Collection.ID,
		CollectionName: j.Collection.Name,
		Success:        false,
		Files:          []string{},
	}

	export := &formatter.CollectionExport{Collection: j.Collection, Items: j.Items}

	switch opts.Format {
	case "csv":
		baseFilepath := filepath.Join(opts.OutputDir, j.Collection.ID)
		csvRes, err := formatter.WriteCSVExport(export, baseFilepath)
		if err != nil {
			result.Error = fmt.Errorf("CSV export failed: %w", err)
			return result
		}
		result.Files = []string{csvRes.ItemsFile, csvRes.MetadataFile}
		result.Success = true

	case "markdown":
		outputDir := filepath.Join(opts.OutputDir, j.Collection.ID)

		var imageURL string
		if opts.ImageURL != nil {
			if url, err := opts.ImageURL(ctx, j.Collection.ID); err == nil {
				imageURL = url
			}
		}

		mdRes, err := formatter.WriteMarkdownExport(export, outputDir, imageURL)
		if err != nil {
			result.Error = fmt.Errorf("markdown export failed: %w", err)
			return result
		}
		result.Files = mdRes.Files
		result.Success = true

	case "txt":
		txtPath := filepath.Join(opts.OutputDir, fmt.Sprintf("%s_movies.txt", j.Collection.ID))
		path, err := formatter.WriteTextExport(export, txtPath)
		if err != nil {
			result.Error = fmt.Errorf("text export failed: %w", err)
			return result
		}
		result.Files = []string{path}
		result.Success = true

	case "json":
		fallthrough
	default:
		jsonPath := filepath.Join(opts.OutputDir, fmt.Sprintf("%s.json", j.Collection.ID))
		data, err := shared.MarshalJSON(export, true)
		if err != nil {
			result.Error = fmt.Errorf("JSON marshal failed: %w", err)
			return result
		}
		if err := os.WriteFile(jsonPath, data, 0644); err != nil {
			result.Error = fmt.Errorf("JSON write failed: %w", err)
			return result
		}
		result.Files = []string{jsonPath}
		result.Success = true
	}
	return result
}

type exportManifest struct {
	Format            string   `json:"format"`
	TotalCollections  int      `json:"total_collections"`
	SuccessfulExports int      `json:"successful_exports"`
	FailedExports     int      `json:"failed_exports"`
	Collections       []string `json:"collections"`
	Failures          []string `json:"failures,omitempty"`
}

func (e *Exporter) writeManifest(result *BulkExportResult, format, path string) error {
	if format == "" {
		format = "json"
	}

	manifest := exportManifest{
		Format:            format,
		TotalCollections:  result.TotalCollections,
		SuccessfulExports: result.SuccessfulExports,
		FailedExports:     result.FailedExports,
	}
	for _, r := range result.Results {
		if r.Success {
			manifest.Collections = append(manifest.Collections, r.CollectionName)
		} else {
			manifest.Failures = append(manifest.Failures, fmt.Sprintf("%s: %v", r.CollectionName, r.Error))
		}
	}

	data, err := shared.MarshalJSON(manifest, true)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
