// package formatter provides functions to export sync reports and collection
// contents to various formats (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/desertthunder/collectarr/internal/models"
	"github.com/desertthunder/collectarr/internal/reconcile"
	"github.com/desertthunder/collectarr/internal/shared"
)

// CollectionExport pairs a server collection with its resolved member items.
type CollectionExport struct {
	Collection models.ServerCollection
	Items      []models.LibraryItem
}

// ExportToCSV converts a CollectionExport to CSV format with columns: ID, Title, Year, IMDb, TMDb
func ExportToCSV(export *CollectionExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Year", "IMDb", "TMDb"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, item := range export.Items {
		record := []string{
			item.ID,
			item.Name,
			strconv.Itoa(item.Year),
			item.IMDbID,
			item.TMDbID,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a CollectionExport to Markdown format with optional cover image
func ExportToMarkdown(export *CollectionExport, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", export.Collection.Name))

	if imageFilename != "" {
		buf.WriteString(fmt.Sprintf("![Cover](%s)\n\n", imageFilename))
	}

	buf.WriteString(fmt.Sprintf("**Movies**: %d\n\n", len(export.Items)))

	buf.WriteString("## Movies\n\n")
	for i, item := range export.Items {
		yearPart := ""
		if item.Year > 0 {
			yearPart = fmt.Sprintf(" (%d)", item.Year)
		}
		idPart := ""
		if item.IMDbID != "" {
			idPart = fmt.Sprintf(" [%s]", item.IMDbID)
		}
		buf.WriteString(fmt.Sprintf("%d. %s%s%s\n", i+1, item.Name, yearPart, idPart))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a CollectionExport to plain text format
func ExportToText(export *CollectionExport) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Collection: %s\n", export.Collection.Name))
	buf.WriteString(fmt.Sprintf("Movies: %d\n\n", len(export.Items)))

	for i, item := range export.Items {
		if item.Year > 0 {
			buf.WriteString(fmt.Sprintf("%d. %s (%d)\n", i+1, item.Name, item.Year))
		} else {
			buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, item.Name))
		}
	}

	return buf.Bytes(), nil
}

// ReportToText renders a run report as a plain text summary.
func ReportToText(report *reconcile.RunReport) []byte {
	var buf bytes.Buffer

	mode := "sync"
	if report.DryRun {
		mode = "dry run"
	}
	buf.WriteString(fmt.Sprintf("Run %s (%s)\n", report.ID, mode))
	buf.WriteString(fmt.Sprintf("Collections: %d succeeded, %d failed\n\n", report.Succeeded(), report.Failed()))

	for _, c := range report.Collections {
		buf.WriteString(fmt.Sprintf("%s [%s]\n", c.Name, c.Status))
		if c.Error != "" {
			buf.WriteString(fmt.Sprintf("  error: %s\n", c.Error))
		}
		if c.Status == reconcile.StatusFailed && c.Error != "" && len(c.MutationCounts) == 0 {
			continue
		}
		buf.WriteString(fmt.Sprintf("  matched: %d", c.Resolved))
		if len(c.Unresolved) > 0 {
			buf.WriteString(fmt.Sprintf(", unmatched: %d", len(c.Unresolved)))
		}
		buf.WriteString("\n")
		for kind, n := range c.MutationCounts {
			buf.WriteString(fmt.Sprintf("  %s: %d\n", kind, n))
		}
		for _, u := range c.Unresolved {
			buf.WriteString(fmt.Sprintf("  ? %s (%d): %s\n", u.Entry.Title, u.Entry.Year, u.Reason))
		}
	}

	if len(report.Deleted) > 0 {
		buf.WriteString("\nDeleted collections:\n")
		for _, name := range report.Deleted {
			buf.WriteString(fmt.Sprintf("  - %s\n", name))
		}
	}

	return buf.Bytes()
}

// ReportToJSON renders a run report as indented JSON.
func ReportToJSON(report *reconcile.RunReport) ([]byte, error) {
	return shared.MarshalJSON(report, true)
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	ItemsFile    string
	MetadataFile string
}

// WriteCSVExport exports a collection to CSV format with accompanying metadata JSON file.
//
// Defaults to collection ID as the base filename & creates {base}_movies.csv and {base}_metadata.json
func WriteCSVExport(export *CollectionExport, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = export.Collection.ID
	}

	csvData, err := ExportToCSV(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	itemsFile := baseFilepath + "_movies.csv"
	if err := os.WriteFile(itemsFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := shared.MarshalJSON(export.Collection, true)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		ItemsFile:    itemsFile,
		MetadataFile: metadataFile,
	}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
}

// WriteMarkdownExport exports a collection to Markdown format in a dedicated directory.
//
// Directory name defaults to the collection ID.
// The imageURL parameter is optional - if provided, attempts to download the cover image.
// Creates a directory structure: {dir}/README.md and optionally {dir}/cover.jpg
func WriteMarkdownExport(export *CollectionExport, outputDir string, imageURL string) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = export.Collection.ID
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	var coverImageFilename string
	if imageURL != "" {
		imageData, err := DownloadImage(imageURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to download cover image: %v\n", err)
		} else {
			coverImageFilename = "cover.jpg"
			coverImagePath := fmt.Sprintf("%s/%s", outputDir, coverImageFilename)
			if err := os.WriteFile(coverImagePath, imageData, 0644); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to save cover image: %v\n", err)
				coverImageFilename = ""
			} else {
				result.CoverImage = coverImagePath
				result.Files = append(result.Files, coverImagePath)
			}
		}
	}

	mdData, err := ExportToMarkdown(export, coverImageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := fmt.Sprintf("%s/README.md", outputDir)
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)

	return result, nil
}

// WriteTextExport exports a collection to plain text format.
//
// Defaults to {collection.ID}_movies.txt as the filename.
func WriteTextExport(export *CollectionExport, filepath string) (string, error) {
	if filepath == "" {
		filepath = fmt.Sprintf("%s_movies.txt", export.Collection.ID)
	}

	textData, err := ExportToText(export)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(filepath, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return filepath, nil
}
