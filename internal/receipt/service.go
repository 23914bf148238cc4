package receipt

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/pantry-scan/internal/classify"
	"github.com/zombor/pantry-scan/internal/layout"
	"github.com/zombor/pantry-scan/internal/ocr"
	"github.com/zombor/pantry-scan/internal/pipeline"
)

// IDGenerator generates unique IDs for scans
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// Recognizer runs OCR over a decoded image; *ocr.MultiPass implements it
type Recognizer interface {
	Run(ctx context.Context, img image.Image) (*ocr.PassResult, error)
}

// defaultIDGenerator generates random UUIDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles scan operations
type Service struct {
	db          DB
	storage     Storage
	recognizer  Recognizer
	pipeline    *pipeline.Pipeline
	classifier  classify.Classifier
	sinks       []classify.CorrectionSink
	idGenerator IDGenerator
	timeSource  TimeSource
	ocrTimeout  time.Duration
}

// NewService creates a new Service with default ID generator and time source.
// recognizer and classifier may be nil when OCR or classification is disabled.
func NewService(db DB, storage Storage, recognizer Recognizer, p *pipeline.Pipeline, classifier classify.Classifier) *Service {
	return NewServiceWithDeps(db, storage, recognizer, p, classifier, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, storage Storage, recognizer Recognizer, p *pipeline.Pipeline, classifier classify.Classifier, idGen IDGenerator, timeSrc TimeSource) *Service {
	// Corrections always go to the database; a learning classifier hears about them too
	sinks := []classify.CorrectionSink{db}
	if sink, ok := classifier.(classify.CorrectionSink); ok {
		sinks = append(sinks, sink)
	}

	return &Service{
		db:          db,
		storage:     storage,
		recognizer:  recognizer,
		pipeline:    p,
		classifier:  classifier,
		sinks:       sinks,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// SetOCRTimeout bounds each OCR run; zero leaves only the caller's deadline
func (s *Service) SetOCRTimeout(timeout time.Duration) {
	s.ocrTimeout = timeout
}

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	// Get the extension
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	// Remove special characters, keep only alphanumeric, spaces, hyphens, and underscores
	reg := regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	base = reg.ReplaceAllString(base, "")

	// Replace multiple spaces with single space
	reg = regexp.MustCompile(`\s+`)
	base = reg.ReplaceAllString(base, " ")

	// Trim spaces
	base = strings.TrimSpace(base)

	// Truncate to reasonable length (50 chars for base, plus extension)
	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}

	// If base is empty after sanitization, use a default
	if base == "" {
		base = "receipt"
	}

	return base + ext
}

// ProcessImage stores a receipt image, recognizes it and saves the scan.
// PDFs that carry a text layer are read directly and need no OCR.
func (s *Service) ProcessImage(ctx context.Context, filename string, data []byte, contentType string) (*Scan, error) {
	textLayer := s.readTextLayer(filename, data, contentType)
	if textLayer == nil && s.recognizer == nil {
		return nil, ocr.ErrOCRNotEnabled
	}

	// Generate unique ID
	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	// Save file to storage
	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	passResult := textLayer
	var barcode string
	if passResult == nil {
		passResult, barcode, err = s.recognize(ctx, filename, data, contentType)
		if err != nil {
			// Clean up the saved file since recognition failed
			s.deleteFile(savedPath)
			return nil, err
		}
	}

	scan := s.newScan(ctx, id, now, s.pipeline.Process(passResult.Fragments))
	scan.Filename = savedPath
	scan.ContentType = contentType
	scan.Pass = passResult.Pass
	scan.Barcode = barcode

	// Save to database
	if err := s.db.SaveScan(scan); err != nil {
		// Clean up file if database save fails
		s.deleteFile(savedPath)
		return nil, fmt.Errorf("saving scan to database: %w", err)
	}

	slog.Info("Processed receipt image",
		"id", id,
		"pass", scan.Pass,
		"store", scan.Store,
		"products", len(scan.Products),
		"rating", scan.Confidence.Rating,
	)
	return scan, nil
}

// readTextLayer returns the embedded text of a digital PDF, or nil when the
// data is not a PDF or the PDF holds only scanned pages
func (s *Service) readTextLayer(filename string, data []byte, contentType string) *ocr.PassResult {
	if !ocr.IsPDF(data, contentType) {
		return nil
	}

	fragments, err := ocr.TextLayer(data)
	if err != nil {
		slog.Debug("Failed to read PDF text layer", "filename", filename, "error", err)
		return nil
	}
	if len(fragments) == 0 {
		return nil
	}
	return &ocr.PassResult{Pass: ocr.TextLayerPass, Fragments: fragments}
}

// recognize decodes the image and runs OCR on it. It also reports any
// barcode printed on the receipt.
func (s *Service) recognize(ctx context.Context, filename string, data []byte, contentType string) (*ocr.PassResult, string, error) {
	img, err := ocr.Decode(data, contentType)
	if err != nil {
		slog.Error("Failed to decode receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		return nil, "", fmt.Errorf("decoding receipt: %w", err)
	}

	if s.ocrTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.ocrTimeout)
		defer cancel()
	}

	passResult, err := s.recognizer.Run(ctx, img)
	if err != nil {
		slog.Error("Failed to recognize receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		return nil, "", fmt.Errorf("recognizing receipt: %w", err)
	}

	barcode, found := ocr.ReadBarcode(img)
	if !found {
		slog.Debug("No barcode found on receipt", "filename", filename)
	}
	return passResult, barcode, nil
}

// ProcessText runs the pipeline on already recognized text lines and saves the scan
func (s *Service) ProcessText(ctx context.Context, lines []string) (*Scan, error) {
	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	scan := s.newScan(ctx, id, now, s.pipeline.ProcessLines(layout.LinesFromText(lines...)))
	if err := s.db.SaveScan(scan); err != nil {
		return nil, fmt.Errorf("saving scan to database: %w", err)
	}

	slog.Info("Processed receipt text",
		"id", id,
		"store", scan.Store,
		"products", len(scan.Products),
		"rating", scan.Confidence.Rating,
	)
	return scan, nil
}

// newScan builds a scan from a pipeline result and classifies its products
func (s *Service) newScan(ctx context.Context, id string, now time.Time, result *pipeline.Result) *Scan {
	scan := &Scan{
		ID:         id,
		Lines:      layout.Texts(result.Lines),
		Match:      result.Match,
		Store:      result.Receipt.Merchant,
		Products:   make([]Product, 0, len(result.Receipt.Products)),
		Total:      result.Receipt.Total,
		Date:       result.Receipt.Date,
		Confidence: result.Confidence,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	for _, p := range result.Receipt.Products {
		product := Product{Product: p}
		if s.classifier != nil {
			prediction, err := s.classifier.Classify(ctx, p.Name)
			if err != nil {
				// The product stays unclassified
				slog.Warn("Failed to classify product", "scan_id", id, "product", p.Name, "error", err)
			} else {
				product.Category = prediction.Category
				product.CategoryConfidence = prediction.Confidence
			}
		}
		scan.Products = append(scan.Products, product)
	}
	return scan
}

func (s *Service) deleteFile(name string) {
	if err := s.storage.Delete(name); err != nil {
		slog.Warn("Failed to delete file", "filename", name, "error", err)
	}
}

// GetScan retrieves a scan by ID
func (s *Service) GetScan(id string) (*Scan, error) {
	scan, err := s.db.GetScan(id)
	if err != nil {
		return nil, fmt.Errorf("getting scan: %w", err)
	}
	return scan, nil
}

// ListScans returns all scans, newest first
func (s *Service) ListScans() ([]*Scan, error) {
	scans, err := s.db.ListScans()
	if err != nil {
		return nil, fmt.Errorf("listing scans: %w", err)
	}
	slices.SortStableFunc(scans, func(a, b *Scan) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return scans, nil
}

// DeleteScan removes a scan and its source file
func (s *Service) DeleteScan(id string) error {
	scan, err := s.db.GetScan(id)
	if err != nil {
		return fmt.Errorf("getting scan for deletion: %w", err)
	}

	if scan.Filename != "" {
		// Log error but continue with database deletion
		s.deleteFile(scan.Filename)
	}

	if err := s.db.DeleteScan(id); err != nil {
		return fmt.Errorf("deleting scan from database: %w", err)
	}
	return nil
}

// GetScanFile retrieves the source file of a scan
func (s *Service) GetScanFile(id string) ([]byte, string, error) {
	scan, err := s.db.GetScan(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting scan: %w", err)
	}
	if scan.Filename == "" {
		return nil, "", fmt.Errorf("scan %s has no source file: %w", id, ErrNotFound)
	}

	data, err := s.storage.Get(scan.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting scan file: %w", err)
	}

	return data, scan.ContentType, nil
}

// CorrectCategory assigns a category to one product of a scan and reports the
// correction to the feedback sinks. Sink failures are logged, not returned.
func (s *Service) CorrectCategory(ctx context.Context, scanID string, productIndex int, category classify.Category) (*Scan, error) {
	scan, err := s.db.GetScan(scanID)
	if err != nil {
		return nil, fmt.Errorf("getting scan: %w", err)
	}
	if productIndex < 0 || productIndex >= len(scan.Products) {
		return nil, fmt.Errorf("product %d of scan %s: %w", productIndex, scanID, ErrNotFound)
	}

	product := &scan.Products[productIndex]
	predicted := product.Category
	product.Category = category
	product.CategoryConfidence = 1.0
	product.Corrected = true
	scan.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveScan(scan); err != nil {
		return nil, fmt.Errorf("saving scan: %w", err)
	}

	for _, sink := range s.sinks {
		if err := sink.RecordCorrection(ctx, product.Name, category, predicted); err != nil {
			slog.Warn("Failed to record correction", "scan_id", scanID, "product", product.Name, "error", err)
		}
	}
	return scan, nil
}

// Merchants lists the registered merchant profiles in registration order
func (s *Service) Merchants() []MerchantInfo {
	profiles := s.pipeline.Registry().Profiles()
	merchants := make([]MerchantInfo, 0, len(profiles))
	for _, p := range profiles {
		merchants = append(merchants, MerchantInfo{
			Name:              p.Name,
			Variants:          p.Variants,
			PriceLocation:     p.PriceLocation,
			HasArticleNumbers: p.HasArticleNumbers,
			MultiLineProducts: p.MultiLineProducts,
		})
	}
	return merchants
}

// LoadCorrections replays stored corrections into the classifier when it learns from them
func (s *Service) LoadCorrections(ctx context.Context) (int, error) {
	sink, ok := s.classifier.(classify.CorrectionSink)
	if !ok {
		return 0, nil
	}

	corrections, err := s.db.ListCorrections()
	if err != nil {
		return 0, fmt.Errorf("listing corrections: %w", err)
	}

	var errs []error
	for _, c := range corrections {
		if err := sink.RecordCorrection(ctx, c.Name, c.Assigned, c.Predicted); err != nil {
			errs = append(errs, err)
		}
	}
	return len(corrections), errors.Join(errs...)
}
