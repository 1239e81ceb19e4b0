package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/hyperjump/mise/internal/models"
	"github.com/hyperjump/mise/pkg/utils"
)

// ErrUnsupportedFormat is returned for catalog files with an unknown extension.
var ErrUnsupportedFormat = errors.New("unsupported catalog format")

// Extensions lists the catalog file extensions LoadFile understands.
var Extensions = []string{".tsv", ".txt", ".csv", ".xlsx"}

// LoadFile reads the products in path. The format is chosen by extension: tab separated
// (.tsv, .txt), comma separated (.csv) or Excel (.xlsx, first sheet). Rows that cannot
// be parsed are logged and skipped.
func LoadFile(path string, logger *zap.Logger) ([]*models.Product, error) {
	logger = utils.OrNop(logger)
	var (
		records [][]string
		err     error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".tsv", ".txt":
		records, err = readDelimited(path, '\t')
	case ".csv":
		records, err = readDelimited(path, ',')
	case ".xlsx":
		records, err = readExcel(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}
	products := ParseRecords(records, logger)
	logger.Info("catalog loaded",
		zap.String("path", path),
		zap.Int("rows", max(len(records)-1, 0)),
		zap.Int("products", len(products)),
	)
	return products, nil
}

// ParseRecords converts a header row plus data rows into products, skipping rows that
// fail to parse and ids already seen.
func ParseRecords(records [][]string, logger *zap.Logger) []*models.Product {
	logger = utils.OrNop(logger)
	if len(records) == 0 {
		return []*models.Product{}
	}
	header := headerIndex(records[0])
	seen := make(map[string]struct{}, len(records))
	products := make([]*models.Product, 0, len(records)-1)
	for i, cells := range records[1:] {
		p, err := parseProduct(row{header: header, cells: cells})
		if err != nil {
			logger.Warn("skipping catalog row", zap.Int("row", i+2), zap.Error(err))
			continue
		}
		if _, dup := seen[p.ID]; dup {
			logger.Debug("skipping duplicate product", zap.String("id", p.ID))
			continue
		}
		seen[p.ID] = struct{}{}
		products = append(products, p)
	}
	return products
}

func readDelimited(path string, sep rune) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = sep
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func readExcel(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}
