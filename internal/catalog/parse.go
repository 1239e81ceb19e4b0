package catalog

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/hyperjump/mise/internal/models"
	"github.com/hyperjump/mise/pkg/utils"
)

// Column names of the product source files.
const (
	colID             = "uniq_id"
	colName           = "product_name"
	colCategoryTree   = "product_category_tree"
	colRetailPrice    = "retail_price"
	colDiscountPrice  = "discounted_price"
	colDescription    = "description"
	colBrand          = "brand"
	colSpecifications = "product_specifications"
	colImage          = "image"
)

// UnknownBrand replaces an empty brand cell.
const UnknownBrand = "Unknown"

var specPattern = regexp.MustCompile(`"key"=>"([^"]+)",\s*"value"=>"([^"]+)"`)

// idNamespace scopes the name-based ids generated for rows without uniq_id.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("mise:product"))

// row gives access to the cells of one record by column name.
type row struct {
	header map[string]int
	cells  []string
}

func (r row) get(col string) string {
	i, ok := r.header[col]
	if !ok || i >= len(r.cells) {
		return ""
	}
	return strings.TrimSpace(r.cells[i])
}

func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	return idx
}

// parseProduct converts one record into a product. Malformed category, specification
// or image cells degrade to defaults; only a missing name or an unreadable price
// rejects the row.
func parseProduct(r row) (*models.Product, error) {
	name := utils.CollapseSpace(r.get(colName))
	if name == "" {
		return nil, fmt.Errorf("missing %s", colName)
	}

	retail, err := parsePrice(r.get(colRetailPrice))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", colRetailPrice, err)
	}
	discounted, err := parsePrice(r.get(colDiscountPrice))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", colDiscountPrice, err)
	}
	if r.get(colDiscountPrice) == "" {
		discounted = retail
	}

	brand := utils.CollapseSpace(r.get(colBrand))
	if brand == "" {
		brand = UnknownBrand
	}

	id := r.get(colID)
	if id == "" {
		id = uuid.NewSHA1(idNamespace, []byte(name+"\x00"+r.get(colDescription))).String()
	}

	return &models.Product{
		ID:              id,
		Name:            name,
		Category:        parseCategory(r.get(colCategoryTree)),
		Price:           retail,
		DiscountedPrice: discounted,
		Description:     utils.CollapseSpace(r.get(colDescription)),
		Brand:           brand,
		Specifications:  ParseSpecifications(r.get(colSpecifications)),
		ImageURLs:       parseImages(r.get(colImage)),
	}, nil
}

func parsePrice(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}

// parseCategory returns the first path of a category tree cell such as
// ["Clothing >> Women's Clothing"]. Cells that are not a list are returned as is.
func parseCategory(s string) string {
	if s == "" {
		return ""
	}
	var tree []string
	if err := json.Unmarshal([]byte(s), &tree); err != nil {
		if err := json.Unmarshal([]byte(strings.ReplaceAll(s, "'", `"`)), &tree); err != nil {
			return utils.CollapseSpace(s)
		}
	}
	if len(tree) == 0 {
		return ""
	}
	return utils.CollapseSpace(tree[0])
}

// ParseSpecifications extracts key/value pairs from a specification cell of the form
// {"product_specification"=>[{"key"=>"Color", "value"=>"Red"}, ...]}.
// Cells without any pair yield an empty map.
func ParseSpecifications(s string) map[string]string {
	specs := make(map[string]string)
	for _, m := range specPattern.FindAllStringSubmatch(s, -1) {
		specs[m[1]] = m[2]
	}
	return specs
}

func parseImages(s string) []string {
	var urls []string
	if s == "" || json.Unmarshal([]byte(s), &urls) != nil {
		return []string{}
	}
	return urls
}
