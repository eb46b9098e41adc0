package handlers

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"gamyacollections/internal/models"
)

// productInput holds the fields sent on product create or update. Nil means
// the field was not sent.
type productInput struct {
	Name          *string  `json:"name"`
	Description   *string  `json:"description"`
	Price         *float64 `json:"price"`
	DiscountPrice *float64 `json:"discountPrice"`
	Category      *string  `json:"category"`
	SubCategory   *string  `json:"subCategory"`
	Stock         *int     `json:"stock"`
	Images        []string `json:"images"`
	Featured      *bool    `json:"featured"`
	Bestseller    *bool    `json:"bestseller"`
	Sizes         []string `json:"sizes"`
	Colors        []string `json:"colors"`
}

// parseProductRequest accepts a JSON body or a multipart/urlencoded form.
// Images are urls already uploaded to media storage.
func parseProductRequest(c *gin.Context) (productInput, error) {
	if strings.HasPrefix(c.ContentType(), "application/json") {
		var input productInput
		if err := c.ShouldBindJSON(&input); err != nil {
			return productInput{}, err
		}
		return input, nil
	}

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.Request.ParseMultipartForm(8 << 20); err != nil {
			return productInput{}, err
		}
	}

	input := productInput{}

	if value, ok := c.GetPostForm("name"); ok {
		input.Name = stringPtr(strings.TrimSpace(value))
	}
	if value, ok := c.GetPostForm("description"); ok {
		input.Description = stringPtr(strings.TrimSpace(value))
	}
	if value, ok := c.GetPostForm("category"); ok {
		input.Category = stringPtr(strings.TrimSpace(value))
	}
	if value, ok := c.GetPostForm("subCategory"); ok {
		input.SubCategory = stringPtr(strings.TrimSpace(value))
	}

	if value, ok := lastPostForm(c, "price"); ok {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return productInput{}, fmt.Errorf("price must be a number")
		}
		input.Price = &parsed
	}
	if value, ok := lastPostForm(c, "discountPrice"); ok {
		value = strings.TrimSpace(value)
		parsed := 0.0
		if value != "" {
			var err error
			if parsed, err = strconv.ParseFloat(value, 64); err != nil {
				return productInput{}, fmt.Errorf("discountPrice must be a number")
			}
		}
		input.DiscountPrice = &parsed
	}
	if value, ok := lastPostForm(c, "stock"); ok {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return productInput{}, fmt.Errorf("stock must be an integer")
		}
		input.Stock = &parsed
	}

	if value, ok := lastPostForm(c, "featured"); ok {
		parsed, err := parseBoolValue(value)
		if err != nil {
			return productInput{}, fmt.Errorf("featured must be a boolean")
		}
		input.Featured = &parsed
	}
	if value, ok := lastPostForm(c, "bestseller"); ok {
		parsed, err := parseBoolValue(value)
		if err != nil {
			return productInput{}, fmt.Errorf("bestseller must be a boolean")
		}
		input.Bestseller = &parsed
	}

	if values, ok := c.GetPostFormArray("images"); ok {
		input.Images = parseListValues(values)
	}
	if values, ok := c.GetPostFormArray("sizes"); ok {
		input.Sizes = parseListValues(values)
	}
	if values, ok := c.GetPostFormArray("colors"); ok {
		input.Colors = parseListValues(values)
	}

	return input, nil
}

// lastPostForm returns the last value when a field was repeated.
func lastPostForm(c *gin.Context, key string) (string, bool) {
	values, ok := c.GetPostFormArray(key)
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[len(values)-1], true
}

// parseListValues accepts repeated fields, a JSON array string or a comma
// separated string.
func parseListValues(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if strings.HasPrefix(value, "[") {
			var decoded []string
			if err := json.Unmarshal([]byte(value), &decoded); err == nil {
				out = append(out, models.SplitList(strings.Join(decoded, ","))...)
				continue
			}
		}
		out = append(out, models.SplitList(value)...)
	}
	return out
}

func validateImageURLs(images []string) error {
	if len(images) > models.MaxProductImages {
		return fmt.Errorf("at most %d images are allowed", models.MaxProductImages)
	}
	for _, image := range images {
		parsed, err := url.Parse(image)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return fmt.Errorf("invalid image url: %s", image)
		}
	}
	return nil
}

func parseBoolValue(value string) (bool, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "on" {
		return true, nil
	}
	return strconv.ParseBool(value)
}

func stringPtr(value string) *string {
	return &value
}
