package httpapi

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/product-catalog-service/internal/model"
)

// MaxImageBytes bounds a single uploaded image.
const MaxImageBytes = 10 << 20

// createForm is the multipart body of POST /api/products.
type createForm struct {
	Title          string   `form:"title" binding:"required"`
	Category       string   `form:"category" binding:"required"`
	Description    string   `form:"description" binding:"required,max=1000"`
	PriceAmount    string   `form:"priceAmount" binding:"required,numeric"`
	PriceCurrency  string   `form:"priceCurrency" binding:"omitempty,oneof=USD INR"`
	OriginalPrice  string   `form:"originalPrice" binding:"omitempty,numeric"`
	Stock          string   `form:"stock" binding:"omitempty,number"`
	SKU            string   `form:"sku" binding:"omitempty,max=30"`
	Sizes          []string `form:"sizes"`
	Colors         []string `form:"colors"`
	Features       []string `form:"features"`
	Specifications string   `form:"specifications" binding:"omitempty,json"`
	ShippingInfo   string   `form:"shippingInfo" binding:"omitempty,json"`
}

func (f createForm) input() (model.ProductInput, error) {
	var errs model.ValidationError
	in := model.ProductInput{
		Title:         f.Title,
		Category:      f.Category,
		Description:   f.Description,
		PriceAmount:   parseAmount(&errs, "priceAmount", f.PriceAmount),
		PriceCurrency: model.Currency(f.PriceCurrency),
		OriginalPrice: parseAmount(&errs, "originalPrice", f.OriginalPrice),
		Stock:         parseStock(&errs, f.Stock),
		SKU:           f.SKU,
		Sizes:         compact(f.Sizes),
		Colors:        compact(f.Colors),
		Features:      compact(f.Features),
	}
	if f.Specifications != "" {
		in.Specifications = parseSpecs(&errs, f.Specifications)
	}
	if f.ShippingInfo != "" {
		in.ShippingInfo = parseShipping(&errs, f.ShippingInfo)
	}
	if len(errs) > 0 {
		return model.ProductInput{}, errs
	}
	return in, nil
}

// patchForm is the multipart body of PATCH /api/products/:id. Absent
// fields stay nil and keep their stored value.
type patchForm struct {
	Title          *string `form:"title"`
	Category       *string `form:"category"`
	Description    *string `form:"description" binding:"omitempty,max=1000"`
	PriceAmount    *string `form:"priceAmount" binding:"omitempty,numeric"`
	PriceCurrency  *string `form:"priceCurrency" binding:"omitempty,oneof=USD INR"`
	OriginalPrice  *string `form:"originalPrice" binding:"omitempty,numeric"`
	Stock          *string `form:"stock" binding:"omitempty,number"`
	SKU            *string `form:"sku" binding:"omitempty,max=30"`
	Specifications *string `form:"specifications" binding:"omitempty,json"`
	ShippingInfo   *string `form:"shippingInfo" binding:"omitempty,json"`
}

func (f patchForm) patch(values url.Values) (model.ProductPatch, error) {
	var errs model.ValidationError
	p := model.ProductPatch{
		Title:       f.Title,
		Category:    f.Category,
		Description: f.Description,
	}
	if f.PriceAmount != nil {
		d := parseAmount(&errs, "priceAmount", *f.PriceAmount)
		p.PriceAmount = &d
	}
	if f.PriceCurrency != nil {
		c := model.Currency(*f.PriceCurrency)
		p.PriceCurrency = &c
	}
	if f.OriginalPrice != nil {
		d := parseAmount(&errs, "originalPrice", *f.OriginalPrice)
		p.OriginalPrice = &d
	}
	if f.Stock != nil {
		n := parseStock(&errs, *f.Stock)
		p.Stock = &n
	}
	p.SKU = f.SKU
	if f.Specifications != nil {
		p.Specifications = parseSpecs(&errs, *f.Specifications)
		if p.Specifications == nil {
			p.Specifications = map[string]string{}
		}
	}
	if f.ShippingInfo != nil {
		s := parseShipping(&errs, *f.ShippingInfo)
		p.ShippingInfo = &s
	}
	p.Sizes = listField(values, "sizes")
	p.Colors = listField(values, "colors")
	p.Features = listField(values, "features")
	if len(errs) > 0 {
		return model.ProductPatch{}, errs
	}
	return p, nil
}

// listQuery is the query string of GET /api/products.
type listQuery struct {
	Q        string `form:"q"`
	MinPrice string `form:"minPrice" binding:"omitempty,numeric"`
	MaxPrice string `form:"maxPrice" binding:"omitempty,numeric"`
	Category string `form:"category"`
	Skip     string `form:"skip" binding:"omitempty,number"`
	Limit    string `form:"limit" binding:"omitempty,number"`
}

func (q listQuery) filter() model.Filter {
	f := model.Filter{Query: strings.TrimSpace(q.Q), Category: strings.TrimSpace(q.Category)}
	if d, err := decimal.NewFromString(q.MinPrice); err == nil {
		f.MinPrice = &d
	}
	if d, err := decimal.NewFromString(q.MaxPrice); err == nil {
		f.MaxPrice = &d
	}
	f.Skip, _ = strconv.ParseInt(q.Skip, 10, 64)
	f.Limit, _ = strconv.ParseInt(q.Limit, 10, 64)
	f.Normalize()
	return f
}

func parseAmount(errs *model.ValidationError, field, s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		*errs = append(*errs, model.FieldError{Field: field, Message: "must be a number"})
	}
	return d
}

func parseStock(errs *model.ValidationError, s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		*errs = append(*errs, model.FieldError{Field: "stock", Message: "must be an integer >= 0"})
	}
	return n
}

func parseSpecs(errs *model.ValidationError, s string) map[string]string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		*errs = append(*errs, model.FieldError{Field: "specifications", Message: "must be a JSON object of strings"})
	}
	return m
}

func parseShipping(errs *model.ValidationError, s string) model.ShippingInfo {
	var si model.ShippingInfo
	if strings.TrimSpace(s) == "" {
		return si
	}
	if err := json.Unmarshal([]byte(s), &si); err != nil {
		*errs = append(*errs, model.FieldError{Field: "shippingInfo", Message: "must be a JSON object"})
	}
	return si
}

// listField returns the values of a repeated field, nil when the field was
// not sent. A single empty value clears the list.
func listField(values url.Values, key string) []string {
	vs, ok := values[key]
	if !ok {
		return nil
	}
	out := compact(vs)
	if out == nil {
		out = []string{}
	}
	return out
}

func compact(vs []string) []string {
	var out []string
	for _, v := range vs {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// readImages loads the "images" parts of a multipart request.
func readImages(c *gin.Context) ([]model.Blob, error) {
	form := c.Request.MultipartForm
	if form == nil {
		return nil, nil
	}
	headers := form.File["images"]
	blobs := make([]model.Blob, 0, len(headers))
	for i, h := range headers {
		b, err := readImage(h)
		if err != nil {
			return nil, model.ValidationError{{Field: "images", Message: "image " + strconv.Itoa(i) + ": " + err.Error()}}
		}
		blobs = append(blobs, b)
	}
	return blobs, nil
}

func readImage(h *multipart.FileHeader) (model.Blob, error) {
	ct := h.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "image/") {
		return model.Blob{}, errors.Errorf("content type %q is not an image", ct)
	}
	if h.Size > MaxImageBytes {
		return model.Blob{}, errors.Errorf("larger than %d bytes", MaxImageBytes)
	}
	f, err := h.Open()
	if err != nil {
		return model.Blob{}, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, MaxImageBytes+1))
	if err != nil {
		return model.Blob{}, err
	}
	if len(data) > MaxImageBytes {
		return model.Blob{}, errors.Errorf("larger than %d bytes", MaxImageBytes)
	}
	return model.Blob{Name: h.Filename, ContentType: ct, Data: data}, nil
}

var registerTagName sync.Once

// useFormFieldNames makes validator report form field names.
func useFormFieldNames() {
	registerTagName.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(func(f reflect.StructField) string {
				if name, _, _ := strings.Cut(f.Tag.Get("form"), ","); name != "" && name != "-" {
					return name
				}
				return f.Name
			})
		}
	})
}

// bindError converts binding failures into field errors.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return model.ValidationError{{Field: "body", Message: err.Error()}}
	}
	out := make(model.ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, model.FieldError{Field: fe.Field(), Message: tagMessage(fe)})
	}
	return out
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "numeric":
		return "must be a number"
	case "number":
		return "must be an integer >= 0"
	case "oneof":
		return "must be one of " + fe.Param()
	case "max":
		return "max length is " + fe.Param() + " characters"
	case "json":
		return "must be valid JSON"
	default:
		return "is invalid"
	}
}
