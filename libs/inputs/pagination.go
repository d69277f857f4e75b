package inputs

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	appctx "github.com/pulseras/pulseras-go/libs/context"
	errorutils "github.com/pulseras/pulseras-go/libs/errors"
	"github.com/pulseras/pulseras-go/libs/handlers"
)

const (
	// DefaultLimit is the page size used when none is requested
	DefaultLimit = 10
	// MaxLimit caps the page size
	MaxLimit = 100
)

// OrderDirection - the directionality type
type OrderDirection string

const (
	// Ascending - ASC
	Ascending OrderDirection = "ASC"
	// Descending - DESC
	Descending OrderDirection = "DESC"
)

// PageOrder - this directionality and attribute used for ordering
type PageOrder struct {
	Direction OrderDirection
	Attribute string
}

// Pagination - parameters common to pagination
// page=1&limit=10&order=createdAt.desc
type Pagination struct {
	Order    []PageOrder
	RawOrder []string
	Page     int
	Limit    int
}

// Offset - the number of rows skipped before the requested page
func (p Pagination) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Pages - the number of pages needed to hold total rows
func (p Pagination) Pages(total int) int {
	if p.Limit <= 0 || total <= 0 {
		return 0
	}
	return (total + p.Limit - 1) / p.Limit
}

// GetOrderBy - create the order by expression for pagination
func (p Pagination) GetOrderBy(ctx context.Context) string {
	okOrder, ok := ctx.Value(appctx.PaginationOrderOptionsCTXKey).(map[string]string)
	if !ok {
		return ""
	}

	parts := make([]string, 0, len(p.Order))
	for _, po := range p.Order {
		column, ok := okOrder[po.Attribute]
		if !ok {
			continue
		}
		if po.Direction != "" {
			column += " " + string(po.Direction)
		}
		parts = append(parts, column)
	}
	return strings.Join(parts, ", ")
}

// Validate - implementation of validatable interface
func (p *Pagination) Validate(ctx context.Context) error {
	var errs = new(errorutils.MultiError)
	if p.Page < 1 {
		errs.Append(errors.New("page value must be greater than or equal to 1"))
	}
	if p.Limit < 1 {
		errs.Append(errors.New("limit value must be greater than 0"))
	}

	// get allowed values for order from context, if nothing allow all values
	if okOrder, ok := ctx.Value(appctx.PaginationOrderOptionsCTXKey).(map[string]string); ok {
		for _, o := range p.Order {
			if _, ok := okOrder[o.Attribute]; !ok {
				errs.Append(fmt.Errorf("order parameter '%s' is not allowed", o.Attribute))
			}
		}
	}

	if errs.Count() > 0 {
		return errs
	}

	return nil
}

// Decode - implementation of decodable interface
func (p *Pagination) Decode(ctx context.Context, v []byte) error {
	u, err := url.Parse(string(v))
	if err != nil {
		return fmt.Errorf("failed to parse pagination parameters: %w", err)
	}

	q := u.Query()

	p.Page = 1
	if raw := q.Get("page"); raw != "" {
		p.Page, err = strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("failed to parse pagination page parameter: %w", err)
		}
	}

	p.Limit = DefaultLimit
	if raw := q.Get("limit"); raw != "" {
		p.Limit, err = strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("failed to parse pagination limit parameter: %w", err)
		}
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}

	for _, v := range q["order"] {
		parts := strings.Split(v, ".")
		po := PageOrder{Attribute: parts[0]}
		if len(parts) > 1 && parts[1] != "" {
			switch OrderDirection(strings.ToUpper(parts[1])) {
			case Ascending:
				po.Direction = Ascending
			case Descending:
				po.Direction = Descending
			default:
				return fmt.Errorf("failed to parse order direction: %s", strings.ToUpper(parts[1]))
			}
		}
		p.Order = append(p.Order, po)
	}
	p.RawOrder = q["order"]

	return nil
}

var (
	jsonTagRE = regexp.MustCompile(`json:"(.*?)"`)
	dbTagRE   = regexp.MustCompile(`db:"(.*?)"`)
)

// NewPagination - create a new Pagination struct and populate from url and the order options of v
// NOTE v must be a pointer to a struct whose fields carry json and db tags
func NewPagination(ctx context.Context, url string, v interface{}) (context.Context, *Pagination, error) {
	var (
		pagination = new(Pagination)
		order      = map[string]string{}
		typ        = reflect.TypeOf(v).Elem()
	)

	// map json names onto column names
	for i := 0; i < typ.NumField(); i++ {
		tag := string(typ.Field(i).Tag)
		if tag == "" {
			continue
		}

		var k, col string
		if m := jsonTagRE.FindStringSubmatch(tag); len(m) > 1 {
			k = strings.Split(m[1], ",")[0]
		}
		if m := dbTagRE.FindStringSubmatch(tag); len(m) > 1 {
			col = strings.Split(m[1], ",")[0]
		}

		if k != "" && k != "-" && col != "" {
			order[k] = col
		}
	}

	ctx = context.WithValue(ctx, appctx.PaginationOrderOptionsCTXKey, order)

	if err := DecodeAndValidate(ctx, pagination, []byte(url)); err != nil {
		var (
			veParam = map[string]interface{}{}
			me      *errorutils.MultiError
		)
		if errors.As(err, &me) {
			msgs := make([]string, 0, me.Count())
			for _, e := range me.Errs {
				msgs = append(msgs, e.Error())
			}
			veParam["pagination"] = msgs
		}
		return ctx, nil, handlers.ValidationError(err.Error(), veParam)
	}
	return ctx, pagination, nil
}
