package sync

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// flexDecimal decodes a JSON number or a numeric string into a decimal.
// Comma decimal separators are tolerated. Undecodable values coerce to zero.
type flexDecimal struct {
	decimal.Decimal
}

func (d *flexDecimal) UnmarshalJSON(data []byte) error {
	d.Decimal = decimal.Zero

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	s := string(data)
	if data[0] == '"' {
		var err error
		if s, err = strconv.Unquote(s); err != nil {
			return nil
		}
	}
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return nil
	}
	if v, err := decimal.NewFromString(s); err == nil {
		d.Decimal = v
	}
	return nil
}

// flexInt decodes a JSON number or numeric string into an int, truncating
// fractions. Undecodable values coerce to zero.
type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	*n = 0

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	s := string(data)
	if data[0] == '"' {
		var err error
		if s, err = strconv.Unquote(s); err != nil {
			return nil
		}
		s = strings.TrimSpace(s)
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		*n = flexInt(int(v))
	}
	return nil
}

// contactPayload is the customer block as either producer version ships it
type contactPayload struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Telephone    string `json:"telephone"`
	Address      string `json:"address"`
	Street       string `json:"street"`
	Number       string `json:"number"`
	Neighborhood string `json:"neighborhood"`
	District     string `json:"district"`
	City         string `json:"city"`
	Complement   string `json:"complement"`
	Reference    string `json:"reference"`
}

func (c contactPayload) phone() string {
	if c.Phone != "" {
		return c.Phone
	}
	return c.Telephone
}

func (c contactPayload) address() string {
	if c.Address != "" {
		return c.Address
	}
	return c.Street
}

func (c contactPayload) neighborhood() string {
	if c.Neighborhood != "" {
		return c.Neighborhood
	}
	return c.District
}

// linePayload is one item line as either producer version ships it
type linePayload struct {
	ID          string      `json:"id"`
	ProductID   string      `json:"productId"`
	Name        string      `json:"name"`
	Title       string      `json:"title"`
	Quantity    flexInt     `json:"quantity"`
	Qty         flexInt     `json:"qty"`
	Price       flexDecimal `json:"price"`
	UnitPrice   flexDecimal `json:"unitPrice"`
	Extras      ExtrasValue `json:"extras"`
	Additionals ExtrasValue `json:"additionals"`
	Notes       string      `json:"notes"`
	Observation string      `json:"observation"`
}

func (l linePayload) productID() string {
	if l.ProductID != "" {
		return l.ProductID
	}
	return l.ID
}

func (l linePayload) name() string {
	if l.Name != "" {
		return l.Name
	}
	return l.Title
}

func (l linePayload) quantity() int {
	if l.Quantity > 0 {
		return int(l.Quantity)
	}
	if l.Qty > 0 {
		return int(l.Qty)
	}
	return 1
}

func (l linePayload) unitPrice() decimal.Decimal {
	if !l.UnitPrice.IsZero() {
		return l.UnitPrice.Decimal
	}
	return l.Price.Decimal
}

func (l linePayload) extras() ExtrasValue {
	if !l.Extras.IsZero() {
		return l.Extras
	}
	return l.Additionals
}

func (l linePayload) notes() string {
	if l.Notes != "" {
		return l.Notes
	}
	return l.Observation
}

// payloadShape tags which field-naming convention a payload matched
type payloadShape int

const (
	shapeUnknown payloadShape = iota
	shapeModern               // camelCase: customer, items, createdAt
	shapeLegacy               // snake_case: client, products, created_at
)

// modernPayload is the current producer schema
type modernPayload struct {
	Customer      contactPayload `json:"customer"`
	Items         []linePayload  `json:"items"`
	CreatedAt     string         `json:"createdAt"`
	Timestamp     json.Number    `json:"timestamp"`
	DeliveryFee   flexDecimal    `json:"deliveryFee"`
	Discount      flexDecimal    `json:"discount"`
	PaymentMethod string         `json:"paymentMethod"`
	DeliveryType  string         `json:"deliveryType"`
}

// legacyPayload is the older producer schema
type legacyPayload struct {
	Client        contactPayload `json:"client"`
	Products      []linePayload  `json:"products"`
	CreatedAt     string         `json:"created_at"`
	Timestamp     json.Number    `json:"timestamp"`
	DeliveryFee   flexDecimal    `json:"delivery_fee"`
	Discount      flexDecimal    `json:"discount"`
	PaymentMethod string         `json:"payment_method"`
	DeliveryType  string         `json:"delivery_type"`
}

// orderPayload is the shape-resolved view of one raw event payload
type orderPayload struct {
	shape         payloadShape
	contact       contactPayload
	lines         []linePayload
	createdAt     string
	timestamp     json.Number
	deliveryFee   decimal.Decimal
	discount      decimal.Decimal
	paymentMethod string
	deliveryType  string
}

// shapeProbe detects which convention the payload follows before committing
// to a full decode
type shapeProbe struct {
	Customer json.RawMessage `json:"customer"`
	Items    json.RawMessage `json:"items"`
	Client   json.RawMessage `json:"client"`
	Products json.RawMessage `json:"products"`
}

// decodePayload classifies the payload field-by-field and maps it into the
// shape-resolved view. A payload matching neither convention decodes to an
// empty orderPayload rather than failing.
func decodePayload(raw json.RawMessage) orderPayload {
	var probe shapeProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return orderPayload{shape: shapeUnknown}
	}

	if len(probe.Client) > 0 || (len(probe.Products) > 0 && len(probe.Items) == 0) {
		var p legacyPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return orderPayload{shape: shapeUnknown}
		}
		return orderPayload{
			shape:         shapeLegacy,
			contact:       p.Client,
			lines:         p.Products,
			createdAt:     p.CreatedAt,
			timestamp:     p.Timestamp,
			deliveryFee:   p.DeliveryFee.Decimal,
			discount:      p.Discount.Decimal,
			paymentMethod: p.PaymentMethod,
			deliveryType:  p.DeliveryType,
		}
	}

	var p modernPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return orderPayload{shape: shapeUnknown}
	}
	shape := shapeModern
	if len(probe.Customer) == 0 && len(probe.Items) == 0 {
		shape = shapeUnknown
	}
	return orderPayload{
		shape:         shape,
		contact:       p.Customer,
		lines:         p.Items,
		createdAt:     p.CreatedAt,
		timestamp:     p.Timestamp,
		deliveryFee:   p.DeliveryFee.Decimal,
		discount:      p.Discount.Decimal,
		paymentMethod: p.PaymentMethod,
		deliveryType:  p.DeliveryType,
	}
}

// keyTimestampPattern matches identifiers of the form "order_1709845200123_x"
// or "pedido-1709845200-abc": a literal prefix, then unix seconds or
// milliseconds, then a separator
var keyTimestampPattern = regexp.MustCompile(`^[A-Za-z]+[_-](\d{10,13})(?:[_-]|$)`)

// resolveTimestamp walks the date fallback chain: explicit ISO creation field,
// numeric timestamp field, timestamp embedded in the identifier, current time.
// It never fails; the returned bool reports whether anything other than "now"
// was used.
func resolveTimestamp(key string, p orderPayload, now time.Time) (time.Time, bool) {
	if p.createdAt != "" {
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, p.createdAt); err == nil {
				return t, true
			}
		}
	}

	if s := p.timestamp.String(); s != "" && s != "0" {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil && v > 0 {
			return fromUnixFlexible(v), true
		}
		if f, err := p.timestamp.Float64(); err == nil && f > 0 {
			return fromUnixFlexible(int64(f)), true
		}
	}

	if m := keyTimestampPattern.FindStringSubmatch(key); m != nil {
		if v, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			return fromUnixFlexible(v), true
		}
	}

	return now, false
}

// fromUnixFlexible interprets the value as unix milliseconds when it is too
// large to be a plausible seconds value
func fromUnixFlexible(v int64) time.Time {
	if v > 1e12 {
		return time.UnixMilli(v)
	}
	return time.Unix(v, 0)
}
