package sync

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chefware/backoffice/internal/domain/catalog"
	"github.com/chefware/backoffice/internal/domain/channel"
	"github.com/chefware/backoffice/internal/domain/order"
)

// SourceChannel tags orders and customers that arrived through the delivery
// channel, as opposed to manual back-office entry
const SourceChannel = "delivery-channel"

// ProductCatalog is the read-only catalog lookup the price fallback consults.
// Implementations sit on top of the read-through cache so repeated lookups do
// not hammer the store.
type ProductCatalog interface {
	Products(ctx context.Context) ([]catalog.Product, error)
}

// Normalizer maps raw event payloads into canonical orders. It is stateless
// apart from its collaborators; Normalize never fails, it degrades field by
// field instead.
type Normalizer struct {
	catalog ProductCatalog
	logger  *zap.Logger
	now     func() time.Time
}

// NormalizerOption configures a Normalizer
type NormalizerOption func(*Normalizer)

// WithNormalizerLogger sets the logger
func WithNormalizerLogger(logger *zap.Logger) NormalizerOption {
	return func(n *Normalizer) { n.logger = logger }
}

// WithNormalizerClock overrides the time source
func WithNormalizerClock(now func() time.Time) NormalizerOption {
	return func(n *Normalizer) { n.now = now }
}

// NewNormalizer creates a normalizer backed by the given catalog lookup
func NewNormalizer(cat ProductCatalog, opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{
		catalog: cat,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize converts a raw event into a canonical order. Whatever shape the
// payload used, the result always has a mapping-valued customizations field
// per line, derived calendar fields from a single resolved instant, and an
// inert fiscal sub-record.
func (n *Normalizer) Normalize(ctx context.Context, evt channel.RawEvent) *order.Order {
	p := decodePayload(evt.Payload)
	if p.shape == shapeUnknown {
		n.logger.Warn("payload matched no known shape, importing skeleton order",
			zap.String("key", evt.Key))
	}

	placedAt, resolved := resolveTimestamp(evt.Key, p, n.now())
	if !resolved {
		n.logger.Warn("no parseable timestamp on event, falling back to now",
			zap.String("key", evt.Key))
	}

	o := order.New(evt.Key, placedAt)
	o.Source = SourceChannel
	o.Customer = order.Contact{
		Name:         strings.TrimSpace(p.contact.Name),
		Phone:        strings.TrimSpace(p.contact.phone()),
		Address:      strings.TrimSpace(p.contact.address()),
		Number:       strings.TrimSpace(p.contact.Number),
		Neighborhood: strings.TrimSpace(p.contact.neighborhood()),
		City:         strings.TrimSpace(p.contact.City),
		Complement:   strings.TrimSpace(p.contact.Complement),
		Reference:    strings.TrimSpace(p.contact.Reference),
	}
	o.DeliveryFee = p.deliveryFee
	o.Discount = p.discount
	o.PaymentMethod = p.paymentMethod
	o.DeliveryType = p.deliveryType

	o.Lines = n.normalizeLines(ctx, evt.Key, p.lines)
	o.RecalculateTotals()
	return o
}

// normalizeLines converts each payload line, applying the extras grouping and
// the catalog price fallback. The catalog is fetched at most once per call.
func (n *Normalizer) normalizeLines(ctx context.Context, key string, lines []linePayload) []order.Line {
	out := make([]order.Line, 0, len(lines))

	var products []catalog.Product
	var catalogLoaded bool

	for _, lp := range lines {
		name := strings.TrimSpace(lp.name())
		if name == "" {
			continue
		}

		line := order.Line{
			Name:           name,
			Quantity:       lp.quantity(),
			UnitPrice:      lp.unitPrice(),
			Customizations: groupExtras(lp.extras()),
			Notes:          strings.TrimSpace(lp.notes()),
		}

		if line.UnitPrice.IsZero() {
			if !catalogLoaded {
				products = n.loadCatalog(ctx, key)
				catalogLoaded = true
			}
			if price, ok := lookupPrice(products, lp.productID(), name); ok {
				line.UnitPrice = price
			} else {
				n.logger.Warn("no catalog price for line, importing at zero",
					zap.String("key", key),
					zap.String("line", name))
			}
		}

		out = append(out, line)
	}
	return out
}

func (n *Normalizer) loadCatalog(ctx context.Context, key string) []catalog.Product {
	if n.catalog == nil {
		return nil
	}
	products, err := n.catalog.Products(ctx)
	if err != nil {
		n.logger.Warn("catalog lookup failed, price fallback disabled for this order",
			zap.String("key", key),
			zap.Error(err))
		return nil
	}
	return products
}

// groupExtras resolves the extras sum type into the canonical customizations
// mapping: structured extras group under their category, everything else goes
// to the default group
func groupExtras(v ExtrasValue) map[string][]order.CustomizationItem {
	groups := make(map[string][]order.CustomizationItem)
	for _, item := range v.Items() {
		group := item.Category
		if group == "" {
			group = DefaultExtrasGroup
		}
		groups[group] = append(groups[group], order.CustomizationItem{
			Name:  item.Name,
			Price: item.Price,
		})
	}
	return groups
}

// lookupPrice walks the price fallback chain against the catalog: identifier,
// exact name, case-insensitive name, folded name, folded substring. First
// match wins.
func lookupPrice(products []catalog.Product, productID, name string) (decimal.Decimal, bool) {
	if len(products) == 0 {
		return decimal.Zero, false
	}

	if productID != "" {
		for i := range products {
			if products[i].ExternalID == productID || products[i].ID.String() == productID {
				return products[i].Price, true
			}
		}
	}

	for i := range products {
		if products[i].Name == name {
			return products[i].Price, true
		}
	}

	for i := range products {
		if strings.EqualFold(products[i].Name, name) {
			return products[i].Price, true
		}
	}

	folded := foldName(name)
	if folded == "" {
		return decimal.Zero, false
	}
	for i := range products {
		if foldName(products[i].Name) == folded {
			return products[i].Price, true
		}
	}

	for i := range products {
		pf := foldName(products[i].Name)
		if pf == "" {
			continue
		}
		if strings.Contains(folded, pf) || strings.Contains(pf, folded) {
			return products[i].Price, true
		}
	}

	return decimal.Zero, false
}
