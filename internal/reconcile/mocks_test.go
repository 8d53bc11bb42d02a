package reconcile

import (
	"context"
	"sync"
	"time"

	"crosslist/internal/alert"
	"crosslist/internal/core/id"
	"crosslist/internal/core/types"
	"crosslist/internal/domain/listing"
	"crosslist/internal/domain/notification"
	"crosslist/internal/domain/pricelog"
	"crosslist/internal/domain/product"
	"crosslist/internal/marketplace"
	"crosslist/internal/retry"
	"crosslist/pkg/logger"
)

// noDelayPolicy keeps tests fast.
func noDelayPolicy() retry.Policy {
	return retry.Policy{MaxRetries: 1}
}

func testLogger() *logger.Logger {
	return logger.Default()
}

// --- product repository ---

type fakeProductRepo struct {
	mu       sync.Mutex
	products map[id.ID]*product.Product
	applied  map[id.ID]product.SourceState
	touched  []id.ID
	applyErr error
}

func newFakeProductRepo(products ...*product.Product) *fakeProductRepo {
	r := &fakeProductRepo{
		products: make(map[id.ID]*product.Product),
		applied:  make(map[id.ID]product.SourceState),
	}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

func (r *fakeProductRepo) GetByID(ctx context.Context, productID id.ID) (*product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.products[productID]; ok {
		return p, nil
	}
	return nil, errNotFound
}

func (r *fakeProductRepo) ListByIDs(ctx context.Context, ids []id.ID) ([]*product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*product.Product
	for _, pid := range ids {
		if p, ok := r.products[pid]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeProductRepo) ListDueForCheck(ctx context.Context, limit int, checkedBefore time.Time) ([]*product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*product.Product
	for _, p := range r.products {
		if len(out) >= limit {
			break
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *fakeProductRepo) ApplySourceState(ctx context.Context, productID id.ID, version int, state product.SourceState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.applyErr != nil {
		return r.applyErr
	}
	r.applied[productID] = state
	return nil
}

func (r *fakeProductRepo) TouchChecked(ctx context.Context, productID id.ID, checkedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touched = append(r.touched, productID)
	return nil
}

// --- listing repository ---

type fakeListingRepo struct {
	mu           sync.Mutex
	active       []*listing.Listing
	endReturns   []*listing.Listing
	endCalls     int
	priceUpdates map[id.ID]listing.PriceUpdate
	updateErr    error
}

func newFakeListingRepo() *fakeListingRepo {
	return &fakeListingRepo{priceUpdates: make(map[id.ID]listing.PriceUpdate)}
}

func (r *fakeListingRepo) GetByID(ctx context.Context, listingID id.ID) (*listing.Listing, error) {
	for _, l := range r.active {
		if l.ID == listingID {
			return l, nil
		}
	}
	return nil, errNotFound
}

func (r *fakeListingRepo) ListByProduct(ctx context.Context, productID id.ID) ([]*listing.Listing, error) {
	return r.active, nil
}

func (r *fakeListingRepo) ListActiveByProduct(ctx context.Context, productID id.ID) ([]*listing.Listing, error) {
	return r.active, nil
}

func (r *fakeListingRepo) ListActive(ctx context.Context, limit int) ([]*listing.Listing, error) {
	return r.active, nil
}

func (r *fakeListingRepo) EndActiveByProduct(ctx context.Context, productID id.ID) ([]*listing.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endCalls++
	ended := r.endReturns
	// Second cascade finds nothing ACTIVE, like the conditional UPDATE.
	r.endReturns = nil
	return ended, nil
}

func (r *fakeListingRepo) UpdatePrice(ctx context.Context, listingID id.ID, update listing.PriceUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	r.priceUpdates[listingID] = update
	return nil
}

// --- marketplace adapter ---

type qtyCall struct {
	remoteID string
	sku      string
	qty      int
}

type priceCall struct {
	remoteID string
	price    types.Money
	currency string
}

type fakeAdapter struct {
	mu         sync.Mutex
	qtyCalls   []qtyCall
	priceCalls []priceCall
	qtyErr     error
	priceErr   error
}

func (a *fakeAdapter) SetQuantity(ctx context.Context, remoteListingID, sku string, qty int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.qtyCalls = append(a.qtyCalls, qtyCall{remoteID: remoteListingID, sku: sku, qty: qty})
	return a.qtyErr
}

func (a *fakeAdapter) SetPrice(ctx context.Context, remoteListingID string, price types.Money, currency string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.priceCalls = append(a.priceCalls, priceCall{remoteID: remoteListingID, price: price, currency: currency})
	return a.priceErr
}

func registryWith(m listing.Marketplace, a marketplace.Adapter) *marketplace.Registry {
	return marketplace.NewRegistry(map[listing.Marketplace]marketplace.Adapter{m: a})
}

// --- tx manager ---

type fakeTxManager struct {
	calls int
}

func (m *fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

// --- notification sink and repositories ---

type captureSink struct {
	mu   sync.Mutex
	sent []*notification.Notification
	err  error
}

func (s *captureSink) Send(ctx context.Context, n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, n)
	return nil
}

type fakeNotificationRepo struct {
	mu      sync.Mutex
	created []*notification.Notification
	err     error
}

func (r *fakeNotificationRepo) Create(ctx context.Context, n *notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.created = append(r.created, n)
	return nil
}

func (r *fakeNotificationRepo) ListRecent(ctx context.Context, limit int) ([]*notification.Notification, error) {
	return r.created, nil
}

type fakePriceLogRepo struct {
	mu      sync.Mutex
	entries []*pricelog.Entry
	err     error
}

func (r *fakePriceLogRepo) Append(ctx context.Context, entry *pricelog.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakePriceLogRepo) ListByListing(ctx context.Context, listingID id.ID, limit int) ([]*pricelog.Entry, error) {
	return r.entries, nil
}

// --- alerting ---

func testAlerts(sink notification.Sink) *alert.Manager {
	m, err := alert.NewManager(alert.DefaultRules(), alert.NopThrottle{}, sink, testLogger())
	if err != nil {
		panic(err)
	}
	return m
}

// --- fixtures ---

var errNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "not found" }

func newTestProduct(price string) *product.Product {
	return &product.Product{
		ID:           id.New(),
		SourceSite:   product.SiteMercari,
		SourceItemID: "m123",
		SourceURL:    "https://jp.mercari.com/item/m123",
		Title:        "Vintage camera",
		Description:  "Working condition",
		Price:        types.MustMoney(price),
		Weight:       450,
		Status:       product.StatusActive,
		Version:      1,
	}
}

func newTestListing(productID id.ID, m listing.Marketplace, remoteID string, price string) *listing.Listing {
	l := &listing.Listing{
		ID:           id.New(),
		ProductID:    productID,
		Marketplace:  m,
		SKU:          "SKU-1",
		Status:       listing.StatusActive,
		ListingPrice: types.MustMoney(price),
		ShippingCost: types.MustMoney("12.00"),
		Currency:     "USD",
	}
	if remoteID != "" {
		l.MarketplaceListingID = &remoteID
	}
	return l
}
