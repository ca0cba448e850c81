package ledger

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process ledger for local development and tests.
// It records how often each operation is called and can be told to fail.
type Memory struct {
	mu            sync.Mutex
	seq           int
	now           func() time.Time
	customers     []Customer
	subscriptions map[string][]Subscription
	calls         map[string]int
	failures      map[string]error
	idempotency   map[string]string
	searchable    bool
	secrets       []string
}

// MemoryOption configures a Memory ledger.
type MemoryOption func(*Memory)

// WithMemoryClock overrides the clock used for created timestamps.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// WithoutSearch makes both search methods report ErrSearchUnavailable.
func WithoutSearch() MemoryOption {
	return func(m *Memory) { m.searchable = false }
}

// WithMemorySecrets sets the notification signing secrets, newest first.
func WithMemorySecrets(secrets ...string) MemoryOption {
	return func(m *Memory) { m.secrets = compactSecrets(secrets) }
}

// NewMemory creates an empty in-process ledger.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		now:           time.Now,
		subscriptions: make(map[string][]Subscription),
		calls:         make(map[string]int),
		failures:      make(map[string]error),
		idempotency:   make(map[string]string),
		searchable:    true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Memory operation names, usable with Calls and FailOn.
const (
	OpSearchByMetadata  = "search_by_metadata"
	OpSearchByEmail     = "search_by_email"
	OpListByEmail       = "list_by_email"
	OpCreateCustomer    = "create_customer"
	OpListSubscriptions = "list_subscriptions"
	OpCreatePortal      = "create_portal"
)

// Calls reports how many times op was invoked.
func (m *Memory) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// TotalCalls reports how many ledger operations were invoked overall.
func (m *Memory) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// FailOn makes op return err until cleared with a nil err.
func (m *Memory) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// AddCustomer stores a customer as if it had been created out of band.
func (m *Memory) AddCustomer(c Customer) Customer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = m.nextID("cus")
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = m.now()
	}
	m.customers = append(m.customers, c)
	return c
}

// AttachSubscription stores a subscription for the customer.
func (m *Memory) AttachSubscription(customerID string, s Subscription) Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = m.nextID("sub")
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = m.now()
	}
	s.CustomerID = customerID
	m.subscriptions[customerID] = append(m.subscriptions[customerID], s)
	return s
}

// UpdateSubscription replaces a stored subscription by id.
func (m *Memory) UpdateSubscription(s Subscription) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	subs := m.subscriptions[s.CustomerID]
	for i := range subs {
		if subs[i].ID == s.ID {
			subs[i] = s
			return true
		}
	}
	return false
}

func (m *Memory) SearchCustomersByMetadata(ctx context.Context, key, value string) ([]Customer, error) {
	if err := m.begin(ctx, OpSearchByMetadata); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.searchable {
		return nil, ErrSearchUnavailable
	}
	var out []Customer
	for _, c := range m.customers {
		if c.Metadata[key] == value {
			out = append(out, cloneCustomer(c))
		}
	}
	return out, nil
}

func (m *Memory) SearchCustomersByEmail(ctx context.Context, email string) ([]Customer, error) {
	if err := m.begin(ctx, OpSearchByEmail); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.searchable {
		return nil, ErrSearchUnavailable
	}
	return m.byEmail(email), nil
}

func (m *Memory) ListCustomersByEmail(ctx context.Context, email string) ([]Customer, error) {
	if err := m.begin(ctx, OpListByEmail); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byEmail(email), nil
}

func (m *Memory) CreateCustomer(ctx context.Context, p CustomerParams) (Customer, error) {
	if err := m.begin(ctx, OpCreateCustomer); err != nil {
		return Customer{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.IdempotencyKey != "" {
		if id, ok := m.idempotency[p.IdempotencyKey]; ok {
			for _, c := range m.customers {
				if c.ID == id {
					return cloneCustomer(c), nil
				}
			}
		}
	}

	c := Customer{
		ID:        m.nextID("cus"),
		Email:     p.Email,
		Metadata:  maps.Clone(p.Metadata),
		CreatedAt: m.now(),
	}
	m.customers = append(m.customers, c)
	if p.IdempotencyKey != "" {
		m.idempotency[p.IdempotencyKey] = c.ID
	}
	return cloneCustomer(c), nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, customerID string) ([]Subscription, error) {
	if err := m.begin(ctx, OpListSubscriptions); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	subs := m.subscriptions[customerID]
	out := make([]Subscription, len(subs))
	copy(out, subs)
	return out, nil
}

func (m *Memory) CreatePortalSession(ctx context.Context, req PortalRequest) (string, error) {
	if err := m.begin(ctx, OpCreatePortal); err != nil {
		return "", err
	}
	url := fmt.Sprintf("https://billing.local/portal/%s?intent=%s", req.CustomerID, req.Intent)
	if req.SubscriptionID != "" {
		url += "&subscription=" + req.SubscriptionID
	}
	return url, nil
}

func (m *Memory) begin(ctx context.Context, op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[op]++
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.failures[op]; err != nil {
		return err
	}
	return nil
}

func (m *Memory) byEmail(email string) []Customer {
	var out []Customer
	for _, c := range m.customers {
		if strings.EqualFold(c.Email, email) {
			out = append(out, cloneCustomer(c))
		}
	}
	return out
}

func (m *Memory) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s_%06d", prefix, m.seq)
}

func cloneCustomer(c Customer) Customer {
	c.Metadata = maps.Clone(c.Metadata)
	return c
}
