package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/fulfillment-service/internal/config"
	"github.com/spec-kit/fulfillment-service/internal/domain"
	"github.com/spec-kit/fulfillment-service/internal/events"
	"github.com/spec-kit/fulfillment-service/internal/repository"
	"github.com/spec-kit/fulfillment-service/pkg/util/errorutil"
)

// fakeOrderRepo mirrors the conditional-write semantics of the SQL
// repository: guard failures surface as ErrStatusConflict, missing rows as
// pgx.ErrNoRows.
type fakeOrderRepo struct {
	mu     sync.Mutex
	seq    int
	orders map[string]*domain.Order
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[string]*domain.Order)}
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	return &c
}

func (r *fakeOrderRepo) Create(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	order.ID = fmt.Sprintf("order-%d", r.seq)
	order.OrderNo = int64(r.seq)
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	r.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *fakeOrderRepo) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneOrder(order), nil
}

func (r *fakeOrderRepo) GetByExternalKey(_ context.Context, key string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, order := range r.orders {
		if order.ExternalKey == key {
			return cloneOrder(order), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeOrderRepo) StartWork(_ context.Context, orderID, workerID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if order.Status != domain.OrderStatusPending || (order.WorkerID != nil && *order.WorkerID != workerID) {
		return nil, repository.ErrStatusConflict
	}
	order.Status = domain.OrderStatusInProgress
	if order.WorkerID == nil {
		w := workerID
		order.WorkerID = &w
	}
	order.UpdatedAt = time.Now()
	return cloneOrder(order), nil
}

func statusIn(status domain.OrderStatus, from []domain.OrderStatus) bool {
	for _, s := range from {
		if s == status {
			return true
		}
	}
	return false
}

func (r *fakeOrderRepo) SetStatus(_ context.Context, orderID string, from []domain.OrderStatus, to domain.OrderStatus, notes *string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if !statusIn(order.Status, from) {
		return nil, repository.ErrStatusConflict
	}
	order.Status = to
	if notes != nil {
		order.CompletionNotes = *notes
	}
	order.UpdatedAt = time.Now()
	return cloneOrder(order), nil
}

func (r *fakeOrderRepo) Complete(_ context.Context, orderID string, from []domain.OrderStatus, _ string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if !statusIn(order.Status, from) {
		return nil, repository.ErrStatusConflict
	}
	order.Status = domain.OrderStatusCompleted
	now := time.Now()
	order.CompletedAt = &now
	order.UpdatedAt = now
	return cloneOrder(order), nil
}

func (r *fakeOrderRepo) Cancel(_ context.Context, orderID string, from []domain.OrderStatus, reason string, refundType domain.RefundType, refundCents int64) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if !statusIn(order.Status, from) {
		return nil, repository.ErrStatusConflict
	}
	order.Status = domain.OrderStatusCancelled
	order.CancellationReason = reason
	rt := refundType
	order.RefundType = &rt
	rc := refundCents
	order.RefundCents = &rc
	now := time.Now()
	order.CancelledAt = &now
	order.UpdatedAt = now
	return cloneOrder(order), nil
}

func (r *fakeOrderRepo) ListByCustomer(_ context.Context, customerID string, _, _ int) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Order
	for _, order := range r.orders {
		if order.CustomerID == customerID {
			result = append(result, *cloneOrder(order))
		}
	}
	return result, nil
}

// set seeds an order directly, bypassing Create.
func (r *fakeOrderRepo) set(order *domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = cloneOrder(order)
}

// fakeItemRepo mirrors the tri-state guards of the SQL item repository.
type fakeItemRepo struct {
	mu    sync.Mutex
	items map[string]*domain.Item
}

func newFakeItemRepo() *fakeItemRepo {
	return &fakeItemRepo{items: make(map[string]*domain.Item)}
}

func cloneItem(i *domain.Item) *domain.Item {
	c := *i
	return &c
}

func (r *fakeItemRepo) Create(_ context.Context, item *domain.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item.ID == "" {
		item.ID = fmt.Sprintf("item-%d", len(r.items)+1)
	}
	r.items[item.ID] = cloneItem(item)
	return nil
}

func (r *fakeItemRepo) GetByID(_ context.Context, id string) (*domain.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneItem(item), nil
}

func (r *fakeItemRepo) Reserve(_ context.Context, itemID, ticketID, customerID string) (*domain.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[itemID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if !item.Available || item.Sold {
		return nil, repository.ErrItemUnavailable
	}
	item.Available = false
	t, c := ticketID, customerID
	item.ReservedTicketID = &t
	item.ReservedCustomerID = &c
	now := time.Now()
	item.ReservedAt = &now
	return cloneItem(item), nil
}

func (r *fakeItemRepo) FinalizeSale(_ context.Context, itemID, ticketID, customerID string) (*domain.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[itemID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if item.Sold || item.ReservedTicketID == nil ||
		*item.ReservedTicketID != ticketID || *item.ReservedCustomerID != customerID {
		return nil, repository.ErrReservationMismatch
	}
	item.Sold = true
	c := customerID
	item.SoldToCustomerID = &c
	now := time.Now()
	item.SoldAt = &now
	return cloneItem(item), nil
}

func (r *fakeItemRepo) Release(_ context.Context, itemID string) (*domain.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[itemID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if !item.Sold && item.ReservedTicketID != nil {
		item.Available = true
		item.ReservedTicketID = nil
		item.ReservedCustomerID = nil
		item.ReservedAt = nil
	}
	return cloneItem(item), nil
}

// fakeIssueRepo mirrors the one-open-issue and terminal-resolution guards.
type fakeIssueRepo struct {
	mu     sync.Mutex
	seq    int
	issues map[string]*domain.Issue
}

func newFakeIssueRepo() *fakeIssueRepo {
	return &fakeIssueRepo{issues: make(map[string]*domain.Issue)}
}

func cloneIssue(i *domain.Issue) *domain.Issue {
	c := *i
	return &c
}

func (r *fakeIssueRepo) Create(_ context.Context, issue *domain.Issue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.issues {
		if existing.OrderID == issue.OrderID && existing.Status == domain.IssueStatusOpen {
			return repository.ErrOpenIssueExists
		}
	}
	r.seq++
	issue.ID = fmt.Sprintf("issue-%d", r.seq)
	issue.CreatedAt = time.Now()
	issue.UpdatedAt = issue.CreatedAt
	r.issues[issue.ID] = cloneIssue(issue)
	return nil
}

func (r *fakeIssueRepo) GetByID(_ context.Context, id string) (*domain.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	issue, ok := r.issues[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneIssue(issue), nil
}

func (r *fakeIssueRepo) GetUnresolvedByOrder(_ context.Context, orderID string) (*domain.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, issue := range r.issues {
		if issue.OrderID == orderID && issue.Status != domain.IssueStatusResolved {
			return cloneIssue(issue), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeIssueRepo) MarkInReview(_ context.Context, issueID, resolverID string) (*domain.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	issue, ok := r.issues[issueID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if issue.Status == domain.IssueStatusResolved {
		return nil, repository.ErrIssueAlreadyResolved
	}
	issue.Status = domain.IssueStatusInReview
	resolver := resolverID
	issue.ResolverID = &resolver
	issue.UpdatedAt = time.Now()
	return cloneIssue(issue), nil
}

func (r *fakeIssueRepo) Resolve(_ context.Context, issueID, resolution, resolverID string) (*domain.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	issue, ok := r.issues[issueID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if issue.Status == domain.IssueStatusResolved {
		return nil, repository.ErrIssueAlreadyResolved
	}
	issue.Status = domain.IssueStatusResolved
	res, resolver := resolution, resolverID
	issue.Resolution = &res
	issue.ResolverID = &resolver
	now := time.Now()
	issue.ResolvedAt = &now
	issue.UpdatedAt = now
	return cloneIssue(issue), nil
}

// fakeTicketRepo stores tickets keyed by id.
type fakeTicketRepo struct {
	mu      sync.Mutex
	seq     int
	tickets map[string]*domain.Ticket
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: make(map[string]*domain.Ticket)}
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	c := *t
	return &c
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	ticket.ID = fmt.Sprintf("ticket-%d", r.seq)
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	r.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneTicket(ticket), nil
}

func (r *fakeTicketRepo) GetByChannel(_ context.Context, channelID string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ticket := range r.tickets {
		if ticket.ChannelID == channelID {
			return cloneTicket(ticket), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTicketRepo) GetByOrder(_ context.Context, orderID string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ticket := range r.tickets {
		if ticket.OrderID != nil && *ticket.OrderID == orderID {
			return cloneTicket(ticket), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTicketRepo) AttachOrder(_ context.Context, ticketID, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[ticketID]
	if !ok {
		return pgx.ErrNoRows
	}
	o := orderID
	ticket.OrderID = &o
	return nil
}

func (r *fakeTicketRepo) AttachItem(_ context.Context, ticketID, itemID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[ticketID]
	if !ok {
		return pgx.ErrNoRows
	}
	i := itemID
	ticket.ItemID = &i
	return nil
}

func (r *fakeTicketRepo) MarkDelivered(_ context.Context, ticketID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[ticketID]
	if !ok {
		return pgx.ErrNoRows
	}
	ticket.Delivered = true
	return nil
}

func (r *fakeTicketRepo) Close(_ context.Context, ticketID string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[ticketID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	ticket.Open = false
	now := time.Now()
	ticket.ClosedAt = &now
	return cloneTicket(ticket), nil
}

func (r *fakeTicketRepo) ListOpenByCustomer(_ context.Context, customerID string) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if ticket.CustomerID == customerID && ticket.Open {
			result = append(result, *cloneTicket(ticket))
		}
	}
	return result, nil
}

func (r *fakeTicketRepo) set(ticket *domain.Ticket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickets[ticket.ID] = cloneTicket(ticket)
}

// fakeHistoryRepo records audit entries in order.
type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []domain.OrderHistory
}

func (r *fakeHistoryRepo) Create(_ context.Context, entry *domain.OrderHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = fmt.Sprintf("hist-%d", len(r.entries)+1)
	entry.CreatedAt = time.Now()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeHistoryRepo) ListByOrder(_ context.Context, orderID string) ([]domain.OrderHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.OrderHistory
	for _, entry := range r.entries {
		if entry.OrderID == orderID {
			result = append(result, entry)
		}
	}
	return result, nil
}

// fakeMemberRepo stores members keyed by id.
type fakeMemberRepo struct {
	mu      sync.Mutex
	members map[string]*domain.Member
}

func newFakeMemberRepo() *fakeMemberRepo {
	return &fakeMemberRepo{members: make(map[string]*domain.Member)}
}

func (r *fakeMemberRepo) Create(_ context.Context, member *domain.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if member.ID == "" {
		member.ID = fmt.Sprintf("member-%d", len(r.members)+1)
	}
	c := *member
	r.members[member.ID] = &c
	return nil
}

func (r *fakeMemberRepo) GetByID(_ context.Context, id string) (*domain.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	member, ok := r.members[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	c := *member
	return &c, nil
}

func (r *fakeMemberRepo) GetByEmail(_ context.Context, email string) (*domain.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, member := range r.members {
		if member.Email == email {
			c := *member
			return &c, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeMemberRepo) SetRoles(_ context.Context, memberID string, roleIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	member, ok := r.members[memberID]
	if !ok {
		return pgx.ErrNoRows
	}
	member.RoleIDs = roleIDs
	return nil
}

// fakeMessenger records every send and fails targets listed in failTargets.
type fakeMessenger struct {
	mu          sync.Mutex
	direct      map[string][]string
	channel     map[string][]string
	failTargets map[string]error
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{
		direct:      make(map[string][]string),
		channel:     make(map[string][]string),
		failTargets: make(map[string]error),
	}
}

func (m *fakeMessenger) SendDirect(_ context.Context, memberID, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failTargets[memberID]; ok {
		return err
	}
	m.direct[memberID] = append(m.direct[memberID], body)
	return nil
}

func (m *fakeMessenger) SendChannel(_ context.Context, channelID, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failTargets[channelID]; ok {
		return err
	}
	m.channel[channelID] = append(m.channel[channelID], body)
	return nil
}

func (m *fakeMessenger) directCount(memberID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.direct[memberID])
}

func (m *fakeMessenger) channelBodies(channelID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.channel[channelID]...)
}

// fakeTokens is an in-memory ActionTokens.
type fakeTokens struct {
	mu     sync.Mutex
	seq    int
	claims map[string]ActionClaim
	index  map[string]string
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{claims: make(map[string]ActionClaim), index: make(map[string]string)}
}

func (t *fakeTokens) Issue(_ context.Context, claim ActionClaim) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	token := fmt.Sprintf("tok-%d", t.seq)
	t.claims[token] = claim
	t.index[string(claim.Scope)+":"+claim.OrderID] = token
	return token, nil
}

func (t *fakeTokens) Consume(_ context.Context, token string) (*ActionClaim, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	claim, ok := t.claims[token]
	if !ok {
		return nil, errorutil.NewExpiredAction()
	}
	delete(t.claims, token)
	delete(t.index, string(claim.Scope)+":"+claim.OrderID)
	return &claim, nil
}

func (t *fakeTokens) Revoke(_ context.Context, scope ActionScope, orderID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := string(scope) + ":" + orderID
	if token, ok := t.index[key]; ok {
		delete(t.claims, token)
		delete(t.index, key)
	}
	return nil
}

func (t *fakeTokens) has(scope ActionScope, orderID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.index[string(scope)+":"+orderID]
	return ok
}

// testEnv wires the full service graph over fakes.
type testEnv struct {
	orders    *fakeOrderRepo
	items     *fakeItemRepo
	issues    *fakeIssueRepo
	tickets   *fakeTicketRepo
	history   *fakeHistoryRepo
	members   *fakeMemberRepo
	messenger *fakeMessenger
	tokens    *fakeTokens
	events    *eventRecorder

	guard     *ReservationGuard
	lifecycle *OrderLifecycleService
	disputes  *DisputeService
	bindings  *TicketBindingService
	roles     *RoleResolver
}

// eventRecorder captures published events for assertions.
type eventRecorder struct {
	mu        sync.Mutex
	published []events.Event
}

func (r *eventRecorder) Publish(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, event)
	return nil
}

func (r *eventRecorder) Subscribe(events.EventType, events.EventHandler) {}

func (r *eventRecorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.published))
	for _, e := range r.published {
		out = append(out, e.Type)
	}
	return out
}

const (
	testStaffLogChannel = "chan-staff-log"
	testAdminRole       = "role-admin"
	testSupportRole     = "role-support"
)

func newTestEnv() *testEnv {
	env := &testEnv{
		orders:    newFakeOrderRepo(),
		items:     newFakeItemRepo(),
		issues:    newFakeIssueRepo(),
		tickets:   newFakeTicketRepo(),
		history:   &fakeHistoryRepo{},
		members:   newFakeMemberRepo(),
		messenger: newFakeMessenger(),
		tokens:    newFakeTokens(),
		events:    &eventRecorder{},
	}

	logger := zap.NewNop()
	fanout := NewNotificationFanout(env.messenger, config.ChannelsConfig{StaffLogChannelID: testStaffLogChannel}, logger)
	env.roles = NewRoleResolver(env.members, config.RolesConfig{AdminRoleID: testAdminRole, SupportRoleID: testSupportRole})

	env.guard = NewReservationGuard(ReservationDependencies{
		ItemRepo:   env.items,
		TicketRepo: env.tickets,
		Dispatcher: env.events,
		Logger:     logger,
	})
	env.lifecycle = NewOrderLifecycleService(LifecycleDependencies{
		OrderRepo:   env.orders,
		TicketRepo:  env.tickets,
		HistoryRepo: env.history,
		Guard:       env.guard,
		Fanout:      fanout,
		Tokens:      env.tokens,
		Dispatcher:  env.events,
		Logger:      logger,
	})
	env.disputes = NewDisputeService(DisputeDependencies{
		IssueRepo:  env.issues,
		Lifecycle:  env.lifecycle,
		Roles:      env.roles,
		Fanout:     fanout,
		Tokens:     env.tokens,
		Dispatcher: env.events,
		Logger:     logger,
	})
	env.bindings = NewTicketBindingService(BindingDependencies{
		TicketRepo: env.tickets,
		OrderRepo:  env.orders,
		ItemRepo:   env.items,
		Logger:     logger,
	})
	return env
}

func (e *testEnv) addMember(id string, roles ...string) *domain.Member {
	member := &domain.Member{ID: id, Name: id, Email: id + "@example.com", RoleIDs: roles, Active: true}
	_ = e.members.Create(context.Background(), member)
	return member
}

func (e *testEnv) seedOrder(status domain.OrderStatus, valueCents int64, customerID string, workerID *string) *domain.Order {
	order := &domain.Order{
		CustomerID: customerID,
		ChannelID:  "chan-order",
		ValueCents: valueCents,
		Currency:   "USD",
		Status:     domain.OrderStatusPending,
		WorkerID:   workerID,
	}
	_ = e.orders.Create(context.Background(), order)
	order.Status = status
	order.ExternalKey = "ORD-" + order.ID
	e.orders.set(order)
	return order
}
