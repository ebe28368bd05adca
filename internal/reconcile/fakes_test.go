package reconcile

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math/big"
	"sort"
	"sync"
	"time"

	"ticket-bridge/internal/chain"
	"ticket-bridge/internal/notify"
	"ticket-bridge/internal/status"
	"ticket-bridge/models"

	"github.com/ethereum/go-ethereum/common"
)

const (
	adminAddr = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	aliceAddr = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	bobAddr   = "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"
)

func checksum(addr string) string {
	return common.HexToAddress(addr).Hex()
}

type chainCall struct {
	Action   chain.Action
	Opts     chain.TxOpts
	To       common.Address
	TokenID  *big.Int
	Price    *big.Int
	TokenURI string
}

// fakeChain confirms every call unless told otherwise. mint and buy emit
// TicketMinted with increasing ids starting at nextID.
type fakeChain struct {
	mu sync.Mutex

	calls   []chainCall
	txs     map[common.Hash]*chain.Result
	nextID  int64
	block   uint64
	fail    map[chain.Action]error
	noEvent bool
	hang    bool
	// ctxErrs holds ctx.Err() as seen when each call started.
	ctxErrs []error
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		txs:    make(map[common.Hash]*chain.Result),
		nextID: 1,
		block:  10,
		fail:   make(map[chain.Action]error),
	}
}

func rejected(action chain.Action) error {
	return &chain.Error{Action: action, Kind: status.ErrChainRejected, Err: errors.New("execution reverted")}
}

func (f *fakeChain) do(ctx context.Context, call chainCall) (*chain.Result, error) {
	f.mu.Lock()
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	f.calls = append(f.calls, call)
	hang := f.hang
	f.mu.Unlock()

	if hang {
		<-ctx.Done()
		return nil, &chain.Error{Action: call.Action, Kind: status.ErrChainUnavailable, TxHash: "0xpending", Err: ctx.Err()}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.fail[call.Action]; err != nil {
		return nil, err
	}

	f.block++
	hash := common.BigToHash(new(big.Int).SetUint64(f.block * 1000))
	res := &chain.Result{
		Receipt: chain.Receipt{
			TxHash:      hash.Hex(),
			Status:      1,
			GasUsed:     21000,
			BlockNumber: f.block,
			BlockHash:   common.BigToHash(new(big.Int).SetUint64(f.block)).Hex(),
		},
		Events: map[string]chain.Event{},
	}

	if (call.Action == chain.ActionMint || call.Action == chain.ActionBuy) && !f.noEvent {
		res.Events[chain.EventTicketMinted] = chain.Event{
			Name:   chain.EventTicketMinted,
			Fields: map[string]any{"tokenId": big.NewInt(f.nextID)},
		}
		f.nextID++
	}

	f.txs[hash] = res
	return res, nil
}

func (f *fakeChain) Mint(ctx context.Context, opts chain.TxOpts, to common.Address, price *big.Int, tokenURI string) (*chain.Result, error) {
	return f.do(ctx, chainCall{Action: chain.ActionMint, Opts: opts, To: to, Price: price, TokenURI: tokenURI})
}

func (f *fakeChain) Buy(ctx context.Context, opts chain.TxOpts, tokenURI string) (*chain.Result, error) {
	return f.do(ctx, chainCall{Action: chain.ActionBuy, Opts: opts, TokenURI: tokenURI})
}

func (f *fakeChain) ListForSale(ctx context.Context, opts chain.TxOpts, tokenID, price *big.Int) (*chain.Result, error) {
	return f.do(ctx, chainCall{Action: chain.ActionList, Opts: opts, TokenID: tokenID, Price: price})
}

func (f *fakeChain) CancelSale(ctx context.Context, opts chain.TxOpts, tokenID *big.Int) (*chain.Result, error) {
	return f.do(ctx, chainCall{Action: chain.ActionCancel, Opts: opts, TokenID: tokenID})
}

func (f *fakeChain) Purchase(ctx context.Context, opts chain.TxOpts, tokenID *big.Int) (*chain.Result, error) {
	return f.do(ctx, chainCall{Action: chain.ActionPurchase, Opts: opts, TokenID: tokenID})
}

func (f *fakeChain) Validate(ctx context.Context, opts chain.TxOpts, tokenID *big.Int) (*chain.Result, error) {
	return f.do(ctx, chainCall{Action: chain.ActionValidate, Opts: opts, TokenID: tokenID})
}

func (f *fakeChain) Withdraw(ctx context.Context, opts chain.TxOpts) (*chain.Result, error) {
	return f.do(ctx, chainCall{Action: chain.ActionWithdraw, Opts: opts})
}

func (f *fakeChain) TransactionResult(ctx context.Context, txHash common.Hash) (*chain.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	res, ok := f.txs[txHash]
	if !ok {
		return nil, &chain.Error{Action: "receipt", Kind: status.ErrChainUnavailable, TxHash: txHash.Hex(), Err: errors.New("receipt not found")}
	}
	return res, nil
}

func (f *fakeChain) Health(context.Context) error { return nil }

func (f *fakeChain) callCount(action chain.Action) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, c := range f.calls {
		if c.Action == action {
			n++
		}
	}
	return n
}

func (f *fakeChain) lastCall() chainCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type memStore struct {
	mu        sync.Mutex
	tickets   map[string]*models.Ticket
	createErr error
	updateErr error
}

func newMemStore() *memStore {
	return &memStore{tickets: make(map[string]*models.Ticket)}
}

func (m *memStore) Create(_ context.Context, t *models.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.tickets[t.TicketID]; ok {
		return fmt.Errorf("ticket %s: %w", t.TicketID, status.ErrDuplicateTicket)
	}
	now := time.Now()
	t.CreatedAt, t.UpdatedAt = now, now
	stored := *t
	m.tickets[t.TicketID] = &stored
	return nil
}

func (m *memStore) FindByID(_ context.Context, id string) (*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tickets[id]
	if !ok {
		return nil, fmt.Errorf("ticket %s: %w", id, status.ErrNotFound)
	}
	found := *t
	return &found, nil
}

func (m *memStore) Update(_ context.Context, id string, p models.TicketPatch) (*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateErr != nil {
		return nil, m.updateErr
	}
	t, ok := m.tickets[id]
	if !ok {
		return nil, fmt.Errorf("ticket %s: %w", id, status.ErrNotFound)
	}
	t.Apply(p)
	t.UpdatedAt = time.Now()
	updated := *t
	return &updated, nil
}

func (m *memStore) ListAll(context.Context) iter.Seq2[*models.Ticket, error] {
	return func(yield func(*models.Ticket, error) bool) {
		m.mu.Lock()
		ids := make([]string, 0, len(m.tickets))
		for id := range m.tickets {
			ids = append(ids, id)
		}
		m.mu.Unlock()
		sort.Strings(ids)

		for _, id := range ids {
			t, err := m.FindByID(context.Background(), id)
			if !yield(t, err) {
				return
			}
		}
	}
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tickets)
}

type memEvents struct {
	mu      sync.Mutex
	events  []*models.Event
	findErr error
	lookups int
}

func (m *memEvents) CreateEvent(_ context.Context, ev *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev.ID = fmt.Sprintf("evt%d", len(m.events)+1)
	ev.CreatedAt = time.Now()
	ev.UpdatedAt = ev.CreatedAt
	stored := *ev
	m.events = append(m.events, &stored)
	return nil
}

func (m *memEvents) FindEvent(_ context.Context, id string) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lookups++
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, ev := range m.events {
		if ev.ID == id {
			found := *ev
			return &found, nil
		}
	}
	return nil, fmt.Errorf("event %s: %w", id, status.ErrNotFound)
}

func (m *memEvents) ListEvents(context.Context) ([]*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	events := make([]*models.Event, 0, len(m.events))
	for _, ev := range m.events {
		e := *ev
		events = append(events, &e)
	}
	return events, nil
}

type memGaps struct {
	mu      sync.Mutex
	gaps    map[string]*models.Gap
	order   []string
	pushErr error
}

func newMemGaps() *memGaps {
	return &memGaps{gaps: make(map[string]*models.Gap)}
}

func (m *memGaps) Push(_ context.Context, gap *models.Gap) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pushErr != nil {
		return m.pushErr
	}
	gap.ID = fmt.Sprintf("gap-%d", len(m.order)+1)
	stored := *gap
	m.gaps[gap.ID] = &stored
	m.order = append(m.order, gap.ID)
	return nil
}

func (m *memGaps) Get(_ context.Context, id string) (*models.Gap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	gap, ok := m.gaps[id]
	if !ok {
		return nil, fmt.Errorf("gap %s: %w", id, status.ErrNotFound)
	}
	found := *gap
	return &found, nil
}

func (m *memGaps) List(_ context.Context, limit int64) ([]*models.Gap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Gap
	for _, id := range m.order {
		if gap, ok := m.gaps[id]; ok {
			out = append(out, gap)
		}
		if limit > 0 && int64(len(out)) == limit {
			break
		}
	}
	return out, nil
}

func (m *memGaps) Resolve(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.gaps[id]; !ok {
		return fmt.Errorf("gap %s: %w", id, status.ErrNotFound)
	}
	delete(m.gaps, id)
	return nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return r.err
}

type recordingMetrics struct {
	mu       sync.Mutex
	chain    []string
	outcomes []string
}

func (r *recordingMetrics) ObserveChainCall(action, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chain = append(r.chain, action+":"+outcome)
}

func (r *recordingMetrics) TrackReconcile(action, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, action+":"+outcome)
}
