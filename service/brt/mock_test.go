package brt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// mockGateway implements Gateway for testing.
// responses holds the JSON result per method; queued results are consumed
// first, the last one sticks.
type mockGateway struct {
	mu        sync.Mutex
	responses map[string]string
	queued    map[string][]string
	errs      map[string]error
	delays    map[string]time.Duration
	calls     []mockCall
}

type mockCall struct {
	method string
	params any
}

func newMockGateway() *mockGateway {
	return &mockGateway{
		responses: map[string]string{},
		queued:    map[string][]string{},
		errs:      map[string]error{},
		delays:    map[string]time.Duration{},
	}
}

func (m *mockGateway) Call(ctx context.Context, method string, params, result any) error {
	m.mu.Lock()
	m.calls = append(m.calls, mockCall{method: method, params: params})
	raw, ok := m.responses[method]
	if q := m.queued[method]; len(q) > 0 {
		raw, ok = q[0], true
		if len(q) > 1 {
			m.queued[method] = q[1:]
		}
	}
	err := m.errs[method]
	delay := m.delays[method]
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %w", ErrRequestFailed, method, ctx.Err())
		}
	}

	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: unexpected method %s", ErrRequestFailed, method)
	}
	if err := checkResult(method, []byte(raw)); err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	return json.Unmarshal([]byte(raw), result)
}

func (m *mockGateway) callCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.method == method {
			n++
		}
	}
	return n
}

type fakeKeys struct{}

func (fakeKeys) GenerateSeed() (string, error) { return "sEdTestSeed", nil }

func (fakeKeys) DeriveKeypair(seed string) (string, string, error) {
	return "ED" + seed + "PUB", "ED" + seed + "PRIV", nil
}

func (fakeKeys) DeriveAddress(publicKey string) (Address, error) {
	return "r" + strings.ToLower(publicKey), nil
}

func (fakeKeys) IsValidClassicAddress(address string) bool {
	return strings.HasPrefix(address, "r") && len(address) >= 25
}

type fakeSigner struct {
	id   string
	err  error
	got  *UnsignedTransaction
	seed string
}

func (s *fakeSigner) Sign(tx *UnsignedTransaction, seed string) (*SignedTransaction, error) {
	s.got = tx
	s.seed = seed
	if s.err != nil {
		return nil, s.err
	}
	return &SignedTransaction{Raw: "12000022800000002400000001", ID: s.id}, nil
}

func newTestClient(gw *mockGateway, signer *fakeSigner) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if signer == nil {
		signer = &fakeSigner{}
	}
	return NewClient(gw, fakeKeys{}, signer, "test", nil, logger)
}
