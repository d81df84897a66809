// Package session turns client requests into engine tasks: it keeps
// per-user history, resolves pronouns against earlier turns and builds
// response envelopes.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	llmmetrics "github.com/ntclick/ai-research-roma/pkg/agent/middleware/metrics"
	"github.com/ntclick/ai-research-roma/pkg/config"
	"github.com/ntclick/ai-research-roma/pkg/logx"
	"github.com/ntclick/ai-research-roma/pkg/persistence"
	"github.com/ntclick/ai-research-roma/pkg/roma"
)

// DefaultUser is used when a request names no user.
const DefaultUser = "default"

// Resolver runs a task through the engine.
type Resolver interface {
	Resolve(ctx context.Context, task roma.Task) roma.Outcome
}

// HistoryStore persists turns.
type HistoryStore interface {
	Append(ctx context.Context, turn *persistence.Turn) error
	Recent(ctx context.Context, userID string, n int) ([]persistence.Turn, error)
	Clear(ctx context.Context, userID string) (int64, error)
}

// Request is one research query from a client.
type Request struct {
	User  string
	Tool  string
	Query string
}

// Manager serves requests and keeps each user's recent turns in an LRU
// cache in front of the history store.
type Manager struct {
	resolver Resolver
	store    HistoryStore
	scanner  SecretScanner
	cache    *lru.Cache[string, []persistence.Turn]
	logger   *logx.Logger
	cfg      config.ServerConfig

	// locks serializes requests per user so history stays ordered.
	locks sync.Map
}

// NewManager creates a manager. A nil store keeps history in memory only,
// bounded by the cache.
func NewManager(resolver Resolver, store HistoryStore, cfg config.ServerConfig) (*Manager, error) {
	size := cfg.SessionCacheSize
	if size <= 0 {
		size = config.DefaultSessionCache
	}
	cache, err := lru.New[string, []persistence.Turn](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}

	m := &Manager{
		resolver: resolver,
		store:    store,
		cache:    cache,
		logger:   logx.NewLogger("session"),
		cfg:      cfg,
	}
	if cfg.ScanSecrets {
		m.scanner = NewPatternScanner(time.Second)
	}
	return m, nil
}

// Handle resolves one request and records the turn.
func (m *Manager) Handle(ctx context.Context, req Request) Envelope {
	requestID := uuid.NewString()
	ctx = logx.WithRequestID(ctx, requestID)

	if req.Tool != "" && req.Tool != ToolResearch {
		return ErrorEnvelope(requestID, fmt.Sprintf("unknown tool %q", req.Tool), false)
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		env := ErrorEnvelope(requestID, "please enter a question", false)
		env.NeedsInput = true
		return env
	}
	query = truncateRunes(query, m.cfg.MaxMessageChars)

	user := strings.TrimSpace(req.User)
	if user == "" {
		user = DefaultUser
	}
	ctx = llmmetrics.WithSession(ctx, user)

	unlock := m.lockUser(user)
	defer unlock()

	turns := m.window(ctx, user)
	enhanced := ResolvePronouns(query, turns)
	if enhanced != query {
		logx.Debug(ctx, "session", "enhanced query: %s", enhanced)
	}

	task := roma.NewTask(enhanced, priorTurns(turns, m.cfg.HistoryWindow))
	out := m.resolver.Resolve(ctx, task)
	env := BuildEnvelope(out, requestID)

	if out.OK() {
		m.record(ctx, &persistence.Turn{
			UserID:     user,
			RequestID:  requestID,
			Query:      query,
			Response:   env.Content,
			Capability: capabilityOf(out),
			Coin:       CoinOf(out),
		})
	}
	return env
}

// History returns the user's recent turns, oldest first.
func (m *Manager) History(ctx context.Context, user string) []persistence.Turn {
	if user == "" {
		user = DefaultUser
	}
	turns := m.window(ctx, user)
	out := make([]persistence.Turn, len(turns))
	copy(out, turns)
	return out
}

// ClearHistory forgets every turn of user and returns how many were removed.
func (m *Manager) ClearHistory(ctx context.Context, user string) (int64, error) {
	if user == "" {
		user = DefaultUser
	}
	unlock := m.lockUser(user)
	defer unlock()

	cached, _ := m.cache.Peek(user)
	m.cache.Remove(user)
	if m.store == nil {
		return int64(len(cached)), nil
	}

	n, err := m.store.Clear(ctx, user)
	if err != nil {
		return 0, err //nolint:wrapcheck // store errors are already descriptive
	}
	m.logger.Info("Cleared %d turns for %s", n, user)
	return n, nil
}

func (m *Manager) lockUser(user string) func() {
	v, _ := m.locks.LoadOrStore(user, &sync.Mutex{})
	mu := v.(*sync.Mutex) //nolint:forcetypeassert // only *sync.Mutex is stored
	mu.Lock()
	return mu.Unlock
}

// window returns the cached turns for user, loading them from the store on a miss.
func (m *Manager) window(ctx context.Context, user string) []persistence.Turn {
	if turns, ok := m.cache.Get(user); ok {
		return turns
	}
	if m.store == nil {
		return nil
	}

	turns, err := m.store.Recent(ctx, user, m.limit())
	if err != nil {
		m.logger.Warn("failed to load history for %s: %v", user, err)
		return nil
	}
	m.cache.Add(user, turns)
	return turns
}

func (m *Manager) record(ctx context.Context, turn *persistence.Turn) {
	if m.scanner != nil {
		turn.Query = m.redact(ctx, turn.Query)
		turn.Response = m.redact(ctx, turn.Response)
	}

	if m.store != nil {
		if err := m.store.Append(ctx, turn); err != nil {
			m.logger.Warn("failed to persist turn %s: %v", turn.RequestID, err)
		}
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	turns, _ := m.cache.Get(turn.UserID)
	next := make([]persistence.Turn, 0, len(turns)+1)
	next = append(next, turns...)
	next = append(next, *turn)
	if limit := m.limit(); len(next) > limit {
		next = next[len(next)-limit:]
	}
	m.cache.Add(turn.UserID, next)
}

func (m *Manager) redact(ctx context.Context, text string) string {
	redacted, err := RedactSecrets(ctx, m.scanner, text)
	if err != nil {
		m.logger.Warn("%v", err)
	}
	return redacted
}

func (m *Manager) limit() int {
	if m.cfg.HistoryLimit > 0 {
		return m.cfg.HistoryLimit
	}
	return config.DefaultHistoryLimit
}

func priorTurns(turns []persistence.Turn, window int) []roma.PriorTurn {
	if window <= 0 {
		return nil
	}
	if len(turns) > window {
		turns = turns[len(turns)-window:]
	}
	// turns are oldest first; tasks want the latest turn first.
	prior := make([]roma.PriorTurn, 0, len(turns))
	for i := len(turns) - 1; i >= 0; i-- {
		prior = append(prior, roma.PriorTurn{Query: turns[i].Query, Response: turns[i].Response})
	}
	return prior
}

func capabilityOf(out roma.Outcome) string {
	if out.Execution != nil {
		return string(out.Execution.CapabilityUsed)
	}
	return string(roma.CapabilityTextSynthesize)
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
