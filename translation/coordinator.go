// Package translation drives on-demand translation of chat messages.
package translation

import (
	"context"
	"fmt"
	"log/slog"
	"salon-sync/contract"
	"salon-sync/domain"
	"salon-sync/domain/event"
	"salon-sync/errors"
	"strings"
	"sync"

	"github.com/abadojack/whatlanggo"
)

// Coordinator holds one translation state per message and moves it along
// absent -> loading -> shown | error.
//
// Requesting a shown translation hides it again without any network call,
// requesting a failed one retries it, and requesting one that is loading does
// nothing. States are kept in memory for the session only.
type Coordinator struct {
	log        *slog.Logger
	translator contract.Translator
	locales    contract.LocaleResolver
	emitter    contract.Emitter

	mu     sync.Mutex
	states map[string]domain.TranslationState
	// renamed maps the key an in-flight request started under to the key
	// its message was rekeyed to meanwhile.
	renamed map[string]string
}

func NewCoordinator(
	log *slog.Logger,
	translator contract.Translator,
	locales contract.LocaleResolver,
	emitter contract.Emitter,
) *Coordinator {
	return &Coordinator{
		log:        log,
		translator: translator,
		locales:    locales,
		emitter:    emitter,
		states:     make(map[string]domain.TranslationState),
		renamed:    make(map[string]string),
	}
}

// Request toggles or fetches the translation of msg and returns the new state.
// A failed backend call leaves the message in the error state and is also
// returned to the caller.
func (c *Coordinator) Request(ctx context.Context, msg domain.Message) (domain.TranslationState, error) {
	if strings.TrimSpace(msg.Text) == "" {
		return c.State(msg.Key()), errors.ErrNothingToTranslate
	}
	key := msg.Key()

	c.mu.Lock()
	current := c.states[key]
	switch current.Current() {
	case domain.TranslationLoading:
		c.mu.Unlock()
		return current, nil
	case domain.TranslationShown:
		delete(c.states, key)
		c.mu.Unlock()
		c.publish(ctx, key, domain.TranslationState{Status: domain.TranslationAbsent})
		return domain.TranslationState{Status: domain.TranslationAbsent}, nil
	}
	loading := domain.TranslationState{Status: domain.TranslationLoading}
	c.states[key] = loading
	c.mu.Unlock()
	c.publish(ctx, key, loading)

	text, err := c.translate(ctx, msg)

	next := domain.TranslationState{Status: domain.TranslationShown, Text: text}
	if err != nil {
		next = domain.TranslationState{Status: domain.TranslationError, Reason: err.Error()}
		c.log.Warn("Translation failed", "message", key, "error", err)
	}

	c.mu.Lock()
	settled := c.settleLocked(key)
	// Clear or Reset during the call wins over the late result.
	if c.states[settled].Current() != domain.TranslationLoading {
		c.mu.Unlock()
		return c.State(settled), err
	}
	c.states[settled] = next
	c.mu.Unlock()
	c.publish(ctx, settled, next)
	return next, err
}

// State returns the translation state of the message identified by key.
func (c *Coordinator) State(key string) domain.TranslationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.states[key]
	st.Status = st.Current()
	return st
}

// Rekey moves the state of a provisional message to its server id once the
// message has been reconciled.
func (c *Coordinator) Rekey(from, to string) {
	if from == "" || from == to {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.states[from]; ok {
		delete(c.states, from)
		c.states[to] = st
		if st.Current() == domain.TranslationLoading {
			c.renamed[from] = to
		}
	}
}

// Clear returns the message to the absent state.
func (c *Coordinator) Clear(ctx context.Context, key string) {
	c.mu.Lock()
	_, ok := c.states[key]
	delete(c.states, key)
	c.mu.Unlock()
	if ok {
		c.publish(ctx, key, domain.TranslationState{Status: domain.TranslationAbsent})
	}
}

// Reset drops every state, used when the session ends.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states = make(map[string]domain.TranslationState)
	c.renamed = make(map[string]string)
}

// settleLocked follows the renames of key since its request started and
// forgets them.
func (c *Coordinator) settleLocked(key string) string {
	for {
		to, ok := c.renamed[key]
		if !ok {
			return key
		}
		delete(c.renamed, key)
		key = to
	}
}

func (c *Coordinator) translate(ctx context.Context, msg domain.Message) (string, error) {
	locales, err := c.locales.Locales(ctx, msg.RoomID)
	if err != nil {
		return "", fmt.Errorf("resolve locales: %w", err)
	}
	source, target := locales.Pair(msg.SenderType)
	if source == "" {
		source = detect(msg.Text)
	}
	if target == "" {
		return "", fmt.Errorf("%w: no target language for room %d", errors.ErrBackend, msg.RoomID)
	}
	return c.translator.Translate(ctx, msg.Text, source, target)
}

func (c *Coordinator) publish(ctx context.Context, key string, st domain.TranslationState) {
	c.emitter.Emit(ctx, event.TranslationChanged{MessageKey: key, State: st})
}

// detect guesses the ISO 639-1 language of text, empty when unsure.
func detect(text string) string {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6391()
}
