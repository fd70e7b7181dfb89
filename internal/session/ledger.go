package session

import (
	"encoding/csv"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Exchange is one question/answer pair recorded after a successful answer.
type Exchange struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Model     string    `json:"model"`
	Timestamp time.Time `json:"timestamp"`
	Sources   string    `json:"sources"`
}

// Ledger is the in-memory, append-only record of a session's exchanges. It
// lives only for the process lifetime; durable state is the document store
// and the persisted index, not this.
type Ledger struct {
	mu        sync.Mutex
	exchanges []Exchange
}

func NewLedger() *Ledger {
	return &Ledger{}
}

func (l *Ledger) Record(question, answer, model, sources string) Exchange {
	exchange := Exchange{
		ID:        uuid.New().String(),
		Question:  question,
		Answer:    answer,
		Model:     model,
		Timestamp: time.Now(),
		Sources:   sources,
	}

	l.mu.Lock()
	l.exchanges = append(l.exchanges, exchange)
	l.mu.Unlock()

	return exchange
}

// History returns exchanges in recording order.
func (l *Ledger) History() []Exchange {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Exchange, len(l.exchanges))
	copy(out, l.exchanges)
	return out
}

func (l *Ledger) Clear() {
	l.mu.Lock()
	l.exchanges = nil
	l.mu.Unlock()
}

// ExportCSV writes the history as a tabular file with the columns
// Question, Answer, Model, Timestamp, PDF Name.
func (l *Ledger) ExportCSV(w io.Writer) error {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{"Question", "Answer", "Model", "Timestamp", "PDF Name"}); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, ex := range l.History() {
		row := []string{
			ex.Question,
			ex.Answer,
			ex.Model,
			ex.Timestamp.Format("2006-01-02 15:04:05"),
			ex.Sources,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// Registry hands out one ledger per user.
type Registry struct {
	mu      sync.Mutex
	ledgers map[string]*Ledger
}

func NewRegistry() *Registry {
	return &Registry{ledgers: make(map[string]*Ledger)}
}

func (r *Registry) For(user string) *Ledger {
	r.mu.Lock()
	defer r.mu.Unlock()

	ledger, ok := r.ledgers[user]
	if !ok {
		ledger = NewLedger()
		r.ledgers[user] = ledger
	}
	return ledger
}
