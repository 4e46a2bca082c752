package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/feedback-service/internal/repository"
)

// CardAllocator issues human-readable card ids such as AQA-0001. Numbers come
// from a store-backed sequence, so processes sharing a store never collide.
type CardAllocator struct {
	prefix string
	seq    repository.CardSequence
	logger *zap.Logger
}

// NewCardAllocator builds an allocator for prefix.
func NewCardAllocator(prefix string, seq repository.CardSequence, logger *zap.Logger) *CardAllocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CardAllocator{prefix: prefix, seq: seq, logger: logger}
}

// Initialize raises the sequence to the suffix of the newest stored card id.
// A failed lookup seeds from zero and is logged; the sequence never moves
// backwards, and the unique card_id constraint catches any overlap.
func (a *CardAllocator) Initialize(ctx context.Context, tickets repository.TicketRepository) error {
	var seed int64
	latest, err := tickets.LatestCardID(ctx)
	switch {
	case err != nil:
		a.logger.Warn("card allocator: latest card lookup failed; seeding from 0", zap.Error(err))
	case latest != "":
		n, ok := ParseCardNumber(latest)
		if ok {
			seed = n
		} else {
			a.logger.Warn("card allocator: unparseable card id; seeding from 0", zap.String("card_id", latest))
		}
	}

	if err := a.seq.EnsureAtLeast(ctx, seed); err != nil {
		return fmt.Errorf("seed card sequence: %w", err)
	}
	a.logger.Info("card allocator initialized", zap.String("prefix", a.prefix), zap.Int64("seed", seed))
	return nil
}

// Next allocates the following card id.
func (a *CardAllocator) Next(ctx context.Context) (string, error) {
	n, err := a.seq.Next(ctx)
	if err != nil {
		return "", fmt.Errorf("allocate card number: %w", err)
	}
	return FormatCardID(a.prefix, n), nil
}

// FormatCardID zero-pads n to four digits; wider numbers are kept whole.
func FormatCardID(prefix string, n int64) string {
	return fmt.Sprintf("%s-%04d", prefix, n)
}

// ParseCardNumber extracts the numeric suffix after the last dash.
func ParseCardNumber(cardID string) (int64, bool) {
	idx := strings.LastIndex(cardID, "-")
	if idx < 0 || idx == len(cardID)-1 {
		return 0, false
	}
	n, err := strconv.ParseInt(cardID[idx+1:], 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
