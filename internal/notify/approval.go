package notify

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/voicedraft/voicedraft/internal/models"
)

// DraftStatusStore is the slice of the draft repository the approval flow
// needs.
type DraftStatusStore interface {
	UpdateStatus(ctx context.Context, id, status string) error
}

// ResultNotifier posts and rewrites user-visible messages.
type ResultNotifier interface {
	PostProcessing(ctx context.Context, ownerID, text string) (string, error)
	UpdateResult(ctx context.Context, ref, text string) error
}

// ApprovalHandler maps reactions on draft messages to draft status
// changes: a checkmark approves, an x rejects, a numbered reaction
// approves one variant and rejects its siblings.
type ApprovalHandler struct {
	notifier ResultNotifier
	drafts   DraftStatusStore
	logger   *zap.Logger

	mu         sync.Mutex
	draftCache map[string][]string // message ts -> draft IDs, variant order
}

func NewApprovalHandler(notifier ResultNotifier, drafts DraftStatusStore, logger *zap.Logger) *ApprovalHandler {
	return &ApprovalHandler{
		notifier:   notifier,
		drafts:     drafts,
		logger:     logger,
		draftCache: make(map[string][]string),
	}
}

// PostProcessing delegates to the underlying notifier so the approval
// handler can stand in as the pipeline's notifier.
func (h *ApprovalHandler) PostProcessing(ctx context.Context, ownerID, text string) (string, error) {
	return h.notifier.PostProcessing(ctx, ownerID, text)
}

// UpdateResult delegates to the underlying notifier.
func (h *ApprovalHandler) UpdateResult(ctx context.Context, ref, text string) error {
	return h.notifier.UpdateResult(ctx, ref, text)
}

// TrackDraftMessage associates a posted message with the draft variants it
// shows.
func (h *ApprovalHandler) TrackDraftMessage(messageTS string, draftIDs []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.draftCache[messageTS] = draftIDs
}

// HandleReaction processes a reaction on a tracked draft message.
// Reactions on untracked messages are ignored.
func (h *ApprovalHandler) HandleReaction(ctx context.Context, messageTS, reaction string) error {
	h.mu.Lock()
	draftIDs, exists := h.draftCache[messageTS]
	h.mu.Unlock()
	if !exists {
		return nil
	}

	switch reaction {
	case "white_check_mark", "heavy_check_mark":
		return h.approveAll(ctx, messageTS, draftIDs)
	case "x":
		return h.rejectAll(ctx, messageTS, draftIDs)
	case "one":
		return h.approveOne(ctx, messageTS, draftIDs, 0)
	case "two":
		return h.approveOne(ctx, messageTS, draftIDs, 1)
	case "three":
		return h.approveOne(ctx, messageTS, draftIDs, 2)
	}
	return nil
}

// approveOne approves a single variant and rejects its siblings.
func (h *ApprovalHandler) approveOne(ctx context.Context, messageTS string, draftIDs []string, index int) error {
	if index >= len(draftIDs) {
		return h.notifier.UpdateResult(ctx, messageTS, "Invalid variant number.")
	}

	if err := h.drafts.UpdateStatus(ctx, draftIDs[index], models.DraftStatusApproved); err != nil {
		return err
	}
	for i, id := range draftIDs {
		if i == index {
			continue
		}
		if err := h.drafts.UpdateStatus(ctx, id, models.DraftStatusRejected); err != nil {
			h.logger.Warn("could not reject sibling draft", zap.String("draft", id), zap.Error(err))
		}
	}
	return h.notifier.UpdateResult(ctx, messageTS,
		fmt.Sprintf("Approved variant %c. The other variants were rejected.", 'A'+index))
}

func (h *ApprovalHandler) approveAll(ctx context.Context, messageTS string, draftIDs []string) error {
	approved := 0
	for _, id := range draftIDs {
		if err := h.drafts.UpdateStatus(ctx, id, models.DraftStatusApproved); err != nil {
			h.logger.Warn("could not approve draft", zap.String("draft", id), zap.Error(err))
			continue
		}
		approved++
	}
	return h.notifier.UpdateResult(ctx, messageTS, fmt.Sprintf("Approved %d draft(s).", approved))
}

func (h *ApprovalHandler) rejectAll(ctx context.Context, messageTS string, draftIDs []string) error {
	rejected := 0
	for _, id := range draftIDs {
		if err := h.drafts.UpdateStatus(ctx, id, models.DraftStatusRejected); err != nil {
			h.logger.Warn("could not reject draft", zap.String("draft", id), zap.Error(err))
			continue
		}
		rejected++
	}
	return h.notifier.UpdateResult(ctx, messageTS, fmt.Sprintf("Rejected %d draft(s).", rejected))
}
