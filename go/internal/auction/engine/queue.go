package engine

import (
	"github.com/google/uuid"
	"github.com/gavelhq/gavel/go/internal/models"
)

// Queue helpers. The cursor only advances forward; a defer re-appends the
// item at the end instead of rewinding.

// nextAvailable returns the index at or after cursor of the first player that
// is still AVAILABLE, skipping anything already SOLD or UNSOLD. The second
// return is false when the queue is exhausted.
func nextAvailable(queue []uuid.UUID, cursor int, players map[uuid.UUID]*models.Player) (int, bool) {
	for i := cursor; i < len(queue); i++ {
		p, ok := players[queue[i]]
		if ok && p.Status == models.PlayerStatusAvailable {
			return i, true
		}
	}
	return len(queue), false
}

// deferItem moves playerID from its position at or after cursor to the end of
// the queue. It returns the new queue and whether the item was found; the
// cursor is untouched.
func deferItem(queue []uuid.UUID, cursor int, playerID uuid.UUID) ([]uuid.UUID, bool) {
	for i := cursor; i < len(queue); i++ {
		if queue[i] != playerID {
			continue
		}
		next := make([]uuid.UUID, 0, len(queue))
		next = append(next, queue[:i]...)
		next = append(next, queue[i+1:]...)
		next = append(next, playerID)
		return next, true
	}
	return queue, false
}
