package view

import (
	"sort"

	"dm-service/internal/models"
)

// Merge combines the persisted history of a conversation with the live
// session entries for the same peer pair into one canonical sequence.
//
// A persisted record and a live record are the same message when their
// (sender, timestamp) keys match; the persisted copy wins, keeping the live
// copy's delivery state when the persisted one carries none. Output is
// ascending by timestamp; ties keep the persisted block first and unmatched
// live entries in their insertion order.
func Merge(persisted, live []models.Message) []models.Message {
	out := make([]models.Message, 0, len(persisted)+len(live))
	out = append(out, persisted...)

	index := make(map[models.MessageKey]int, len(persisted))
	for i, m := range persisted {
		index[m.Key()] = i
	}

	for _, m := range live {
		if i, ok := index[m.Key()]; ok {
			if out[i].Delivery == "" {
				out[i].Delivery = m.Delivery
			}
			continue
		}
		out = append(out, m)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SentAt < out[j].SentAt
	})
	return out
}
