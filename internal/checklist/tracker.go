package checklist

import (
	"math"

	"github.com/filo-ai/portal/internal/model"
)

// MarkUploaded returns a copy of slots with documentID marked uploaded and
// file attached. The second result is false, and slots is returned as is,
// when no slot has that id.
func MarkUploaded(slots []model.DocumentRequirement, documentID string, file *model.FileRef) ([]model.DocumentRequirement, bool) {
	idx := Index(slots, documentID)
	if idx < 0 {
		return slots, false
	}

	out := make([]model.DocumentRequirement, len(slots))
	copy(out, slots)
	out[idx].Uploaded = true
	out[idx].File = file
	return out, true
}

// Index returns the position of documentID in slots, or -1.
func Index(slots []model.DocumentRequirement, documentID string) int {
	for i := range slots {
		if slots[i].ID == documentID {
			return i
		}
	}
	return -1
}

// ComputeProgress counts uploads over required slots and over all slots.
func ComputeProgress(slots []model.DocumentRequirement) model.Progress {
	var p model.Progress
	for _, s := range slots {
		p.Total++
		if s.Uploaded {
			p.Uploaded++
		}
		if !s.Required {
			p.HasOptional = true
			continue
		}
		p.RequiredTotal++
		if s.Uploaded {
			p.RequiredUploaded++
		}
	}
	p.RequiredPercent = Percent(p.RequiredUploaded, p.RequiredTotal)
	return p
}

// Percent is round(100*done/total), or 0 when total is 0.
func Percent(done, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(done) / float64(total)))
}
