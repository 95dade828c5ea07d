package events

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"gather/cmd/internal/webapi"
)

// handleDownloadAttendance streams the event's attendance sheet as CSV.
// Restricted to the event owner and admins, like the JSON listing.
func (h *Handler) handleDownloadAttendance(w http.ResponseWriter, r *http.Request) {
	_, e, ok := h.requireOwnerOrAdmin(w, r)
	if !ok {
		return
	}

	recs, err := h.store.ListAttendance(r.Context(), e.ID)
	if err != nil {
		h.log.Error("events.attendance.download.fail", "err", err, "event_id", e.ID)
		webapi.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "attendance-"+e.ID+".csv"))

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Name", "Status", "Join Time", "Leave Time", "Duration (minutes)"})
	for _, rec := range recs {
		leave := ""
		if rec.LeftAt != nil {
			leave = rec.LeftAt.Format(time.RFC3339)
		}
		_ = cw.Write([]string{
			rec.UserName,
			rec.Status,
			rec.JoinedAt.Format(time.RFC3339),
			leave,
			strconv.Itoa(rec.Duration()),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.log.Info("events.attendance.download.write.fail", "err", err, "event_id", e.ID)
	}
}
