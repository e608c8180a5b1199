package handlers

import (
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/ledger"
)

// AttendanceHandler shows the ledger.
type AttendanceHandler struct {
	reader ledger.Reader
	log    logrus.FieldLogger
}

func NewAttendanceHandler(reader ledger.Reader, log logrus.FieldLogger) *AttendanceHandler {
	return &AttendanceHandler{reader: reader, log: log}
}

// AttendanceResponse is a filtered ledger listing. Total counts every
// matching record even when Records is truncated by the limit.
type AttendanceResponse struct {
	Records []ledger.Event         `json:"records"`
	Total   int                    `json:"total"`
	Summary []ledger.IdentityCount `json:"summary"`
}

// List handles GET /attendance?name=&since=&until=&limit=.
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	since, err := ledger.ParseTime(q.Get("since"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid since: "+err.Error())
		return
	}
	until, err := ledger.ParseTime(q.Get("until"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid until: "+err.Error())
		return
	}
	limit := constants.DefaultAttendanceLimit
	if s := q.Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil || limit <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
	}

	events, err := h.reader.ReadAll(r.Context())
	if err != nil {
		h.log.WithError(err).Error("reading attendance")
		respondError(w, http.StatusInternalServerError, "failed to read attendance")
		return
	}

	matched := ledger.Filter(events, ledger.Query{Name: q.Get("name"), Since: since, Until: until})
	resp := AttendanceResponse{
		Records: matched,
		Total:   len(matched),
		Summary: ledger.Summarize(matched),
	}
	// Newest records are the interesting ones when truncating.
	if len(resp.Records) > limit {
		resp.Records = resp.Records[len(resp.Records)-limit:]
	}
	respondJSON(w, http.StatusOK, resp)
}
