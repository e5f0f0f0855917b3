package fleetapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/rafiff23/Mahligai-GPS/internal/metrics"
	"github.com/rafiff23/Mahligai-GPS/internal/models"
	"github.com/rafiff23/Mahligai-GPS/internal/services/auth"
	"github.com/rafiff23/Mahligai-GPS/internal/services/tracking"
	"github.com/rafiff23/Mahligai-GPS/internal/storage/pgfleet"
)

const maxUploadBytes = 32 << 20

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type FleetAPI struct {
	svc  *tracking.Service
	auth *auth.Service

	rl          RateLimiter
	trackPerMin int64
}

func New(svc *tracking.Service, authSvc *auth.Service, rl RateLimiter, trackPerMin int64) *FleetAPI {
	return &FleetAPI{svc: svc, auth: authSvc, rl: rl, trackPerMin: trackPerMin}
}

func (a *FleetAPI) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(durationMiddleware)

	r.Post("/login", a.handleLogin)
	r.Post("/track", a.handleTrack)

	r.Route("/status-driver", func(r chi.Router) {
		r.Post("/", a.handleCreateStatus)
		r.Post("/upload", a.handleCreateStatusUpload)
		r.Post("/edit", a.handleEditStatus)
		r.Post("/update", a.handleFollowupStatus)
		r.Get("/latest", a.handleLatestStatus)
		r.Get("/latest-full", a.handleLatestStatusFull)
		r.Get("/history", a.handleStatusHistory)
	})

	r.Get("/companies", a.handleListCompanies)
	r.Get("/container-sizes", a.handleListContainerSizes)
	r.Get("/trade-types", a.handleListTradeTypes)
	r.Get("/statuses", a.handleListStatuses)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return r
}

type loginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (a *FleetAPI) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}

	driverID, err := a.auth.Login(r.Context(), req.Name, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"driver_id": driverID})
}

type trackRequest struct {
	DriverID  int64   `json:"driver_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (a *FleetAPI) handleTrack(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if a.rl != nil && a.trackPerMin > 0 {
		key := fmt.Sprintf("track:%d", req.DriverID)
		ok, _, err := a.rl.Allow(r.Context(), key, a.trackPerMin, time.Minute)
		// Недоступный лимитер не валит запись позиции.
		if err == nil && !ok {
			metrics.RateLimited.Inc()
			writeErrorStatus(w, http.StatusTooManyRequests, "too many position reports")
			return
		}
	}

	if err := a.svc.RecordPosition(r.Context(), req.DriverID, req.Latitude, req.Longitude); err != nil {
		writeError(w, err)
		return
	}
	metrics.PositionsRecorded.Inc()
	writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
}

type statusCreateRequest struct {
	DriverID         int64  `json:"driver_id"`
	CompanyID        int64  `json:"company_id"`
	Location         string `json:"location"`
	ContainerSizeID  int64  `json:"container_size_id"`
	TradeTypeID      int64  `json:"trade_type_id"`
	StatusID         int64  `json:"status_id"`
	AwaitingDocument bool   `json:"awaiting_document"`
}

func (req statusCreateRequest) toInput() models.StatusCreateInput {
	return models.StatusCreateInput{
		DriverID:         req.DriverID,
		CompanyID:        req.CompanyID,
		Location:         req.Location,
		ContainerSizeID:  req.ContainerSizeID,
		TradeTypeID:      req.TradeTypeID,
		StatusID:         req.StatusID,
		AwaitingDocument: req.AwaitingDocument,
	}
}

func (a *FleetAPI) handleCreateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := a.svc.RecordStatus(r.Context(), req.toInput(), models.AttachmentUploads{}); err != nil {
		writeError(w, err)
		return
	}
	metrics.StatusEventsRecorded.WithLabelValues("create").Inc()
	writeJSON(w, http.StatusOK, map[string]any{"message": "status created"})
}

// handleCreateStatusUpload — тот же путь создания, но multipart: до пяти
// именованных файловых слотов рядом с полями формы.
func (a *FleetAPI) handleCreateStatusUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	in, err := statusInputFromForm(r)
	if err != nil {
		writeError(w, err)
		return
	}

	uploads, count, err := uploadsFromForm(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if _, err := a.svc.RecordStatus(r.Context(), in, uploads); err != nil {
		writeError(w, err)
		return
	}
	metrics.StatusEventsRecorded.WithLabelValues("create").Inc()
	metrics.AttachmentsStored.Add(float64(count))
	writeJSON(w, http.StatusOK, map[string]any{"message": "status and attachments created"})
}

type statusEditRequest struct {
	ID               uint64 `json:"id"`
	StatusID         int64  `json:"status_id"`
	Location         string `json:"location"`
	AwaitingDocument bool   `json:"awaiting_document"`
}

func (a *FleetAPI) handleEditStatus(w http.ResponseWriter, r *http.Request) {
	var req statusEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := a.svc.CorrectStatus(r.Context(), models.StatusCorrection{
		EventID:          req.ID,
		StatusID:         req.StatusID,
		Location:         req.Location,
		AwaitingDocument: req.AwaitingDocument,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.StatusCorrections.Inc()
	writeJSON(w, http.StatusOK, map[string]any{"message": "status corrected"})
}

type statusFollowupRequest struct {
	DriverID         int64  `json:"driver_id"`
	StatusID         int64  `json:"status_id"`
	Location         string `json:"location"`
	AwaitingDocument bool   `json:"awaiting_document"`
}

func (a *FleetAPI) handleFollowupStatus(w http.ResponseWriter, r *http.Request) {
	var req statusFollowupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}

	_, err := a.svc.AppendFollowupStatus(r.Context(), models.FollowupInput{
		DriverID:         req.DriverID,
		StatusID:         req.StatusID,
		Location:         req.Location,
		AwaitingDocument: req.AwaitingDocument,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.StatusEventsRecorded.WithLabelValues("followup").Inc()
	writeJSON(w, http.StatusOK, map[string]any{"message": "status updated"})
}

func (a *FleetAPI) handleLatestStatus(w http.ResponseWriter, r *http.Request) {
	driverID, err := queryInt64(r, "driver_id")
	if err != nil {
		writeError(w, err)
		return
	}

	v, err := a.svc.LatestStatus(r.Context(), driverID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status_id":   v.StatusID,
		"status_name": v.StatusName,
	})
}

func (a *FleetAPI) handleLatestStatusFull(w http.ResponseWriter, r *http.Request) {
	driverID, err := queryInt64(r, "driver_id")
	if err != nil {
		writeError(w, err)
		return
	}

	v, err := a.svc.LatestStatusFull(r.Context(), driverID)
	if err != nil {
		writeError(w, err)
		return
	}
	if v == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "no status for driver"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"driver_id":         v.DriverID,
		"company_id":        v.CompanyID,
		"container_size_id": v.ContainerSizeID,
		"trade_type_id":     v.TradeTypeID,
		"status_id":         v.StatusID,
		"awaiting_document": v.AwaitingDocument,
		"status_name":       v.StatusName,
	})
}

func (a *FleetAPI) handleStatusHistory(w http.ResponseWriter, r *http.Request) {
	driverID, err := queryInt64(r, "driver_id")
	if err != nil {
		writeError(w, err)
		return
	}

	entries, err := a.svc.StatusHistory(r.Context(), driverID)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]any{
			"date":         e.Date,
			"company_name": e.CompanyName,
			"status_name":  e.StatusName,
			"location":     e.Location,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *FleetAPI) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	a.writeCatalog(w, r, a.svc.ListCompanies)
}

func (a *FleetAPI) handleListContainerSizes(w http.ResponseWriter, r *http.Request) {
	a.writeCatalog(w, r, a.svc.ListContainerSizes)
}

func (a *FleetAPI) handleListTradeTypes(w http.ResponseWriter, r *http.Request) {
	a.writeCatalog(w, r, a.svc.ListTradeTypes)
}

func (a *FleetAPI) handleListStatuses(w http.ResponseWriter, r *http.Request) {
	tradeTypeID, err := queryInt64(r, "trade_type_id")
	if err != nil {
		writeError(w, err)
		return
	}
	a.writeCatalog(w, r, func(ctx context.Context) ([]*models.CatalogItem, error) {
		return a.svc.ListStatusesForTradeType(ctx, tradeTypeID)
	})
}

func (a *FleetAPI) writeCatalog(w http.ResponseWriter, r *http.Request, list func(context.Context) ([]*models.CatalogItem, error)) {
	items, err := list(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		out = append(out, map[string]any{"id": it.ID, "name": it.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

func statusInputFromForm(r *http.Request) (models.StatusCreateInput, error) {
	var in models.StatusCreateInput
	var err error
	if in.DriverID, err = formInt64(r, "driver_id"); err != nil {
		return in, err
	}
	if in.CompanyID, err = formInt64(r, "company_id"); err != nil {
		return in, err
	}
	in.Location = r.FormValue("location")
	if in.ContainerSizeID, err = formInt64(r, "container_size_id"); err != nil {
		return in, err
	}
	if in.TradeTypeID, err = formInt64(r, "trade_type_id"); err != nil {
		return in, err
	}
	if in.StatusID, err = formInt64(r, "status_id"); err != nil {
		return in, err
	}
	if in.AwaitingDocument, err = formBool(r, "awaiting_document"); err != nil {
		return in, err
	}
	return in, nil
}

func uploadsFromForm(r *http.Request) (models.AttachmentUploads, int, error) {
	var u models.AttachmentUploads
	count := 0

	slots := []struct {
		field string
		dst   **models.AttachmentPayload
	}{
		{"photo_front", &u.PhotoFront},
		{"photo_back", &u.PhotoBack},
		{"photo_left", &u.PhotoLeft},
		{"photo_right", &u.PhotoRight},
		{"document", &u.Document},
	}
	for _, slot := range slots {
		p, err := formFile(r, slot.field)
		if err != nil {
			return models.AttachmentUploads{}, 0, err
		}
		if p != nil {
			*slot.dst = p
			count++
		}
	}
	return u, count, nil
}

func formFile(r *http.Request, field string) (*models.AttachmentPayload, error) {
	f, hdr, err := r.FormFile(field)
	if err == http.ErrMissingFile {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(tracking.ErrValidation, "bad file field %s", field)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		return nil, errors.Wrapf(err, "read file field %s", field)
	}
	return &models.AttachmentPayload{Name: fileName(hdr), Data: data}, nil
}

func fileName(hdr *multipart.FileHeader) string {
	if hdr != nil && hdr.Filename != "" {
		return hdr.Filename
	}
	return "attachment"
}

func formInt64(r *http.Request, field string) (int64, error) {
	v := r.FormValue(field)
	if v == "" {
		return 0, errors.Wrapf(tracking.ErrValidation, "%s is required", field)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(tracking.ErrValidation, "%s must be an integer", field)
	}
	return n, nil
}

func formBool(r *http.Request, field string) (bool, error) {
	v := r.FormValue(field)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.Wrapf(tracking.ErrValidation, "%s must be a boolean", field)
	}
	return b, nil
}

func queryInt64(r *http.Request, param string) (int64, error) {
	v := r.URL.Query().Get(param)
	if v == "" {
		return 0, errors.Wrapf(tracking.ErrValidation, "%s is required", param)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(tracking.ErrValidation, "%s must be an integer", param)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorStatus(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

// writeError мапит ошибки ядра в HTTP-статусы. Детали storage/blob-сбоев
// наружу не уходят.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tracking.ErrValidation):
		writeErrorStatus(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrUnauthorized):
		writeErrorStatus(w, http.StatusUnauthorized, "invalid name or password")
	case errors.Is(err, pgfleet.ErrNotFound):
		writeErrorStatus(w, http.StatusNotFound, "not found")
	default:
		writeErrorStatus(w, http.StatusInternalServerError, "internal error")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func durationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		metrics.RequestDuration.
			WithLabelValues(route, strconv.Itoa(rec.status)).
			Observe(float64(time.Since(start).Milliseconds()))
	})
}
