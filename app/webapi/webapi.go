// Package webapi provides the REST API of the prayer service: prayer requests CRUD with server-side
// re-validation, content checks for thin clients, filter administration and metrics.
package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/didip/tollbooth/v8"
	"github.com/didip/tollbooth/v8/limiter"
	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/routegroup"
	"github.com/hashicorp/go-multierror"

	"github.com/kingdomunited/prayers/app/metrics"
	"github.com/kingdomunited/prayers/app/storage"
	"github.com/kingdomunited/prayers/lib/contentfilter"
	"github.com/kingdomunited/prayers/lib/validator"
)

// Server is a web API server
type Server struct {
	Config
	logLock sync.Mutex
}

// Config defines server parameters
type Config struct {
	Version      string        // version to show in /health and app info headers
	ListenAddr   string        // listen address
	Prayers      PrayerStore   // prayer requests storage
	Rejected     RejectedStore // rejected submissions storage
	Validator    Validator     // submission validator
	Filter       FilterAdmin   // content filter cache administration
	Metrics      *metrics.Metrics
	RejectionLog io.Writer // optional json-lines log of rejected submissions
	AdminPasswd  string    // basic auth password for user "admin", admin routes disabled if empty
	RateLimit    float64   // max requests per minute per ip, 0 disables limiting
}

// PrayerStore is a prayer requests storage, implemented by storage.Prayers
type PrayerStore interface {
	Add(ctx context.Context, prayer storage.Prayer) (storage.Prayer, error)
	Get(ctx context.Context, id string) (storage.Prayer, error)
	List(ctx context.Context) ([]storage.Prayer, error)
	ListByUser(ctx context.Context, userID string) ([]storage.Prayer, error)
	ListByZip(ctx context.Context, zip string) ([]storage.Prayer, error)
	Update(ctx context.Context, id, text, zip string) (storage.Prayer, error)
	UpdateText(ctx context.Context, id, text string) (storage.Prayer, error)
	UpdateZip(ctx context.Context, id, zip string) (storage.Prayer, error)
	Delete(ctx context.Context, id string) error
}

// RejectedStore is a storage of rejected submissions, implemented by storage.Rejected
type RejectedStore interface {
	Write(ctx context.Context, entry storage.RejectedInfo) error
	Read(ctx context.Context, limit int) ([]storage.RejectedInfo, error)
}

// Validator checks submissions, implemented by validator.Validator
type Validator interface {
	PrayerText(text string) validator.Result
	QuickPrayerText(text string) contentfilter.QuickVerdict
	Submission(userID, zip, text string) error
	CheckText(text string) error
}

// FilterAdmin gives access to the content filter cache, implemented by contentfilter.Filter
type FilterAdmin interface {
	CacheStats() contentfilter.CacheStats
	ClearCache()
}

const adminUser = "admin"

// Zip is a zip code accepting both JSON string and number, mobile clients send it as a number
type Zip string

// UnmarshalJSON accepts "12345" and 12345
func (z *Zip) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*z = Zip(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("zip must be a string or a number: %w", err)
	}
	v, err := n.Int64()
	if err != nil {
		return fmt.Errorf("zip must be an integer: %w", err)
	}
	*z = Zip(strconv.FormatInt(v, 10))
	return nil
}

// prayerRequest is a body of create and update requests, missing fields are nil
type prayerRequest struct {
	UserID string  `json:"userId"`
	Zip    *Zip    `json:"zip"`
	Text   *string `json:"prayerText"`
}

type checkRequest struct {
	Text string `json:"text"`
}

// NewServer makes a new web API server
func NewServer(config Config) *Server {
	if config.Metrics == nil {
		config.Metrics = metrics.New(nil)
	}
	return &Server{Config: config}
}

// Run starts the server and blocks until ctx is canceled
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] failed to shutdown webapi server: %v", err)
		} else {
			log.Printf("[INFO] webapi server stopped")
		}
	}()

	log.Printf("[INFO] start webapi server on %s", s.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to run server: %w", err)
	}
	return nil
}

func (s *Server) routes() http.Handler {
	router := routegroup.New(http.NewServeMux())
	router.Use(rest.Recoverer(lgr.Default()))
	router.Use(rest.Throttle(1000))
	router.Use(rest.AppInfo("prayers", "kingdomunited", s.Version), rest.Ping)
	router.Use(rest.SizeLimit(64 * 1024))
	if s.RateLimit > 0 {
		router.Use(tollbooth.HTTPMiddleware(s.limiter()))
	}

	router.HandleFunc("GET /health", s.healthHandler)
	router.Handle("GET /metrics", s.Metrics.Handler())

	router.Route(func(data *routegroup.Bundle) {
		data.HandleFunc("POST /data", s.addPrayerHandler)
		data.HandleFunc("GET /data", s.listPrayersHandler)
		data.HandleFunc("GET /data/user/{userId}", s.listByUserHandler)
		data.HandleFunc("GET /data/zip/{zip}", s.listByZipHandler)
		data.HandleFunc("GET /data/{id}", s.getPrayerHandler)
		data.HandleFunc("PUT /data/{id}", s.updatePrayerHandler)
		data.HandleFunc("PUT /data/{id}/text", s.updateTextHandler)
		data.HandleFunc("PUT /data/{id}/zip", s.updateZipHandler)
		data.HandleFunc("DELETE /data/{id}", s.deletePrayerHandler)
	})

	router.HandleFunc("POST /check", s.checkHandler)
	router.HandleFunc("POST /check/quick", s.quickCheckHandler)

	if s.AdminPasswd == "" {
		log.Printf("[WARN] admin password not set, admin routes disabled")
		return router
	}
	router.Mount("/admin").Route(func(admin *routegroup.Bundle) {
		admin.Use(rest.BasicAuthWithUserPasswd(adminUser, s.AdminPasswd))
		admin.HandleFunc("GET /filter", s.filterStatsHandler)
		admin.HandleFunc("DELETE /filter/cache", s.clearCacheHandler)
		admin.HandleFunc("GET /rejected", s.rejectedHandler)
	})
	return router
}

// limiter makes per-ip rate limiter, RateLimit is per minute and is spread as a per-second rate with a full-minute burst
func (s *Server) limiter() *limiter.Limiter {
	lmt := tollbooth.NewLimiter(s.RateLimit/60, &limiter.ExpirableOptions{DefaultExpirationTTL: time.Hour})
	lmt.SetBurst(int(s.RateLimit))
	lmt.SetIPLookup(limiter.IPLookup{Name: "RemoteAddr"})
	lmt.SetMessageContentType("application/json; charset=utf-8")
	lmt.SetMessage(`{"error":"Too many requests, please try again later"}`)
	return lmt
}

// GET /health
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	rest.RenderJSON(w, rest.JSON{"status": "ok", "version": s.Version})
}

// POST /data, re-validates the submission and stores it. Rejected submissions are recorded but not stored.
func (s *Server) addPrayerHandler(w http.ResponseWriter, r *http.Request) {
	req := prayerRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.Metrics.Submission(metrics.SubmissionFailed)
		renderError(w, http.StatusBadRequest, "can't decode request", err)
		return
	}
	zip, text := req.zip(), req.text()

	if err := s.Validator.Submission(req.UserID, zip, text); err != nil {
		s.Metrics.Submission(metrics.SubmissionRejected)
		s.reject(w, r, storage.RejectedInfo{UserID: req.UserID, Zip: zip, Text: text}, err)
		return
	}

	prayer, err := s.Prayers.Add(r.Context(), storage.Prayer{UserID: strings.TrimSpace(req.UserID),
		Zip: strings.TrimSpace(zip), Text: strings.TrimSpace(text)})
	if err != nil {
		s.Metrics.Submission(metrics.SubmissionFailed)
		renderError(w, http.StatusInternalServerError, "can't store prayer request", err)
		return
	}
	s.Metrics.Submission(metrics.SubmissionAccepted)
	w.WriteHeader(http.StatusCreated)
	rest.RenderJSON(w, prayer)
}

// GET /data
func (s *Server) listPrayersHandler(w http.ResponseWriter, r *http.Request) {
	prayers, err := s.Prayers.List(r.Context())
	s.renderList(w, prayers, err)
}

// GET /data/user/{userId}
func (s *Server) listByUserHandler(w http.ResponseWriter, r *http.Request) {
	prayers, err := s.Prayers.ListByUser(r.Context(), r.PathValue("userId"))
	s.renderList(w, prayers, err)
}

// GET /data/zip/{zip}
func (s *Server) listByZipHandler(w http.ResponseWriter, r *http.Request) {
	zip := r.PathValue("zip")
	if err := validator.CheckZip(zip); err != nil {
		renderError(w, http.StatusBadRequest, "invalid zip code", err)
		return
	}
	prayers, err := s.Prayers.ListByZip(r.Context(), strings.TrimSpace(zip))
	s.renderList(w, prayers, err)
}

// GET /data/{id}
func (s *Server) getPrayerHandler(w http.ResponseWriter, r *http.Request) {
	prayer, err := s.Prayers.Get(r.Context(), r.PathValue("id"))
	s.renderPrayer(w, prayer, err)
}

// PUT /data/{id}, both text and zip are required and re-validated
func (s *Server) updatePrayerHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeUpdate(w, r)
	if !ok {
		return
	}
	if req.Zip == nil || req.Text == nil {
		renderError(w, http.StatusBadRequest, "zip and prayerText are required", nil)
		return
	}
	zip, text := req.zip(), req.text()
	var errs *multierror.Error
	if err := validator.CheckZip(zip); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := s.Validator.CheckText(text); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := errs.ErrorOrNil(); err != nil {
		s.reject(w, r, storage.RejectedInfo{UserID: req.UserID, Zip: zip, Text: text}, err)
		return
	}
	prayer, err := s.Prayers.Update(r.Context(), r.PathValue("id"), strings.TrimSpace(text), strings.TrimSpace(zip))
	s.renderPrayer(w, prayer, err)
}

// PUT /data/{id}/text
func (s *Server) updateTextHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeUpdate(w, r)
	if !ok {
		return
	}
	if req.Text == nil {
		renderError(w, http.StatusBadRequest, "prayerText is required", nil)
		return
	}
	text := req.text()
	if err := s.Validator.CheckText(text); err != nil {
		s.reject(w, r, storage.RejectedInfo{UserID: req.UserID, Text: text}, err)
		return
	}
	prayer, err := s.Prayers.UpdateText(r.Context(), r.PathValue("id"), strings.TrimSpace(text))
	s.renderPrayer(w, prayer, err)
}

// PUT /data/{id}/zip
func (s *Server) updateZipHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeUpdate(w, r)
	if !ok {
		return
	}
	if req.Zip == nil {
		renderError(w, http.StatusBadRequest, "zip is required", nil)
		return
	}
	zip := req.zip()
	if err := validator.CheckZip(zip); err != nil {
		renderError(w, http.StatusBadRequest, "invalid zip code", err)
		return
	}
	prayer, err := s.Prayers.UpdateZip(r.Context(), r.PathValue("id"), strings.TrimSpace(zip))
	s.renderPrayer(w, prayer, err)
}

// DELETE /data/{id}
func (s *Server) deletePrayerHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.Prayers.Delete(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			renderError(w, http.StatusNotFound, "prayer request not found", nil)
			return
		}
		renderError(w, http.StatusInternalServerError, "can't delete prayer request", err)
		return
	}
	rest.RenderJSON(w, rest.JSON{"deleted": id})
}

// POST /check, full validation of the text for clients without a local filter
func (s *Server) checkHandler(w http.ResponseWriter, r *http.Request) {
	req := checkRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, http.StatusBadRequest, "can't decode request", err)
		return
	}
	st := time.Now()
	res := s.Validator.PrayerText(req.Text)
	s.Metrics.Check(metrics.ModeFull, res.Valid, time.Since(st))
	rest.RenderJSON(w, res)
}

// POST /check/quick, live feedback while typing
func (s *Server) quickCheckHandler(w http.ResponseWriter, r *http.Request) {
	req := checkRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, http.StatusBadRequest, "can't decode request", err)
		return
	}
	st := time.Now()
	res := s.Validator.QuickPrayerText(req.Text)
	s.Metrics.Check(metrics.ModeQuick, res.Valid, time.Since(st))
	rest.RenderJSON(w, res)
}

// GET /admin/filter
func (s *Server) filterStatsHandler(w http.ResponseWriter, _ *http.Request) {
	rest.RenderJSON(w, s.Filter.CacheStats())
}

// DELETE /admin/filter/cache
func (s *Server) clearCacheHandler(w http.ResponseWriter, _ *http.Request) {
	s.Filter.ClearCache()
	log.Printf("[INFO] content filter cache cleared")
	rest.RenderJSON(w, s.Filter.CacheStats())
}

// GET /admin/rejected?limit=N
func (s *Server) rejectedHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			renderError(w, http.StatusBadRequest, "invalid limit", err)
			return
		}
		limit = n
	}
	res, err := s.Rejected.Read(r.Context(), limit)
	if err != nil {
		renderError(w, http.StatusInternalServerError, "can't read rejected submissions", err)
		return
	}
	rest.RenderJSON(w, res)
}

// reject records a refused submission and responds with 400 and details of all failed fields
func (s *Server) reject(w http.ResponseWriter, r *http.Request, entry storage.RejectedInfo, verr error) {
	msgs := fieldErrors(verr)
	resp := rest.JSON{"isValid": false, "error": msgs[0], "errors": msgs, "suggestions": []string{},
		"hasInappropriateContent": false}
	entry.Reason = verr.Error()
	if res, ok := validator.TextResult(verr); ok {
		resp["error"] = res.Error
		resp["suggestions"] = res.Suggestions
		resp["hasInappropriateContent"] = res.HasInappropriateContent
		entry.Reason = res.Error
		entry.Inappropriate = res.HasInappropriateContent
	}
	entry.Timestamp = time.Now()

	if s.Rejected != nil {
		if err := s.Rejected.Write(r.Context(), entry); err != nil {
			log.Printf("[WARN] can't save rejected submission: %v", err)
		}
	}
	s.logRejection(entry)

	w.WriteHeader(http.StatusBadRequest)
	rest.RenderJSON(w, resp)
}

// logRejection writes the entry as a json line to the rejection log, if set
func (s *Server) logRejection(entry storage.RejectedInfo) {
	if s.RejectionLog == nil {
		return
	}
	line, err := json.Marshal(entry)
	if err != nil {
		log.Printf("[WARN] can't marshal rejected submission: %v", err)
		return
	}
	s.logLock.Lock()
	defer s.logLock.Unlock()
	if _, err := s.RejectionLog.Write(append(line, '\n')); err != nil {
		log.Printf("[WARN] can't write rejection log: %v", err)
	}
}

func (s *Server) decodeUpdate(w http.ResponseWriter, r *http.Request) (prayerRequest, bool) {
	req := prayerRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, http.StatusBadRequest, "can't decode request", err)
		return req, false
	}
	return req, true
}

func (s *Server) renderList(w http.ResponseWriter, prayers []storage.Prayer, err error) {
	if err != nil {
		renderError(w, http.StatusInternalServerError, "can't get prayer requests", err)
		return
	}
	if prayers == nil {
		prayers = []storage.Prayer{}
	}
	rest.RenderJSON(w, prayers)
}

func (s *Server) renderPrayer(w http.ResponseWriter, prayer storage.Prayer, err error) {
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			renderError(w, http.StatusNotFound, "prayer request not found", nil)
			return
		}
		renderError(w, http.StatusInternalServerError, "can't process prayer request", err)
		return
	}
	rest.RenderJSON(w, prayer)
}

func (r prayerRequest) zip() string {
	if r.Zip == nil {
		return ""
	}
	return string(*r.Zip)
}

func (r prayerRequest) text() string {
	if r.Text == nil {
		return ""
	}
	return *r.Text
}

// fieldErrors flattens validation errors to user-facing messages
func fieldErrors(err error) []string {
	errs := []error{err}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		errs = merr.WrappedErrors()
	}
	res := make([]string, 0, len(errs))
	for _, e := range errs {
		if tr, ok := validator.TextResult(e); ok {
			res = append(res, tr.Error)
			continue
		}
		res = append(res, e.Error())
	}
	return res
}

func renderError(w http.ResponseWriter, code int, msg string, err error) {
	resp := rest.JSON{"error": msg}
	if err != nil {
		resp["details"] = err.Error()
		if code >= http.StatusInternalServerError {
			log.Printf("[WARN] %s: %v", msg, err)
		}
	}
	w.WriteHeader(code)
	rest.RenderJSON(w, resp)
}
