// Package httpapi exposes the application services as a REST API.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	app "github.com/openquill/platform/internal/app"
	"github.com/openquill/platform/internal/app/domain/donation"
	donationsvc "github.com/openquill/platform/internal/app/services/donations"
	identitysvc "github.com/openquill/platform/internal/app/services/identity"
	userssvc "github.com/openquill/platform/internal/app/services/users"
	apperrors "github.com/openquill/platform/internal/errors"
	"github.com/openquill/platform/pkg/logger"
)

// Handler bundles the HTTP endpoints for the application services.
type Handler struct {
	app   *app.Application
	log   *logger.Logger
	audit *auditLog
}

// Option configures the handler.
type Option func(*Handler)

// WithAuditFile persists the audit trail as JSONL at path in addition to the
// in-memory ring.
func WithAuditFile(path string) Option {
	return func(h *Handler) {
		sink, err := newFileAuditSink(path)
		if err != nil {
			h.log.WithError(err).Warn("audit file sink disabled")
			return
		}
		h.audit = newAuditLog(0, sink)
	}
}

// NewHandler returns a router exposing the REST API.
func NewHandler(application *app.Application, log *logger.Logger, opts ...Option) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &Handler{app: application, log: log, audit: newAuditLog(0, nil)}
	for _, opt := range opts {
		opt(h)
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(h.auditMiddleware)

	// Identity.
	api.HandleFunc("/auth/signup", h.signup).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", h.login).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", h.logout).Methods(http.MethodPost)

	// Current user.
	api.HandleFunc("/me", h.authed(h.me)).Methods(http.MethodGet)
	api.HandleFunc("/me", h.authed(h.updateMe)).Methods(http.MethodPatch)
	api.HandleFunc("/me/bookmarks", h.authed(h.readingList)).Methods(http.MethodGet)

	// Articles.
	api.HandleFunc("/articles", h.listArticles).Methods(http.MethodGet)
	api.HandleFunc("/articles", h.authed(h.createArticle)).Methods(http.MethodPost)
	api.HandleFunc("/articles/search", h.searchArticles).Methods(http.MethodGet)
	api.HandleFunc("/search", h.searchArticles).Methods(http.MethodGet)
	api.HandleFunc("/articles/{id}", h.getArticle).Methods(http.MethodGet)
	api.HandleFunc("/articles/{id}", h.authed(h.updateArticle)).Methods(http.MethodPatch)
	api.HandleFunc("/articles/{id}", h.authed(h.deleteArticle)).Methods(http.MethodDelete)
	api.HandleFunc("/articles/{id}/publish", h.authed(h.publishArticle)).Methods(http.MethodPost)
	api.HandleFunc("/articles/{id}/archive", h.authed(h.archiveArticle)).Methods(http.MethodPost)

	// Comments.
	api.HandleFunc("/articles/{id}/comments", h.articleComments).Methods(http.MethodGet)
	api.HandleFunc("/articles/{id}/comments", h.authed(h.createComment)).Methods(http.MethodPost)
	api.HandleFunc("/comments/{id}/clap", h.authed(h.clapComment)).Methods(http.MethodPost)
	api.HandleFunc("/comments/{id}/clap", h.authed(h.unclapComment)).Methods(http.MethodDelete)

	// Engagement.
	api.HandleFunc("/articles/{id}/clap", h.authed(h.clapArticle)).Methods(http.MethodPost)
	api.HandleFunc("/articles/{id}/clap", h.authed(h.unclapArticle)).Methods(http.MethodDelete)
	api.HandleFunc("/articles/{id}/clap", h.authed(h.clapStatus)).Methods(http.MethodGet)
	api.HandleFunc("/articles/{id}/bookmark", h.authed(h.bookmarkArticle)).Methods(http.MethodPost)
	api.HandleFunc("/articles/{id}/bookmark", h.authed(h.unbookmarkArticle)).Methods(http.MethodDelete)
	api.HandleFunc("/users/{id}/follow", h.authed(h.followUser)).Methods(http.MethodPost)
	api.HandleFunc("/users/{id}/follow", h.authed(h.unfollowUser)).Methods(http.MethodDelete)
	api.HandleFunc("/users/{id}/follow", h.authed(h.followStatus)).Methods(http.MethodGet)

	// Profiles.
	api.HandleFunc("/users/{username}", h.getProfile).Methods(http.MethodGet)
	api.HandleFunc("/users/{username}/articles", h.profileArticles).Methods(http.MethodGet)

	// Tags.
	api.HandleFunc("/tags/popular", h.popularTags).Methods(http.MethodGet)
	api.HandleFunc("/articles/{id}/tags", h.articleTags).Methods(http.MethodGet)
	api.HandleFunc("/articles/{id}/tags", h.authed(h.tagArticle)).Methods(http.MethodPost)

	// Donations.
	api.HandleFunc("/donations", h.createDonation).Methods(http.MethodPost)
	api.HandleFunc("/donations/webhook", h.donationWebhook).Methods(http.MethodPost)
	api.HandleFunc("/donations/{id}", h.getDonation).Methods(http.MethodGet)

	// Operations.
	api.HandleFunc("/admin/audit", h.authed(h.auditTrail)).Methods(http.MethodGet)
	api.HandleFunc("/admin/reconcile", h.authed(h.reconcile)).Methods(http.MethodPost)

	return r
}

// authed wraps a handler with bearer-token authentication. The resolved user
// id is passed through and attached to the request context for log
// correlation.
func (h *Handler) authed(next func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			h.writeError(w, r, apperrors.Unauthorized("missing bearer token"))
			return
		}
		userID, err := h.app.Identity.Authenticate(r.Context(), token)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		auditUserFrom(r.Context()).set(userID)
		ctx := logger.WithUserID(r.Context(), userID)
		next(w, r.WithContext(ctx), userID)
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// --- identity ---

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email     string `json:"email"`
		Username  string `json:"username"`
		Password  string `json:"password"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Bio       string `json:"bio"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.writeError(w, r, apperrors.Validation("invalid request body"))
		return
	}
	creds, err := h.app.Identity.Signup(r.Context(), identitysvc.SignupInput{
		Email:     payload.Email,
		Username:  payload.Username,
		Password:  payload.Password,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Bio:       payload.Bio,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, creds)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.writeError(w, r, apperrors.Validation("invalid request body"))
		return
	}
	creds, err := h.app.Identity.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, creds)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		h.writeError(w, r, apperrors.Unauthorized("missing bearer token"))
		return
	}
	if err := h.app.Identity.Logout(r.Context(), token); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- current user ---

func (h *Handler) me(w http.ResponseWriter, r *http.Request, userID string) {
	u, err := h.app.Users.Get(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) updateMe(w http.ResponseWriter, r *http.Request, userID string) {
	var payload struct {
		Username        *string `json:"username"`
		FirstName       *string `json:"firstName"`
		LastName        *string `json:"lastName"`
		Bio             *string `json:"bio"`
		ProfileImageURL *string `json:"profileImageUrl"`
		IsWriter        *bool   `json:"isWriter"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.writeError(w, r, apperrors.Validation("invalid request body"))
		return
	}
	u, err := h.app.Users.UpdateProfile(r.Context(), userID, userssvc.ProfileUpdate{
		Username:        payload.Username,
		FirstName:       payload.FirstName,
		LastName:        payload.LastName,
		Bio:             payload.Bio,
		ProfileImageURL: payload.ProfileImageURL,
		IsWriter:        payload.IsWriter,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) readingList(w http.ResponseWriter, r *http.Request, userID string) {
	articles, err := h.app.Engagement.ReadingList(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, articles)
}

// --- articles ---

func (h *Handler) listArticles(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit")
	offset := queryInt(r, "offset")
	articles, err := h.app.Articles.ListPublished(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, articles)
}

func (h *Handler) searchArticles(w http.ResponseWriter, r *http.Request) {
	articles, err := h.app.Articles.Search(r.Context(), r.URL.Query().Get("q"), queryInt(r, "limit"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, articles)
}

func (h *Handler) getArticle(w http.ResponseWriter, r *http.Request) {
	a, err := h.app.Articles.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type articlePayload struct {
	Title         *string `json:"title"`
	Subtitle      *string `json:"subtitle"`
	Content       *string `json:"content"`
	Excerpt       *string `json:"excerpt"`
	FeaturedImage *string `json:"featuredImage"`
	IsOpenAccess  *bool   `json:"isOpenAccess"`
}

func (h *Handler) createArticle(w http.ResponseWriter, r *http.Request, userID string) {
	var payload articlePayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.writeError(w, r, apperrors.Validation("invalid request body"))
		return
	}
	in := articleCreateInput(payload)
	a, err := h.app.Articles.Create(r.Context(), userID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) updateArticle(w http.ResponseWriter, r *http.Request, userID string) {
	var payload articlePayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.writeError(w, r, apperrors.Validation("invalid request body"))
		return
	}
	a, err := h.app.Articles.Update(r.Context(), userID, mux.Vars(r)["id"], articleUpdateInput(payload))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) deleteArticle(w http.ResponseWriter, r *http.Request, userID string) {
	if err := h.app.Articles.Delete(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) publishArticle(w http.ResponseWriter, r *http.Request, userID string) {
	a, err := h.app.Articles.Publish(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) archiveArticle(w http.ResponseWriter, r *http.Request, userID string) {
	a, err := h.app.Articles.Archive(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// --- comments ---

func (h *Handler) articleComments(w http.ResponseWriter, r *http.Request) {
	forest, err := h.app.Comments.Thread(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, forest)
}

func (h *Handler) createComment(w http.ResponseWriter, r *http.Request, userID string) {
	var payload struct {
		Content  string `json:"content"`
		ParentID string `json:"parentId"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.writeError(w, r, apperrors.Validation("invalid request body"))
		return
	}
	c, err := h.app.Comments.Create(r.Context(), userID, commentCreateInput(mux.Vars(r)["id"], payload.ParentID, payload.Content))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) clapComment(w http.ResponseWriter, r *http.Request, userID string) {
	if err := h.app.Engagement.ClapComment(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) unclapComment(w http.ResponseWriter, r *http.Request, userID string) {
	if err := h.app.Engagement.UnclapComment(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- engagement ---

func (h *Handler) clapArticle(w http.ResponseWriter, r *http.Request, userID string) {
	if err := h.app.Engagement.ClapArticle(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) unclapArticle(w http.ResponseWriter, r *http.Request, userID string) {
	if err := h.app.Engagement.UnclapArticle(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) clapStatus(w http.ResponseWriter, r *http.Request, userID string) {
	clapped, err := h.app.Engagement.HasClappedArticle(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"clapped": clapped})
}

func (h *Handler) bookmarkArticle(w http.ResponseWriter, r *http.Request, userID string) {
	if err := h.app.Engagement.Bookmark(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) unbookmarkArticle(w http.ResponseWriter, r *http.Request, userID string) {
	if err := h.app.Engagement.Unbookmark(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) followUser(w http.ResponseWriter, r *http.Request, userID string) {
	if err := h.app.Engagement.Follow(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) unfollowUser(w http.ResponseWriter, r *http.Request, userID string) {
	if err := h.app.Engagement.Unfollow(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) followStatus(w http.ResponseWriter, r *http.Request, userID string) {
	following, err := h.app.Engagement.IsFollowing(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"following": following})
}

// --- profiles ---

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	u, err := h.app.Users.GetByUsername(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) profileArticles(w http.ResponseWriter, r *http.Request) {
	u, err := h.app.Users.GetByUsername(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	articles, err := h.app.Articles.ListByAuthor(r.Context(), u.ID, queryInt(r, "limit"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, articles)
}

// --- tags ---

func (h *Handler) popularTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.app.Tags.Popular(r.Context(), queryInt(r, "limit"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

func (h *Handler) articleTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.app.Tags.ForArticle(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

func (h *Handler) tagArticle(w http.ResponseWriter, r *http.Request, userID string) {
	var payload struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.writeError(w, r, apperrors.Validation("invalid request body"))
		return
	}
	t, err := h.app.Tags.Attach(r.Context(), userID, mux.Vars(r)["id"], payload.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// --- donations ---

func (h *Handler) createDonation(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Amount     int    `json:"amount"`
		Currency   string `json:"currency"`
		DonorEmail string `json:"donorEmail"`
		DonorName  string `json:"donorName"`
		Message    string `json:"message"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.writeError(w, r, apperrors.Validation("invalid request body"))
		return
	}
	d, err := h.app.Donations.Create(r.Context(), donationsvc.CreateInput{
		Amount:     payload.Amount,
		Currency:   payload.Currency,
		DonorEmail: payload.DonorEmail,
		DonorName:  payload.DonorName,
		Message:    payload.Message,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (h *Handler) getDonation(w http.ResponseWriter, r *http.Request) {
	d, err := h.app.Donations.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) donationWebhook(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		DonationID      string `json:"donationId"`
		Status          string `json:"status"`
		PaymentIntentID string `json:"paymentIntentId"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.writeError(w, r, apperrors.Validation("invalid request body"))
		return
	}
	d, err := h.app.Donations.Settle(r.Context(), payload.DonationID, donation.Status(payload.Status), payload.PaymentIntentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// --- operations ---

func (h *Handler) auditTrail(w http.ResponseWriter, r *http.Request, _ string) {
	writeJSON(w, http.StatusOK, h.audit.listLimit(queryInt(r, "limit")))
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request, _ string) {
	corrected, err := h.app.Reconciler.RunNow(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"corrected": corrected})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- plumbing ---

func queryInt(r *http.Request, key string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return v
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError renders err as JSON, translating service errors to their HTTP
// status. Unrecognised errors become an opaque 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	svcErr := apperrors.GetServiceError(err)
	if svcErr == nil {
		h.log.WithContext(r.Context()).WithError(err).Error("request failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if svcErr.HTTPStatus >= http.StatusInternalServerError {
		h.log.WithContext(r.Context()).WithError(err).Error("request failed")
	}
	writeJSON(w, svcErr.HTTPStatus, map[string]string{"error": svcErr.Message})
}
