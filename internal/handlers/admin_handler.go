package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"labelcheck/internal/catalog"
	"labelcheck/internal/ledger"
	"labelcheck/internal/models"
	"labelcheck/internal/services"
)

// AdminHandler serves the operational read API behind admin auth.
type AdminHandler struct {
	db     *gorm.DB
	store  *catalog.Store
	ledger *ledger.Ledger
	auth   *services.AuthService
}

// NewAdminHandler creates the admin API handler.
func NewAdminHandler(db *gorm.DB, store *catalog.Store, ldg *ledger.Ledger, auth *services.AuthService) *AdminHandler {
	return &AdminHandler{db: db, store: store, ledger: ldg, auth: auth}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges admin credentials for a JWT.
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// AuthMiddleware validates the Bearer token on protected routes.
func (h *AdminHandler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if _, err := h.auth.ValidateToken(strings.TrimPrefix(header, "Bearer ")); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Stats returns aggregate service counters.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var userCount, productCount, scanCount, cacheHits int64
	h.db.Model(&models.User{}).Count(&userCount)
	h.db.Model(&models.Product{}).Count(&productCount)
	h.db.Model(&models.ScanRecord{}).Count(&scanCount)
	h.db.Model(&models.ScanRecord{}).Where("cache_hit = ?", true).Count(&cacheHits)

	// Cost columns are decimals; summed in Go to keep exactness across
	// drivers.
	var users []models.User
	totalCost := decimal.Zero
	if err := h.db.Select("total_cost").Find(&users).Error; err == nil {
		for _, u := range users {
			totalCost = totalCost.Add(u.TotalCost)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"users":           userCount,
		"products":        productCount,
		"scans":           scanCount,
		"cache_hits":      cacheHits,
		"cumulative_cost": totalCost.Round(6).String(),
	})
}

// RecentScans returns the newest ledger entries across all users.
func (h *AdminHandler) RecentScans(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := h.ledger.Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// Products lists the canonical product catalog.
func (h *AdminHandler) Products(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.All()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// UserScans returns one user's scan history.
func (h *AdminHandler) UserScans(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := h.ledger.History(uint(id), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
