package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Vast-Academy/account-android-app-backend/internal/constants"
	apperrors "github.com/Vast-Academy/account-android-app-backend/internal/errors"
	"github.com/Vast-Academy/account-android-app-backend/internal/metrics"
	"github.com/Vast-Academy/account-android-app-backend/internal/middleware"
	"github.com/Vast-Academy/account-android-app-backend/internal/models"
	"github.com/Vast-Academy/account-android-app-backend/internal/service"
	"github.com/Vast-Academy/account-android-app-backend/internal/tracing"
	"github.com/Vast-Academy/account-android-app-backend/internal/validation"
	"github.com/Vast-Academy/account-android-app-backend/pkg/identity"
)

type Server struct {
	router   *mux.Router
	logger   *logrus.Logger
	cfg      *models.Config
	profile  *service.ProfileService
	claims   *service.ClaimService
	delivery *service.DeliveryService
	server   *http.Server
}

func NewServer(cfg *models.Config, profile *service.ProfileService, claims *service.ClaimService, delivery *service.DeliveryService, verifier identity.Verifier, logger *logrus.Logger) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		logger:   logger,
		cfg:      cfg,
		profile:  profile,
		claims:   claims,
		delivery: delivery,
	}
	s.setupRoutes(verifier)
	return s
}

func (s *Server) setupRoutes(verifier identity.Verifier) {
	s.router.Use(middleware.Observability(s.logger))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.BearerAuth(verifier, s.logger))

	api.HandleFunc("/profile/phone", s.handleUpdatePhone()).Methods(http.MethodPost)
	api.HandleFunc("/profile/username/{name}", s.handleUsernameAvailability()).Methods(http.MethodGet)

	api.HandleFunc("/claims", s.handleRequestClaim()).Methods(http.MethodPost)
	api.HandleFunc("/claims/incoming", s.handleIncomingClaims()).Methods(http.MethodGet)
	api.HandleFunc("/claims/{id:[0-9]+}/respond", s.handleRespondClaim()).Methods(http.MethodPost)

	api.HandleFunc("/messages", s.handleSendMessage()).Methods(http.MethodPost)
	api.HandleFunc("/messages/{id}/receipt", s.handleReceipt()).Methods(http.MethodPost)
	api.HandleFunc("/sync/pending", s.handlePendingSync()).Methods(http.MethodGet)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Server.IdleTimeoutSec) * time.Second,
	}

	s.logger.WithField("port", s.cfg.Server.Port).Info("Starting HTTP server")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, metrics.GetAllMetrics())
	}
}

func (s *Server) handleUpdatePhone() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.UpdatePhoneRequest
		if !s.decodeBody(w, r, &req) {
			return
		}

		resp, err := s.profile.UpdatePhone(r.Context(), middleware.AccountID(r.Context()), req.Phone)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleUsernameAvailability() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := mux.Vars(r)["name"]

		available, err := s.profile.IsUsernameAvailable(r.Context(), username)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, models.UsernameAvailabilityResponse{
			Username:  username,
			Available: available,
		})
	}
}

func (s *Server) handleRequestClaim() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.RequestClaimRequest
		if !s.decodeBody(w, r, &req) {
			return
		}

		claim, offerBlock, err := s.claims.Request(r.Context(), middleware.AccountID(r.Context()), req.Phone)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, models.RequestClaimResponse{
			Claim:      claim,
			OfferBlock: offerBlock,
		})
	}
}

func (s *Server) handleIncomingClaims() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.claims.IncomingClaims(r.Context(), middleware.AccountID(r.Context()))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if claims == nil {
			claims = []models.PhoneClaim{}
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"claims": claims})
	}
}

func (s *Server) handleRespondClaim() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claimID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			s.writeError(w, r, apperrors.NewValidationError("id", "claim id must be numeric"))
			return
		}

		var req models.RespondClaimRequest
		if !s.decodeBody(w, r, &req) {
			return
		}

		claim, previousOwnerMustSetPhone, err := s.claims.Respond(r.Context(), middleware.AccountID(r.Context()), claimID, req)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, models.RespondClaimResponse{
			Claim:                     claim,
			PreviousOwnerMustSetPhone: previousOwnerMustSetPhone,
		})
	}
}

func (s *Server) handleSendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.SendMessageRequest
		if !s.decodeBody(w, r, &req) {
			return
		}

		resp, err := s.delivery.Send(r.Context(), middleware.AccountID(r.Context()), req)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleReceipt() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		messageID := mux.Vars(r)["id"]

		var req models.ReceiptRequest
		if !s.decodeBody(w, r, &req) {
			return
		}

		delivery, err := s.delivery.SubmitReceipt(r.Context(), middleware.AccountID(r.Context()), messageID, req.Status)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, models.ReceiptResponse{
			MessageID: delivery.MessageID,
			Status:    delivery.Status,
		})
	}
}

func (s *Server) handlePendingSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		conversationID := query.Get("conversationId")

		var since time.Time
		if raw := query.Get("since"); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				s.writeError(w, r, apperrors.NewValidationError("since", "must be an RFC 3339 timestamp"))
				return
			}
			since = parsed
		}

		limit := 0
		if raw := query.Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				s.writeError(w, r, apperrors.NewValidationError("limit", "must be an integer"))
				return
			}
			limit = parsed
		}

		deliveries, err := s.delivery.PendingSync(r.Context(), middleware.AccountID(r.Context()), conversationID, since, limit)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if deliveries == nil {
			deliveries = []models.MessageDelivery{}
		}
		s.writeJSON(w, http.StatusOK, models.PendingSyncResponse{Deliveries: deliveries})
	}
}

// decodeBody enforces the body size cap and strict JSON decoding. On failure
// it writes the error response itself and reports false.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := validation.ValidateHTTPRequestSize(r, constants.MaxHTTPBodyBytes); err != nil {
		s.writeError(w, r, err)
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxHTTPBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		s.writeError(w, r, apperrors.NewValidationError("body", "invalid JSON request body"))
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= 500 {
		s.logger.WithError(err).WithField("path", r.URL.Path).Error("Request failed")
	}
	s.writeJSON(w, status, apperrors.ToHTTPResponse(err, tracing.RequestID(r.Context())))
}
