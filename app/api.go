package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/agistaffers/pushgate/config"
	"github.com/agistaffers/pushgate/lib"
	"github.com/agistaffers/pushgate/lib/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const Version = "1.0.0"

func NewAPI(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, svc *lib.Service) *http.Server {
	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	srv := &http.Server{Addr: addr, Handler: Router(cfg, log, svc)}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Sugar().Infof("Push notification API listening on %s", addr)
			go srv.ListenAndServe()
			return nil
		},
		OnStop: srv.Shutdown,
	})

	return srv
}

func Router(cfg *config.Config, log *zap.Logger, svc *lib.Service) http.Handler {
	ctrl := &controller{cfg, log, svc}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", ctrl.health)

	r.Route("/api", func(r chi.Router) {
		if creds := cfg.GetCreds(); len(creds) > 0 {
			r.Use(middleware.BasicAuth("pushgate", creds))
		} else {
			log.Sugar().Info("Auth is disabled since no credentials are defined")
		}

		r.Post("/subscribe", ctrl.subscribe)
		r.Post("/unsubscribe", ctrl.unsubscribe)
		r.Post("/preferences", ctrl.updatePreferences)
		r.Get("/preferences/{user_id}", ctrl.getPreferences)
		r.Post("/test-notification", ctrl.testNotification)
		r.Post("/broadcast", ctrl.broadcast)
		r.Post("/alert", ctrl.alert)
		r.Get("/subscriptions", ctrl.listSubscriptions)
		r.Get("/history/{user_id}", ctrl.history)

		r.Route("/notify", func(r chi.Router) {
			r.Post("/container-down", ctrl.notifyContainerDown)
			r.Post("/high-cpu", ctrl.notifyHighCPU)
			r.Post("/low-memory", ctrl.notifyLowMemory)
			r.Post("/low-disk", ctrl.notifyLowDisk)
			r.Post("/backup-complete", ctrl.notifyBackup)
			r.Post("/deployment", ctrl.notifyDeployment)
			r.Post("/security-alert", ctrl.notifySecurity)
		})
	})

	return r
}

type controller struct {
	cfg *config.Config
	log *zap.Logger
	svc *lib.Service
}

func (ctrl *controller) reject(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var verr *lib.ValidationError
	var nerr *lib.NotFoundError
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
	case errors.As(err, &nerr):
		status = http.StatusNotFound
	}

	ctrl.writeJSON(w, status, apiResponse{Success: false, Error: err.Error()})
}

func (ctrl *controller) resolve(w http.ResponseWriter, message string) {
	ctrl.writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: message})
}

func (ctrl *controller) writeJSON(w http.ResponseWriter, status int, body any) {
	b, err := json.Marshal(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		ctrl.log.Sugar().Errorw("Request failed", "error", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

func decode[T any](r *http.Request) (T, error) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, &lib.ValidationError{Msg: "invalid request body"}
	}
	return req, nil
}

func (ctrl *controller) subscribe(w http.ResponseWriter, r *http.Request) {
	req, err := decode[subscribeRequest](r)
	if err != nil {
		ctrl.reject(w, err)
		return
	}
	if err := ctrl.svc.Subscribe(r.Context(), req.UserID, req.Subscription); err != nil {
		ctrl.reject(w, err)
		return
	}
	ctrl.resolve(w, "Subscription saved")
}

func (ctrl *controller) unsubscribe(w http.ResponseWriter, r *http.Request) {
	req, err := decode[unsubscribeRequest](r)
	if err != nil {
		ctrl.reject(w, err)
		return
	}
	if err := ctrl.svc.Unsubscribe(r.Context(), req.UserID); err != nil {
		ctrl.reject(w, err)
		return
	}
	ctrl.resolve(w, "Unsubscribed successfully")
}

func (ctrl *controller) updatePreferences(w http.ResponseWriter, r *http.Request) {
	req, err := decode[preferencesRequest](r)
	if err != nil {
		ctrl.reject(w, err)
		return
	}
	if err := ctrl.svc.UpdatePreferences(r.Context(), req.UserID, req.Preferences); err != nil {
		ctrl.reject(w, err)
		return
	}
	ctrl.resolve(w, "Preferences saved")
}

func (ctrl *controller) getPreferences(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	prefs, err := ctrl.svc.Preferences(r.Context(), userID)
	if err != nil {
		ctrl.reject(w, err)
		return
	}
	ctrl.writeJSON(w, http.StatusOK, map[string]any{"success": true, "preferences": prefs})
}

func (ctrl *controller) testNotification(w http.ResponseWriter, r *http.Request) {
	req, err := decode[testNotificationRequest](r)
	if err != nil {
		ctrl.reject(w, err)
		return
	}
	if req.UserID == "" {
		ctrl.reject(w, &lib.ValidationError{Msg: "missing userId"})
		return
	}
	if err := ctrl.svc.TestNotification(r.Context(), req.UserID, req.Title, req.Body); err != nil {
		ctrl.reject(w, err)
		return
	}
	ctrl.resolve(w, "Test notification sent")
}

func (ctrl *controller) broadcast(w http.ResponseWriter, r *http.Request) {
	req, err := decode[broadcastRequest](r)
	if err != nil {
		ctrl.reject(w, err)
		return
	}
	res, err := ctrl.svc.Broadcast(r.Context(), req.Title, req.Body, req.Type, req.FilterPreference)
	if err != nil {
		ctrl.reject(w, err)
		return
	}
	ctrl.resolve(w, fmt.Sprintf("Broadcast sent to %d users, %d failed", res.Sent, res.Failed))
}

func (ctrl *controller) alert(w http.ResponseWriter, r *http.Request) {
	req, err := decode[alertRequest](r)
	if err != nil {
		ctrl.reject(w, err)
		return
	}
	alert := lib.Alert{
		Type:     lib.AlertType(req.Type),
		Severity: severityOrDefault(req.Severity, lib.SeverityWarning),
		Message:  req.Message,
	}
	if alert.Message == "" {
		alert.Message = "System alert triggered"
	}
	if _, err := ctrl.svc.Dispatch(r.Context(), alert); err != nil {
		ctrl.reject(w, err)
		return
	}
	ctrl.resolve(w, "Alert sent")
}

func (ctrl *controller) notifyContainerDown(w http.ResponseWriter, r *http.Request) {
	req, err := decode[containerDownRequest](r)
	if err != nil {
		ctrl.reject(w, err)
		return
	}
	ctrl.dispatch(w, r, lib.Alert{
		Type:     lib.AlertContainerDown,
		Severity: lib.SeverityCritical,
		Message:  fmt.Sprintf("Container %s is not running", req.ContainerName),
	}, "Container down notification sent")
}

func (ctrl *controller) notifyHighCPU(w http.ResponseWriter, r *http.Request) {
	req, err := decode[metricAlertRequest](r)
	if err != nil {
		ctrl.reject(w, err)
		return
	}
	msg := fmt.Sprintf("CPU usage at %s%% (threshold: %s%%)", formatPct(req.Usage), formatPct(req.Threshold))
	if req.ContainerName != "" {
		msg += " on " + req.ContainerName
	}
	ctrl.dispatch(w, r, lib.Alert{
		Type:      lib.AlertHighCPU,
		Severity:  lib.SeverityWarning,
		Message:   msg,
		MetricKey: "cpu",
	}, "High CPU notification sent")
}

func (ctrl *controller) notifyLowMemory(w http.ResponseWriter, r *http.Request) {
	req, err := decode[metricAlertRequest](r)
	if err != nil {
		ctrl.reject(w, err)
		return
	}
	msg := fmt.Sprintf("Memory available: %s%% (threshold: %s%%)", formatPct(req.Available), formatPct(req.Threshold))
	if req.ContainerName != "" {
		msg += " on " + req.ContainerName
	}
	ctrl.dispatch(w, r, lib.Alert{
		Type:      lib.AlertLowMemory,
		Severity:  lib.SeverityWarning,
		Message:   msg,
		MetricKey: "memory",
	}, "Low memory notification sent")
}

func (ctrl *controller) notifyLowDisk(w http.ResponseWriter, r *http.Request) {
	req, err := decode[metricAlertRequest](r)
	if err != nil {
		ctrl.reject(w, err)
		return
	}
	path := req.Path
	if path == "" {
		path = "/"
	}
	ctrl.dispatch(w, r, lib.Alert{
		Type:      lib.AlertLowDisk,
		Severity:  lib.SeverityWarning,
		Message:   fmt.Sprintf("Disk space at %s: %s%% free (threshold: %s%%)", path, formatPct(req.Available), formatPct(req.Threshold)),
		MetricKey: "disk",
	}, "Low disk notification sent")
}

func (ctrl *controller) notifyBackup(w http.ResponseWriter, r *http.Request) {
	req, err := decode[backupRequest](r)
	if err != nil {
		ctrl.reject(w, err)
		return
	}
	alert := lib.Alert{Type: lib.AlertBackup, Severity: lib.SeverityInfo}
	if req.Success {
		alert.Message = fmt.Sprintf("Backup %q completed successfully", req.BackupName)
	} else {
		alert.Title = "❌ Backup Failed"
		alert.Severity = lib.SeverityError
		alert.Message = fmt.Sprintf("Backup %q failed: %s", req.BackupName, req.Error)
	}
	ctrl.dispatch(w, r, alert, "Backup notification sent")
}

func (ctrl *controller) notifyDeployment(w http.ResponseWriter, r *http.Request) {
	req, err := decode[deploymentRequest](r)
	if err != nil {
		ctrl.reject(w, err)
		return
	}
	ctrl.dispatch(w, r, lib.Alert{
		Type:     lib.AlertDeployment,
		Severity: lib.SeverityInfo,
		Message:  fmt.Sprintf("%s %s deployment %s", req.ServiceName, req.Version, req.Status),
	}, "Deployment notification sent")
}

func (ctrl *controller) notifySecurity(w http.ResponseWriter, r *http.Request) {
	req, err := decode[securityAlertRequest](r)
	if err != nil {
		ctrl.reject(w, err)
		return
	}
	msg := req.Message
	if req.Source != "" {
		msg += fmt.Sprintf(" (from %s)", req.Source)
	}
	ctrl.dispatch(w, r, lib.Alert{
		Type:     lib.AlertSecurity,
		Severity: severityOrDefault(req.Severity, lib.SeverityCritical),
		Message:  msg,
	}, "Security notification sent")
}

func (ctrl *controller) dispatch(w http.ResponseWriter, r *http.Request, alert lib.Alert, message string) {
	if _, err := ctrl.svc.Dispatch(r.Context(), alert); err != nil {
		ctrl.reject(w, err)
		return
	}
	ctrl.resolve(w, message)
}

func (ctrl *controller) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := ctrl.svc.Subscriptions(r.Context())
	if err != nil {
		ctrl.reject(w, err)
		return
	}
	views := FromMany[models.PushSubscription, SubscriptionView](subs)
	ctrl.writeJSON(w, http.StatusOK, map[string]any{"count": len(views), "subscriptions": views})
}

func (ctrl *controller) history(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	rows, err := ctrl.svc.History(r.Context(), userID, limit)
	if err != nil {
		ctrl.reject(w, err)
		return
	}
	ctrl.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"history": FromMany[models.DeliveryLog, HistoryView](rows),
	})
}

func (ctrl *controller) health(w http.ResponseWriter, r *http.Request) {
	count, err := ctrl.svc.SubscriptionCount(r.Context())
	if err != nil {
		ctrl.reject(w, err)
		return
	}
	ctrl.writeJSON(w, http.StatusOK, healthResponse{
		Status:         "healthy",
		Version:        Version,
		Subscriptions:  count,
		VapidPublicKey: ctrl.cfg.VAPID.PublicKey,
	})
}

func severityOrDefault(s string, fallback lib.Severity) lib.Severity {
	switch lib.Severity(s) {
	case lib.SeverityInfo, lib.SeverityWarning, lib.SeverityError, lib.SeverityCritical:
		return lib.Severity(s)
	}
	return fallback
}

func formatPct(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
