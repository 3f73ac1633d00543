package app

import (
	"time"

	"github.com/agistaffers/pushgate/lib"
	"github.com/agistaffers/pushgate/lib/models"
)

type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type subscribeRequest struct {
	Subscription lib.WebPushSubscription `json:"subscription"`
	UserID       string                  `json:"userId"`
}

type unsubscribeRequest struct {
	UserID string `json:"userId"`
}

type preferencesRequest struct {
	UserID      string               `json:"userId"`
	Preferences models.PreferenceMap `json:"preferences"`
}

type testNotificationRequest struct {
	UserID string `json:"userId"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

type broadcastRequest struct {
	Title            string `json:"title"`
	Body             string `json:"body"`
	Type             string `json:"type"`
	FilterPreference string `json:"filterPreference"`
}

type alertRequest struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

type containerDownRequest struct {
	ContainerName string `json:"containerName"`
	ContainerID   string `json:"containerId"`
}

type metricAlertRequest struct {
	Usage         float64 `json:"usage"`
	Available     float64 `json:"available"`
	Threshold     float64 `json:"threshold"`
	ContainerName string  `json:"containerName"`
	Path          string  `json:"path"`
}

type backupRequest struct {
	Success    bool   `json:"success"`
	BackupName string `json:"backupName"`
	Error      string `json:"error"`
}

type deploymentRequest struct {
	ServiceName string `json:"serviceName"`
	Version     string `json:"version"`
	Status      string `json:"status"`
}

type securityAlertRequest struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Source   string `json:"source"`
}

type healthResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	Subscriptions  int64  `json:"subscriptions"`
	VapidPublicKey string `json:"vapidPublicKey"`
}

type SubscriptionView struct {
	UserID         string `json:"userId"`
	Endpoint       string `json:"endpoint"`
	ExpirationTime *int64 `json:"expirationTime,omitempty"`
}

func (view SubscriptionView) From(entity models.PushSubscription) SubscriptionView {
	return SubscriptionView{
		UserID:         entity.UserID,
		Endpoint:       entity.Endpoint,
		ExpirationTime: entity.ExpirationTime,
	}
}

type HistoryView struct {
	Title   string `json:"title"`
	Body    string `json:"body"`
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	SentAt  string `json:"sentAt"`
}

func (view HistoryView) From(entity models.DeliveryLog) HistoryView {
	return HistoryView{
		Title:   entity.Title,
		Body:    entity.Body,
		Type:    entity.Type,
		Success: entity.Success,
		Error:   entity.Error,
		SentAt:  entity.SentAt.UTC().Format(time.RFC3339),
	}
}

type Fromable[Entity any, Repr any] interface {
	From(Entity) Repr
}

func FromMany[T any, U Fromable[T, U]](elems []T) []U {
	out := make([]U, len(elems))
	for i, t := range elems {
		var u U
		out[i] = u.From(t)
	}
	return out
}
