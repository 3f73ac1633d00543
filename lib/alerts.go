package lib

// AlertType tags one kind of system alert raised by the monitoring stack.
type AlertType string

const (
	AlertContainerDown AlertType = "container-down"
	AlertHighCPU       AlertType = "high-cpu"
	AlertLowMemory     AlertType = "low-memory"
	AlertLowDisk       AlertType = "low-disk"
	AlertDeployment    AlertType = "deployment"
	AlertSecurity      AlertType = "security"
	AlertBackup        AlertType = "backup"
)

// Severity only affects presentation and escalation, never delivery policy.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Alert is ephemeral; only its delivery outcomes are persisted.
type Alert struct {
	Type     AlertType
	Severity Severity
	Message  string

	// Title overrides the type's template when set (backup failures flip
	// the canned title, for example).
	Title string

	// MetricKey identifies the metric (cpu/memory/disk) behind a
	// threshold alert and becomes the cooldown key when present.
	MetricKey string
}

// CooldownKey is the metric key when present, else the alert type.
func (a Alert) CooldownKey() string {
	if a.MetricKey != "" {
		return a.MetricKey
	}
	return string(a.Type)
}

type alertProfile struct {
	Title string
	// Preference gates delivery; empty means the alert reaches every
	// subscriber unconditionally.
	Preference string
}

var alertProfiles = map[AlertType]alertProfile{
	AlertContainerDown: {Title: "🚨 Container Down", Preference: "container_down"},
	AlertHighCPU:       {Title: "⚠️ High CPU Usage", Preference: "performance"},
	AlertLowMemory:     {Title: "⚠️ Low Memory", Preference: "performance"},
	AlertLowDisk:       {Title: "⚠️ Low Disk Space", Preference: "performance"},
	AlertDeployment:    {Title: "🚀 Deployment Update", Preference: "deployments"},
	AlertSecurity:      {Title: "🔒 Security Alert", Preference: "security"},
	AlertBackup:        {Title: "✅ Backup Complete", Preference: "backups"},
}

// profileFor resolves the title template and gating preference for a type.
// Unknown types fall back to an ungated generic alert.
func profileFor(t AlertType) alertProfile {
	if p, ok := alertProfiles[t]; ok {
		return p
	}
	return alertProfile{Title: "🔔 System Alert"}
}
