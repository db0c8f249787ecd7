package models

// Endpoints for the hosted inference APIs
const (
	EndpointGemini     = "https://generativelanguage.googleapis.com/v1beta"
	EndpointOpenRouter = "https://openrouter.ai/api/v1"
	EndpointLocation   = "https://ipwho.is/"
)

// Default model identifiers
const (
	DefaultPrimaryModel = "gemini-2.5-flash"
	DefaultVisionModel  = "nvidia/nemotron-nano-12b-v2-vl:free"
)

// Keys used in the persisted key-value store
const (
	HistoryKeyPrefix = "dland_chat_history_"
	SettingsKey      = "dland_settings"
)

// HistoryKey returns the store key holding a persona's conversation log
func HistoryKey(persona string) string {
	return HistoryKeyPrefix + persona
}

// Route identifies which provider served a turn
type Route string

const (
	RoutePrimary Route = "primary"
	RouteVision  Route = "vision"
)

// RouteFor picks the provider for a turn: attachments go to the vision provider
func RouteFor(attachment *Attachment) Route {
	if attachment != nil {
		return RouteVision
	}
	return RoutePrimary
}
