package gateway

// Server-to-client message types.
const (
	msgTranscription        = "transcription"
	msgQueueStatus          = "queue_status"
	msgFullTranscription    = "full_transcription"
	msgTranscriptionCleared = "transcription_cleared"
	msgPong                 = "pong"
	msgSummaryProcessing    = "summary_processing"
	msgNotionProcessing     = "notion_processing"
	msgSummaryResult        = "summary_result"
	msgError                = "error"
)

// controlMessage is the tagged union for client JSON messages.
type controlMessage struct {
	Type   string `json:"type"`
	Prompt string `json:"prompt"` // summarize: optional custom prompt
	Text   string `json:"text"`   // summarize: optional transcript override
}

type transcriptionMsg struct {
	Type            string  `json:"type"`
	Text            string  `json:"text"`
	Sequence        int     `json:"sequence"`
	ServerTimestamp float64 `json:"server_timestamp"`
	ClientTimestamp float64 `json:"client_timestamp"`
}

type queueStatusMsg struct {
	Type                string  `json:"type"`
	ProcessingCount     int     `json:"processing_count"`
	CurrentlyProcessing bool    `json:"currently_processing"`
	Timestamp           float64 `json:"timestamp"`
}

type fullTranscriptionMsg struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Count int    `json:"count"`
}

type infoMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type pongMsg struct {
	Type string `json:"type"`
}

type notionResultMsg struct {
	Success bool   `json:"success"`
	URL     string `json:"url,omitempty"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
}

type summaryResultMsg struct {
	Type         string           `json:"type"`
	Success      bool             `json:"success"`
	Summary      string           `json:"summary,omitempty"`
	NotionResult *notionResultMsg `json:"notion_result,omitempty"`
	Message      string           `json:"message,omitempty"`
}
