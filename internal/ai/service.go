package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/biruktk/LifeTraker/internal/document"
)

const (
	RequestChat      = "chat"
	RequestContinue  = "continue"
	RequestDraft     = "journal_draft"
	RequestSentiment = "sentiment"
)

const chatInstruction = `You are a supportive life coach inside a personal productivity app.
Answer briefly and warmly. If the user mentions things they need to do, extract them as tasks.
Respond with JSON only: {"reply": string, "extractedTasks": [{"title": string, "priority": "TOP"|"HIGH"|"MEDIUM"|"LOW"}]}.
Use an empty extractedTasks array when there is nothing to extract.`

// chatSchema описывает ответ чата в формате responseSchema Gemini.
var chatSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"reply": map[string]any{"type": "STRING"},
		"extractedTasks": map[string]any{
			"type": "ARRAY",
			"items": map[string]any{
				"type": "OBJECT",
				"properties": map[string]any{
					"title":    map[string]any{"type": "STRING"},
					"priority": map[string]any{"type": "STRING", "enum": []string{"TOP", "HIGH", "MEDIUM", "LOW"}},
				},
				"required": []string{"title", "priority"},
			},
		},
	},
	"required": []string{"reply", "extractedTasks"},
}

// Call описывает один запрос к провайдеру для журнала ai_requests.
type Call struct {
	Type     string
	Prompt   string
	Response string
	Raw      []byte
	Err      error
	Category Category
	Latency  time.Duration
}

// Recorder получает каждый запрос к провайдеру. Ошибки записи не влияют на ответ.
type Recorder interface {
	Record(ctx context.Context, call Call)
}

type ChatContext struct {
	Name         string
	Date         string
	PendingTasks []string
}

type ExtractedTask struct {
	Title    string `json:"title"`
	Priority string `json:"priority"`
}

type ChatResult struct {
	Text  string          `json:"text"`
	Tasks []ExtractedTask `json:"tasks"`
}

type chatReply struct {
	Reply          string          `json:"reply"`
	ExtractedTasks []ExtractedTask `json:"extractedTasks"`
}

type Service struct {
	client   Client
	recorder Recorder
	now      func() time.Time
}

// NewService создает сервис работы с AI-клиентом. recorder может быть nil.
func NewService(client Client, recorder Recorder) *Service {
	return &Service{client: client, recorder: recorder, now: time.Now}
}

// Chat отвечает на сообщение пользователя и извлекает из него задачи.
// Ошибка провайдера превращается в текст категории, Tasks всегда не nil.
func (s *Service) Chat(ctx context.Context, message string, chatCtx ChatContext) ChatResult {
	prompt := buildChatPrompt(message, chatCtx)
	messages := []Message{
		{Role: RoleSystem, Content: chatInstruction},
		{Role: RoleUser, Content: prompt},
	}

	content, err := s.call(ctx, RequestChat, prompt, messages, ChatOptions{JSON: true, Schema: chatSchema})
	if err != nil {
		return ChatResult{Text: Categorize(err).Message(), Tasks: []ExtractedTask{}}
	}

	var reply chatReply
	if err := parseJSON(content, &reply); err != nil {
		reply = chatReply{Reply: strings.TrimSpace(content)}
	}

	result := ChatResult{Text: strings.TrimSpace(reply.Reply), Tasks: make([]ExtractedTask, 0, len(reply.ExtractedTasks))}
	for _, task := range reply.ExtractedTasks {
		title := strings.TrimSpace(task.Title)
		if title == "" {
			continue
		}
		result.Tasks = append(result.Tasks, ExtractedTask{Title: title, Priority: strings.TrimSpace(task.Priority)})
	}
	if result.Text == "" {
		result.Text = CategoryUnknown.Message()
	}

	return result
}

// ContinueText дописывает начатый текст. Пустой ввод и ошибки дают "".
func (s *Service) ContinueText(ctx context.Context, existing string) string {
	existing = strings.TrimSpace(existing)
	if existing == "" {
		return ""
	}

	prompt := fmt.Sprintf("Continue this journal entry naturally in the same voice. Write one or two sentences and do not repeat the existing text.\n\n%s", existing)
	content, err := s.call(ctx, RequestContinue, prompt, []Message{{Role: RoleUser, Content: prompt}}, ChatOptions{})
	if err != nil {
		return ""
	}

	return strings.TrimSpace(content)
}

// DraftFromDaySummary пишет черновик записи журнала по итогам дня.
func (s *Service) DraftFromDaySummary(ctx context.Context, date string, doc document.UserDocument) string {
	summary := document.SummarizeDay(doc, date)
	prompt := "Write a short first-person journal paragraph reflecting on this day. Be honest about what was missed and encouraging about what went well.\n\n" + summary.Describe()

	content, err := s.call(ctx, RequestDraft, prompt, []Message{{Role: RoleUser, Content: prompt}}, ChatOptions{})
	if err != nil {
		return Categorize(err).Message()
	}

	return strings.TrimSpace(content)
}

// AnalyzeSentiment возвращает короткий вывод о настроении записи. Ошибки дают "".
func (s *Service) AnalyzeSentiment(ctx context.Context, entry string) string {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return ""
	}

	prompt := fmt.Sprintf("Analyze the mood of this journal entry and give one short, supportive sentence of insight.\n\n%s", entry)
	content, err := s.call(ctx, RequestSentiment, prompt, []Message{{Role: RoleUser, Content: prompt}}, ChatOptions{})
	if err != nil {
		return ""
	}

	return strings.TrimSpace(content)
}

func (s *Service) call(ctx context.Context, requestType, prompt string, messages []Message, opts ChatOptions) (string, error) {
	started := s.now()
	content, raw, err := s.client.Chat(ctx, messages, opts)
	if err == nil && strings.TrimSpace(content) == "" {
		err = errors.New("ai response is empty")
	}

	if s.recorder != nil {
		call := Call{Type: requestType, Prompt: prompt, Response: content, Raw: raw, Err: err, Latency: s.now().Sub(started)}
		if err != nil {
			call.Category = Categorize(err)
		}
		s.recorder.Record(ctx, call)
	}

	return content, err
}

func buildChatPrompt(message string, chatCtx ChatContext) string {
	var b strings.Builder
	if chatCtx.Name != "" {
		fmt.Fprintf(&b, "User name: %s\n", chatCtx.Name)
	}
	if chatCtx.Date != "" {
		fmt.Fprintf(&b, "Today: %s\n", chatCtx.Date)
	}
	if len(chatCtx.PendingTasks) > 0 {
		fmt.Fprintf(&b, "Pending tasks: %s\n", strings.Join(chatCtx.PendingTasks, "; "))
	}
	fmt.Fprintf(&b, "Message: %s", strings.TrimSpace(message))
	return b.String()
}

func parseJSON(input string, target interface{}) error {
	payload := extractJSON(input)
	if payload == "" {
		return errors.New("ai response does not contain json")
	}

	return json.Unmarshal([]byte(payload), target)
}

func extractJSON(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}

	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimPrefix(strings.TrimSpace(trimmed), "json")
		trimmed = strings.TrimSpace(trimmed)
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}

	return trimmed[start : end+1]
}
